package plates

import "github.com/google/uuid"

// Session is one dwell window of a plate: from its first sighting until its passage is counted.
type Session struct {
	id         uuid.UUID
	plate      string
	sightings  int
	firstFrame int
	lastFrame  int
	// processed frames in a row without this plate
	absence int
}

func NewSession(plate string, frame int) *Session {
	return &Session{
		id:         uuid.New(),
		plate:      plate,
		sightings:  1,
		firstFrame: frame,
		lastFrame:  frame,
	}
}

// GetID returns session's identifier
func (s *Session) GetID() uuid.UUID {
	return s.id
}

// GetPlate returns plate number the session belongs to
func (s *Session) GetPlate() string {
	return s.plate
}

// GetAbsence returns number of processed frames since the plate was seen last
func (s *Session) GetAbsence() int {
	return s.absence
}

// IncAbsence increases absence counter
func (s *Session) IncAbsence() {
	s.absence++
}

// Sighted registers one more observation of the plate and resets absence counter
func (s *Session) Sighted(frame int) {
	s.sightings++
	s.lastFrame = frame
	s.absence = 0
}

// Passage converts session into a countable event
func (s *Session) Passage() PassageEvent {
	return PassageEvent{
		ID:         s.id,
		Plate:      s.plate,
		Sightings:  s.sightings,
		FirstFrame: s.firstFrame,
		LastFrame:  s.lastFrame,
	}
}
