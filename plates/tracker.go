package plates

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Policy selects how absence is measured for open sessions.
type Policy int

const (
	// SharedWindow keeps one absence counter for all open sessions: any sighting
	// keeps every session open, and when the timeout fires all of them are counted at once.
	SharedWindow Policy = iota
	// PerPlate keeps independent counter for every plate.
	PerPlate
)

func (p Policy) String() string {
	switch p {
	case SharedWindow:
		return "shared"
	case PerPlate:
		return "per-plate"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// SessionTracker turns per-frame plate observations into passages.
// The two policies may give different counts for the same input;
// files use SharedWindow and streams use PerPlate.
type SessionTracker struct {
	policy Policy
	// Number of processed frames without sighting which closes a session
	timeout int
	// Open sessions by plate
	Sessions map[string]*Session
	// Plates of open sessions in first sighting order. Keeps passages deterministic
	order []string
	// Shared absence counter, SharedWindow only
	absence int
	logger  zerolog.Logger
}

// NewSessionTracker creates tracker. timeout below 1 is treated as 1
func NewSessionTracker(policy Policy, timeout int, logger zerolog.Logger) *SessionTracker {
	return &SessionTracker{
		policy:   policy,
		timeout:  maxInt(1, timeout),
		Sessions: make(map[string]*Session),
		order:    make([]string, 0),
		logger:   logger,
	}
}

// Observe feeds plates found in processed frame number frame and returns passages that ended.
// Duplicated plates within one observation count as one sighting.
func (tracker *SessionTracker) Observe(frame int, plates []string) []PassageEvent {
	seen := tracker.sight(frame, plates)
	switch tracker.policy {
	case PerPlate:
		return tracker.agePerPlate(seen)
	default:
		return tracker.ageShared(len(seen) > 0)
	}
}

// Close ends every open session regardless of absence
func (tracker *SessionTracker) Close() []PassageEvent {
	return tracker.closeWhere(func(*Session) bool { return true })
}

// Open returns number of sessions in progress
func (tracker *SessionTracker) Open() int {
	return len(tracker.Sessions)
}

func (tracker *SessionTracker) sight(frame int, plates []string) map[string]struct{} {
	seen := make(map[string]struct{}, len(plates))
	for _, plate := range plates {
		if _, ok := seen[plate]; ok {
			continue
		}
		seen[plate] = struct{}{}
		if session, ok := tracker.Sessions[plate]; ok {
			session.Sighted(frame)
			continue
		}
		tracker.Sessions[plate] = NewSession(plate, frame)
		tracker.order = append(tracker.order, plate)
	}
	return seen
}

func (tracker *SessionTracker) ageShared(sighted bool) []PassageEvent {
	if sighted {
		tracker.absence = 0
	} else {
		tracker.absence++
	}
	if tracker.absence < tracker.timeout || len(tracker.Sessions) == 0 {
		return nil
	}
	tracker.absence = 0
	return tracker.Close()
}

func (tracker *SessionTracker) agePerPlate(seen map[string]struct{}) []PassageEvent {
	return tracker.closeWhere(func(session *Session) bool {
		if _, ok := seen[session.GetPlate()]; ok {
			return false
		}
		session.IncAbsence()
		return session.GetAbsence() >= tracker.timeout
	})
}

// closeWhere visits open sessions in first sighting order and closes those matching done
func (tracker *SessionTracker) closeWhere(done func(*Session) bool) []PassageEvent {
	var passages []PassageEvent
	kept := tracker.order[:0]
	for _, plate := range tracker.order {
		session := tracker.Sessions[plate]
		if !done(session) {
			kept = append(kept, plate)
			continue
		}
		passage := session.Passage()
		tracker.logger.Info().Str("plate", plate).Str("policy", tracker.policy.String()).Int("sightings", passage.Sightings).Msg("session ended")
		passages = append(passages, passage)
		delete(tracker.Sessions, plate)
	}
	// Drop references left behind in the tail
	for i := len(kept); i < len(tracker.order); i++ {
		tracker.order[i] = ""
	}
	tracker.order = kept
	return passages
}
