package plates

import (
	"sort"

	"github.com/google/uuid"
)

// PassageEvent is one counted pass of a vehicle
type PassageEvent struct {
	ID        uuid.UUID
	Plate     string
	Sightings int
	// Frame indices (1-based, counting every read frame) of first and last sighting
	FirstFrame int
	LastFrame  int
}

// Counts maps plate number to number of passages within a run
type Counts map[string]int

// Record adds passages
func (c Counts) Record(passages ...PassageEvent) {
	for _, p := range passages {
		c[p.Plate]++
	}
}

// Total returns number of passages of all plates
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Plates returns plate numbers sorted
func (c Counts) Plates() []string {
	plates := make([]string, 0, len(c))
	for plate := range c {
		plates = append(plates, plate)
	}
	sort.Strings(plates)
	return plates
}

// Expand lists each plate once per passage, e.g. {"A":2,"B":1} gives [A A B].
// Storage increments one passage at a time.
func (c Counts) Expand() []string {
	out := make([]string, 0, c.Total())
	for _, plate := range c.Plates() {
		for i := 0; i < c[plate]; i++ {
			out = append(out, plate)
		}
	}
	return out
}
