// Package palette assigns display colours to aircraft tracks.
package palette

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// Assigner returns a "#rrggbb" colour for an aircraft
type Assigner interface {
	Color(icao24 string) string
}

// Random draws a fresh colour on every call from its own seeded source
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random assigner. The same seed gives the same colour
// sequence.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Color implements Assigner
func (r *Random) Color(string) string {
	r.mu.Lock()
	v := r.rng.Uint32()
	r.mu.Unlock()
	return format(v)
}

// Hashed derives a stable colour from the ICAO24 address
type Hashed struct{}

// Color implements Assigner
func (Hashed) Color(icao24 string) string {
	h := fnv.New32a()
	h.Write([]byte(icao24))
	return format(h.Sum32())
}

func format(v uint32) string {
	return fmt.Sprintf("#%06x", v&0xffffff)
}

// New returns the assigner for a mode name: "hashed" or "random". A zero
// seed picks a new one on every start.
func New(mode string, seed uint64) (Assigner, error) {
	switch mode {
	case "hashed":
		return Hashed{}, nil
	case "random", "":
		if seed == 0 {
			seed = rand.Uint64()
		}
		return NewRandom(seed), nil
	default:
		return nil, fmt.Errorf("unknown colour mode: %s", mode)
	}
}
