package catalog

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Shuffled presents a Dataset in a per-team order. The order is a pure
// function of the dataset version and the team id, so it is stable across
// restarts and across server instances.
type Shuffled struct {
	*Dataset

	mu     sync.Mutex
	orders map[string][]int
}

func NewShuffled(d *Dataset) *Shuffled {
	return &Shuffled{Dataset: d, orders: make(map[string][]int)}
}

func (s *Shuffled) Challenge(id int, actorID string) (Challenge, error) {
	if id < 0 || id >= s.Len() {
		return Challenge{}, fmt.Errorf("dataset %s id %d: %w", s.id, id, ErrNotFound)
	}
	c := s.challenges[s.order(actorID)[id]]
	c.ID = id
	return c, nil
}

func (s *Shuffled) order(actorID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[actorID]; ok {
		return o
	}
	o := Permutation(s.version+"/"+actorID, s.Len())
	s.orders[actorID] = o
	return o
}

// Permutation returns a Fisher-Yates shuffle of 0..n-1 driven by a
// Mulberry32 generator seeded from key.
func Permutation(key string, n int) []int {
	h := fnv.New32a()
	h.Write([]byte(key))
	rng := mulberry32{state: h.Sum32()}

	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type mulberry32 struct {
	state uint32
}

// next returns a float in [0, 1).
func (m *mulberry32) next() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296.0
}
