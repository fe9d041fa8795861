package fault

import (
	"math/rand/v2"
	"sync"

	"github.com/gammazero/deque"
)

// Rand is the randomness consumed by the gate policy and the bitfield model.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Global returns the unseeded process-wide source.
func Global() Rand {
	return globalRand{}
}

// NewSeeded returns a reproducible source. It is not safe for concurrent use,
// so give each profile its own.
func NewSeeded(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Script replays queued draws in order. When a queue runs dry Float64
// returns a value no gate below 1.0 fires on and IntN returns 0.
type Script struct {
	mu     sync.Mutex
	floats deque.Deque[float64]
	ints   deque.Deque[int]
}

func NewScript() *Script {
	return &Script{}
}

func (s *Script) PushFloats(vs ...float64) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vs {
		s.floats.PushBack(v)
	}
	return s
}

func (s *Script) PushInts(vs ...int) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vs {
		s.ints.PushBack(v)
	}
	return s
}

func (s *Script) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.floats.Len() == 0 {
		return 0.999999
	}
	return s.floats.PopFront()
}

func (s *Script) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ints.Len() == 0 {
		return 0
	}
	v := s.ints.PopFront()
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Remaining reports how many floats and ints are still queued.
func (s *Script) Remaining() (floats, ints int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.floats.Len(), s.ints.Len()
}
