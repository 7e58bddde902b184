package testutil

import "sync"

// SequenceSource replays a fixed list of draws in [0,1), cycling when it
// runs out. Weighted selection driven by it is fully predictable: a draw of
// 0 picks the first positive-weight candidate, a draw just below 1 the last.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	idx    int
	calls  int
}

// NewSequenceSource creates a source that returns values in order.
//
// With no values every draw is 0.
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

// Float64 returns the next value.
func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.idx%len(s.values)]
	s.idx++
	return v
}

// Calls reports how many draws have been made.
func (s *SequenceSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reset rewinds to the first value.
//
// Used for test reuse. After Reset(), the next draw is values[0].
func (s *SequenceSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = 0
	s.calls = 0
}
