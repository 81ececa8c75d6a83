package restaurant

import "sync/atomic"

// sequence is a monotonic id counter starting at 1.
type sequence struct {
	n atomic.Int64
}

// Next returns the next id.
func (s *sequence) Next() int {
	return int(s.n.Add(1))
}

// Observe raises the counter so the next id is above v.
func (s *sequence) Observe(v int) {
	for {
		cur := s.n.Load()
		if int64(v) <= cur || s.n.CompareAndSwap(cur, int64(v)) {
			return
		}
	}
}
