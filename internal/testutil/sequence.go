// Package testutil holds helpers shared by package tests and the scenario
// harness: temp stores, row snapshots and a deterministic step counter.
package testutil

import "sync/atomic"

// Sequence numbers trace events. The first call to Next returns 1, so two
// runs of the same scenario number their events identically.
//
// Thread-safe.
type Sequence struct {
	n atomic.Int64
}

// Next increments and returns the next number.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last number handed out, or 0.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}

// Reset starts numbering from 1 again.
func (s *Sequence) Reset() {
	s.n.Store(0)
}
