package miner

import (
	"sync/atomic"
	"time"

	"github.com/screa/create2-miner/pkg/types"
)

// state is everything the workers of one search share. A fresh state is
// created per Mine call and handed to workers by pointer, so independent
// searches in one process never interfere.
type state struct {
	start    time.Time
	attempts atomic.Uint64
	stop     atomic.Bool

	// stoppedAt is the counter value observed right after the stop flag flipped.
	stoppedAt atomic.Uint64

	// limit caps attempts summed over all workers; 0 means unbounded.
	limit uint64

	// result accepts exactly one write: the worker that won the stop CAS.
	result chan types.Result
}

func newState(limit uint64) *state {
	return &state{
		start:  time.Now(),
		limit:  limit,
		result: make(chan types.Result, 1),
	}
}

// claim reserves the next global attempt number. With a limit it never
// hands out a ticket past it, so the counter stops at exactly limit.
func (s *state) claim() (uint64, bool) {
	if s.limit == 0 {
		return s.attempts.Add(1), true
	}
	for {
		n := s.attempts.Load()
		if n >= s.limit {
			return n, false
		}
		if s.attempts.CompareAndSwap(n, n+1) {
			return n + 1, true
		}
	}
}

// commit publishes a match if no other worker has. Only the caller whose
// CompareAndSwap flips the stop flag writes the result.
func (s *state) commit(r types.Result) bool {
	if !s.stop.CompareAndSwap(false, true) {
		return false
	}
	s.stoppedAt.Store(s.attempts.Load())
	s.result <- r
	return true
}

func (s *state) stopped() bool {
	return s.stop.Load()
}

func (s *state) progress() types.Progress {
	return types.Progress{
		Attempts: s.attempts.Load(),
		Elapsed:  time.Since(s.start),
	}
}
