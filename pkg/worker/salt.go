package worker

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"

	"github.com/holiman/uint256"

	"github.com/screa/create2-miner/pkg/types"
)

// SaltSource produces salt candidates for one worker. Implementations are
// owned by a single goroutine and are not safe for concurrent use.
type SaltSource interface {
	Next(salt *types.Salt)
}

// RandomSource draws a fresh 32-byte salt per attempt from a ChaCha8 stream
// seeded from crypto/rand.
type RandomSource struct {
	rng *mrand.ChaCha8
}

// NewRandomSource seeds a new generator from the OS entropy source.
func NewRandomSource() (*RandomSource, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed random source: %w", err)
	}
	return &RandomSource{rng: mrand.NewChaCha8(seed)}, nil
}

func (r *RandomSource) Next(salt *types.Salt) {
	// ChaCha8.Read never returns an error
	_, _ = r.rng.Read(salt[:])
}

// SequentialSource walks the salt space from a starting point, incrementing
// big-endian and wrapping from 2^256-1 back to zero.
type SequentialSource struct {
	cursor  uint256.Int
	started bool
}

// NewSequentialSource starts at a random salt.
func NewSequentialSource() (*SequentialSource, error) {
	var start types.Salt
	if _, err := rand.Read(start[:]); err != nil {
		return nil, fmt.Errorf("seed sequential source: %w", err)
	}
	return NewSequentialSourceFrom(start), nil
}

// NewSequentialSourceFrom starts at the given salt. The first call to Next
// yields start itself.
func NewSequentialSourceFrom(start types.Salt) *SequentialSource {
	s := &SequentialSource{}
	s.cursor.SetBytes32(start[:])
	return s
}

func (s *SequentialSource) Next(salt *types.Salt) {
	if s.started {
		s.cursor.AddUint64(&s.cursor, 1)
	}
	s.started = true
	*salt = s.cursor.Bytes32()
}

// NewSource builds the source for a strategy.
func NewSource(strategy types.Strategy) (SaltSource, error) {
	switch strategy {
	case types.StrategyRandom:
		return NewRandomSource()
	case types.StrategySequential:
		return NewSequentialSource()
	default:
		return nil, fmt.Errorf("unknown strategy %d", strategy)
	}
}
