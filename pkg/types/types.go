package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SaltLength is the size of a CREATE2 salt in bytes.
const SaltLength = 32

// Input errors
var (
	ErrInvalidHex     = errors.New("invalid hex")
	ErrInvalidLength  = errors.New("invalid length")
	ErrEmptyPattern   = errors.New("must specify a prefix, a suffix, or both")
	ErrPatternTooLong = errors.New("pattern longer than an address")
	ErrInvalidWorkers = errors.New("worker count must be at least 1")
)

// InputError reports a malformed caller input. It is returned before any
// worker starts and is never retried.
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Salt is a 32-byte CREATE2 salt.
type Salt [SaltLength]byte

// Hex returns the 0x-prefixed, 64 character lowercase encoding.
func (s Salt) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Salt) String() string { return s.Hex() }

// AddressHex renders an address as 0x-prefixed lowercase hex.
func AddressHex(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Strategy selects how workers produce salt candidates.
type Strategy int

const (
	// StrategyRandom draws a fresh salt from a cryptographically seeded
	// generator on every attempt.
	StrategyRandom Strategy = iota
	// StrategySequential starts each worker at a random salt and increments
	// it big-endian, wrapping on overflow.
	StrategySequential
)

func (s Strategy) String() string {
	switch s {
	case StrategyRandom:
		return "random"
	case StrategySequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "random", "":
		return StrategyRandom, nil
	case "sequential", "seq":
		return StrategySequential, nil
	default:
		return 0, &InputError{Field: "strategy", Value: s, Err: errors.New("must be random or sequential")}
	}
}

// CeilingMode selects how MaxAttempts is applied.
type CeilingMode int

const (
	// CeilingAuto is resolved by the miner: per-worker with a default cap
	// for unbounded sequential searches, global otherwise.
	CeilingAuto CeilingMode = iota
	// CeilingGlobal caps the attempts summed across all workers.
	CeilingGlobal
	// CeilingPerWorker caps every worker independently.
	CeilingPerWorker
)

func (c CeilingMode) String() string {
	switch c {
	case CeilingAuto:
		return "auto"
	case CeilingGlobal:
		return "global"
	case CeilingPerWorker:
		return "per-worker"
	default:
		return "unknown"
	}
}

// ParseCeilingMode maps a flag value to a CeilingMode.
func ParseCeilingMode(s string) (CeilingMode, error) {
	switch s {
	case "auto", "":
		return CeilingAuto, nil
	case "global":
		return CeilingGlobal, nil
	case "per-worker", "worker":
		return CeilingPerWorker, nil
	default:
		return 0, &InputError{Field: "ceiling", Value: s, Err: errors.New("must be auto, global or per-worker")}
	}
}

// Result represents a mining result
type Result struct {
	Salt     Salt
	Address  common.Address
	Attempts uint64 // global attempt number of the match
	Elapsed  time.Duration
}

// ElapsedSeconds returns the search time as fractional seconds.
func (r Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Status is the terminal state of a search.
type Status int

const (
	StatusFound Status = iota
	StatusExhausted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is what a search returns. Result is set only for StatusFound.
type Outcome struct {
	Status        Status
	Result        *Result
	TotalAttempts uint64 // every candidate evaluated, including post-stop slack
	Elapsed       time.Duration
}

// Found reports whether the search produced a match.
func (o Outcome) Found() bool {
	return o.Status == StatusFound && o.Result != nil
}

// Progress is a point-in-time snapshot of a running search.
type Progress struct {
	Attempts uint64
	Elapsed  time.Duration
}

// Rate returns attempts per second, or 0 before any time has passed.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Attempts) / p.Elapsed.Seconds()
}
