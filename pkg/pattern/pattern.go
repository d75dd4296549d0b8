// Package pattern implements the vanity predicate over derived addresses.
//
// Patterns are compared against the 40 character lowercase hex rendering of
// an address, so prefix and suffix lengths need not be byte aligned.
package pattern

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/create2-miner/pkg/types"
)

// addressHexLen is the length of an address rendered without 0x.
const addressHexLen = common.AddressLength * 2

// Pattern is an immutable prefix/suffix constraint. Safe for concurrent use.
type Pattern struct {
	prefix []byte
	suffix []byte
}

// New normalises prefix and suffix to lowercase once and validates them.
// An optional 0x on the prefix is stripped.
func New(prefix, suffix string) (*Pattern, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	prefix = strings.TrimPrefix(prefix, "0x")

	if prefix == "" && suffix == "" {
		return nil, &types.InputError{Field: "pattern", Err: types.ErrEmptyPattern}
	}
	if err := validateHex("prefix", prefix); err != nil {
		return nil, err
	}
	if err := validateHex("suffix", suffix); err != nil {
		return nil, err
	}
	if len(prefix)+len(suffix) > addressHexLen {
		return nil, &types.InputError{
			Field: "pattern",
			Value: prefix + "..." + suffix,
			Err:   types.ErrPatternTooLong,
		}
	}
	return &Pattern{prefix: []byte(prefix), suffix: []byte(suffix)}, nil
}

// Exact matches one full address.
func Exact(target string) (*Pattern, error) {
	t := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(target)), "0x")
	if len(t) != addressHexLen {
		return nil, &types.InputError{
			Field: "target",
			Value: target,
			Err:   fmt.Errorf("%w: got %d hex chars, want %d", types.ErrInvalidLength, len(t), addressHexLen),
		}
	}
	return New(t, "")
}

// Match reports whether addr satisfies the pattern.
func (p *Pattern) Match(addr common.Address) bool {
	var buf [addressHexLen]byte
	hex.Encode(buf[:], addr[:])
	return p.matchBytes(buf[:])
}

func (p *Pattern) matchBytes(rendered []byte) bool {
	if len(p.prefix) > 0 && !bytes.HasPrefix(rendered, p.prefix) {
		return false
	}
	if len(p.suffix) > 0 && !bytes.HasSuffix(rendered, p.suffix) {
		return false
	}
	return true
}

// Prefix returns the normalised prefix, possibly empty.
func (p *Pattern) Prefix() string { return string(p.prefix) }

// Suffix returns the normalised suffix, possibly empty.
func (p *Pattern) Suffix() string { return string(p.suffix) }

// Difficulty is the expected number of attempts per match.
func (p *Pattern) Difficulty() float64 {
	return math.Pow(16, float64(len(p.prefix)+len(p.suffix)))
}

// String renders the pattern as 0x<prefix>...<suffix>.
func (p *Pattern) String() string {
	switch {
	case len(p.suffix) == 0:
		return "0x" + string(p.prefix) + "..."
	case len(p.prefix) == 0:
		return "0x..." + string(p.suffix)
	default:
		return "0x" + string(p.prefix) + "..." + string(p.suffix)
	}
}

func validateHex(field, s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &types.InputError{
				Field: field,
				Value: s,
				Err:   fmt.Errorf("%w: unexpected %q at %d", types.ErrInvalidHex, c, i),
			}
		}
	}
	return nil
}
