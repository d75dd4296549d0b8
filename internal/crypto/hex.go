package crypto

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/create2-miner/pkg/types"
)

// TrimHexPrefix removes surrounding whitespace and an optional 0x / 0X.
func TrimHexPrefix(s string) string {
	h := strings.TrimSpace(s)
	if len(h) >= 2 && (h[0:2] == "0x" || h[0:2] == "0X") {
		h = h[2:]
	}
	return h
}

// ParseAddress decodes a 20-byte address, with or without 0x.
func ParseAddress(field, s string) (common.Address, error) {
	b, err := decodeFixed(field, s, common.AddressLength)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

// ParseHash decodes a 32-byte hash, with or without 0x.
func ParseHash(field, s string) (common.Hash, error) {
	b, err := decodeFixed(field, s, common.HashLength)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

// ParseSalt decodes a 32-byte salt, with or without 0x.
func ParseSalt(field, s string) (types.Salt, error) {
	var salt types.Salt
	b, err := decodeFixed(field, s, types.SaltLength)
	if err != nil {
		return salt, err
	}
	copy(salt[:], b)
	return salt, nil
}

// DecodeBytecode decodes contract init code given as hex.
func DecodeBytecode(s string) ([]byte, error) {
	h := TrimHexPrefix(s)
	if h == "" {
		return nil, &types.InputError{Field: "bytecode", Err: types.ErrInvalidLength}
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, &types.InputError{Field: "bytecode", Err: fmt.Errorf("%w: %v", types.ErrInvalidHex, err)}
	}
	return b, nil
}

// ReadBytecodeFile reads hex init code from a file
func ReadBytecodeFile(filename string) ([]byte, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read bytecode file %q: %w", filename, err)
	}
	return DecodeBytecode(string(content))
}

func decodeFixed(field, s string, want int) ([]byte, error) {
	h := TrimHexPrefix(s)
	if len(h) != want*2 {
		return nil, &types.InputError{
			Field: field,
			Value: s,
			Err:   fmt.Errorf("%w: got %d hex chars, want %d", types.ErrInvalidLength, len(h), want*2),
		}
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, &types.InputError{Field: field, Value: s, Err: fmt.Errorf("%w: %v", types.ErrInvalidHex, err)}
	}
	return b, nil
}

func lengthError(field string, got, want int) error {
	return &types.InputError{
		Field: field,
		Err:   fmt.Errorf("%w: got %d bytes, want %d", types.ErrInvalidLength, got, want),
	}
}
