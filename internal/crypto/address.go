package crypto

import (
	"hash"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/screa/create2-miner/pkg/types"
)

const (
	// ERC-2470 Singleton Factory address
	DefaultFactoryAddress = "0xce0042B868300000d44A59004Da54A005ffdcf9f"

	// CREATE2 input layout: 0xff (1) + factory (20) + salt (32) + initcodeHash (32) = 85
	Create2PrefixLen = 1 + common.AddressLength
	Create2SaltLen   = types.SaltLength
	Create2SuffixLen = common.HashLength
	Create2InputLen  = Create2PrefixLen + Create2SaltLen + Create2SuffixLen

	create2Marker = 0xff
)

// Deriver computes CREATE2 addresses for one factory and content hash.
// The 0xff marker, factory and hash are primed once; only the salt slot
// changes between calls. A Deriver is not safe for concurrent use, each
// worker owns one.
type Deriver struct {
	hasher  hash.Hash
	input   [Create2InputLen]byte
	hashBuf [32]byte
}

// NewDeriver returns a Deriver with the input buffer pre-primed.
func NewDeriver(factory common.Address, contentHash common.Hash) *Deriver {
	d := &Deriver{hasher: sha3.NewLegacyKeccak256()}
	d.input[0] = create2Marker
	copy(d.input[1:Create2PrefixLen], factory[:])
	copy(d.input[Create2PrefixLen+Create2SaltLen:], contentHash[:])
	return d
}

// Derive writes the address for salt into addr.
func (d *Deriver) Derive(salt *types.Salt, addr *common.Address) {
	copy(d.input[Create2PrefixLen:Create2PrefixLen+Create2SaltLen], salt[:])
	Create2AddressInto(d.hasher, d.input[:], d.hashBuf[:], addr[:])
}

// Create2AddressInto hashes CREATE2 input and writes the 20-byte address into addrBuf.
// Reuses the provided hasher to avoid allocations. inputBuf must be Create2InputLen (85),
// hashBuf must be at least 32 bytes, addrBuf must be 20 bytes.
func Create2AddressInto(hasher hash.Hash, inputBuf, hashBuf, addrBuf []byte) {
	hasher.Reset()
	hasher.Write(inputBuf)
	sum := hasher.Sum(hashBuf[:0])
	copy(addrBuf, sum[12:32])
}

// DeriveAddress is the checked form of Deriver.Derive for callers holding
// raw byte slices. Wrong-sized inputs are rejected rather than padded.
func DeriveAddress(factory, salt, contentHash []byte) (common.Address, error) {
	if len(factory) != common.AddressLength {
		return common.Address{}, lengthError("factory", len(factory), common.AddressLength)
	}
	if len(salt) != Create2SaltLen {
		return common.Address{}, lengthError("salt", len(salt), Create2SaltLen)
	}
	if len(contentHash) != Create2SuffixLen {
		return common.Address{}, lengthError("content hash", len(contentHash), Create2SuffixLen)
	}

	input := make([]byte, 0, Create2InputLen)
	input = append(input, create2Marker)
	input = append(input, factory...)
	input = append(input, salt...)
	input = append(input, contentHash...)

	var addr common.Address
	var hashBuf [32]byte
	Create2AddressInto(sha3.NewLegacyKeccak256(), input, hashBuf[:], addr[:])
	return addr, nil
}

// ContentHash returns keccak256 of the contract init code.
func ContentHash(initCode []byte) common.Hash {
	return gethcrypto.Keccak256Hash(initCode)
}

// ChecksumHex returns the EIP-55 checksummed form, for display only.
func ChecksumHex(addr common.Address) string {
	return addr.Hex()
}
