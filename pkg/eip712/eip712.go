package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Domain is an EIP-712 signing domain. Salt of all zeroes means the domain
// was declared without a salt field.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainId           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
	Salt              common.Hash    `json:"salt"`
}

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainTypeHash = Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)
	domainSaltTypeHash = Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)"))
)

// Keccak256 computes the legacy Keccak-256 digest over the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hash is Keccak256 returning a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.Hash(Keccak256(data...))
}

// Separator computes the domain separator: hashStruct of the domain under the
// four-field EIP712Domain typehash, or the five-field variant when a salt is set.
func (d Domain) Separator() common.Hash {
	typeHash := domainTypeHash
	hasSalt := d.Salt != (common.Hash{})
	if hasSalt {
		typeHash = domainSaltTypeHash
	}

	encoded := make([]byte, 0, 192)
	encoded = append(encoded, typeHash.Bytes()...)
	encoded = append(encoded, Keccak256([]byte(d.Name))...)
	encoded = append(encoded, Keccak256([]byte(d.Version))...)
	encoded = append(encoded, Uint256Word(d.ChainId)...)
	encoded = append(encoded, AddressWord(d.VerifyingContract)...)
	if hasSalt {
		encoded = append(encoded, d.Salt.Bytes()...)
	}

	return Keccak256Hash(encoded)
}

// TypedDataHash combines a domain separator and a struct hash under the fixed
// "\x19\x01" version prefix.
func TypedDataHash(domainSeparator, structHash common.Hash) common.Hash {
	encoded := make([]byte, 0, 66)
	encoded = append(encoded, 0x19, 0x01)
	encoded = append(encoded, domainSeparator.Bytes()...)
	encoded = append(encoded, structHash.Bytes()...)
	return Keccak256Hash(encoded)
}

// Uint256Word ABI-encodes v as a single 32-byte word. A nil value encodes as zero.
func Uint256Word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return padLeft(v.Bytes(), 32)
}

// AddressWord ABI-encodes a as a single 32-byte word.
func AddressWord(a common.Address) []byte {
	return padLeft(a.Bytes(), 32)
}

func padLeft(data []byte, size int) []byte {
	if len(data) >= size {
		return data[len(data)-size:]
	}
	result := make([]byte, size)
	copy(result[size-len(data):], data)
	return result
}
