// Package rehash derives the final digests for the two verification
// workflows. Both wrap externally produced material in an account-level
// envelope so that a signature can never be replayed against a different
// account or domain.
package rehash

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rehash-labs/erc7739-go/pkg/contents"
	"github.com/rehash-labs/erc7739-go/pkg/eip712"
)

// PersonalSignTypeHash is the typehash of the fixed plain-message envelope,
// PersonalSign(bytes prefixed).
var PersonalSignTypeHash = eip712.Keccak256Hash([]byte("PersonalSign(bytes prefixed)"))

// The envelope type places the user-defined contents first, then the
// account's domain fields flattened in declaration order. Flattening avoids
// a collision between the account's domain record and an application type
// shaped like a nested EIP712Domain.
const (
	typedDataSignPrefix = "TypedDataSign("
	typedDataSignFields = " contents,string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)"
)

// TypedDataSignTypeHash assembles the envelope typehash for a decoded
// descriptor: TypedDataSign(<Name> contents,...)<Type>. The descriptor's
// type definition rides along as the referenced type, exactly as a typed-data
// signer would serialize it.
func TypedDataSignTypeHash(d contents.Descriptor) common.Hash {
	return eip712.Keccak256Hash(
		[]byte(typedDataSignPrefix),
		[]byte(d.Name),
		[]byte(typedDataSignFields),
		[]byte(d.Type),
	)
}

// TypedDataSignHash builds the final digest for the nested workflow. The
// struct hash covers the contents hash and all five account domain fields in
// fixed order, and the result is bound to the application's domain separator.
func TypedDataSignHash(appDomainSeparator, contentsHash common.Hash, accountDomain eip712.Domain, typeHash common.Hash) common.Hash {
	encoded := make([]byte, 0, 224)
	encoded = append(encoded, typeHash.Bytes()...)
	encoded = append(encoded, contentsHash.Bytes()...)
	encoded = append(encoded, eip712.Keccak256([]byte(accountDomain.Name))...)
	encoded = append(encoded, eip712.Keccak256([]byte(accountDomain.Version))...)
	encoded = append(encoded, eip712.Uint256Word(accountDomain.ChainId)...)
	encoded = append(encoded, eip712.AddressWord(accountDomain.VerifyingContract)...)
	encoded = append(encoded, accountDomain.Salt.Bytes()...)

	return eip712.TypedDataHash(appDomainSeparator, eip712.Keccak256Hash(encoded))
}

// PersonalSignHash builds the final digest for the plain-message workflow.
// The supplied hash is already the digest of the prefixed message, so it
// slots directly into the bytes field of the envelope, bound to the
// account's own domain separator.
func PersonalSignHash(accountDomainSeparator, hash common.Hash) common.Hash {
	encoded := make([]byte, 0, 64)
	encoded = append(encoded, PersonalSignTypeHash.Bytes()...)
	encoded = append(encoded, hash.Bytes()...)

	return eip712.TypedDataHash(accountDomainSeparator, eip712.Keccak256Hash(encoded))
}

// CandidateHash reconstructs the digest the application-side signer produces
// for the embedded contents. A match against the externally supplied digest
// selects the nested workflow.
func CandidateHash(appDomainSeparator, contentsHash common.Hash) common.Hash {
	return eip712.TypedDataHash(appDomainSeparator, contentsHash)
}
