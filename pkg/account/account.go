// Package account supplies the signature validation primitives a
// smart-contract account delegates to: secp256k1 recovery against a known
// owner, and composition over multiple owners.
package account

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var errMalleableSignature = errors.New("signature values out of range")

func errInvalidSignatureLength(n int) error {
	return fmt.Errorf("unsupported signature length %d", n)
}

// Validator checks a signature against a digest. Implementations report bad
// signatures through the boolean, reserving errors for conditions outside
// the signature itself.
type Validator interface {
	ValidateSignature(digest common.Hash, signature []byte) (bool, error)
}

// ECDSAValidator accepts signatures recoverable to a single owner address.
// Both 65-byte r||s||v and 64-byte compact r||vs encodings are supported,
// with v in {0, 1, 27, 28}. Upper-half s values are rejected.
type ECDSAValidator struct {
	Owner common.Address
}

// NewECDSAValidator creates a validator for the given owner address.
func NewECDSAValidator(owner common.Address) *ECDSAValidator {
	return &ECDSAValidator{Owner: owner}
}

// ValidateSignature recovers the signer and compares it against the owner.
func (v *ECDSAValidator) ValidateSignature(digest common.Hash, signature []byte) (bool, error) {
	recovered, err := RecoverSigner(digest, signature)
	if err != nil {
		return false, nil
	}
	return recovered == v.Owner, nil
}

// MultiValidator accepts a signature when any member validator does.
type MultiValidator []Validator

// ValidateSignature tries each member in order.
func (m MultiValidator) ValidateSignature(digest common.Hash, signature []byte) (bool, error) {
	var lastErr error
	for _, v := range m {
		ok, err := v.ValidateSignature(digest, signature)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, lastErr
}

// RecoverSigner returns the address that produced signature over digest.
// The signature is normalized to the 65-byte recovery form first; malleable
// or structurally invalid signatures fail.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	normalized, err := normalizeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// normalizeSignature converts supported encodings to r||s||v with v in
// {0, 1} and enforces the lower-half-order s constraint.
func normalizeSignature(signature []byte) ([]byte, error) {
	var r, s *big.Int
	var recoveryID byte

	switch len(signature) {
	case crypto.SignatureLength:
		recoveryID = signature[64]
		if recoveryID >= 27 {
			recoveryID -= 27
		}
		r = new(big.Int).SetBytes(signature[:32])
		s = new(big.Int).SetBytes(signature[32:64])
	case 64:
		// Compact form: the top bit of the second word carries the parity.
		r = new(big.Int).SetBytes(signature[:32])
		vs := make([]byte, 32)
		copy(vs, signature[32:])
		recoveryID = vs[0] >> 7
		vs[0] &= 0x7f
		s = new(big.Int).SetBytes(vs)
	default:
		return nil, errInvalidSignatureLength(len(signature))
	}

	if !crypto.ValidateSignatureValues(recoveryID, r, s, true) {
		return nil, errMalleableSignature
	}

	normalized := make([]byte, crypto.SignatureLength)
	r.FillBytes(normalized[:32])
	s.FillBytes(normalized[32:64])
	normalized[64] = recoveryID
	return normalized, nil
}
