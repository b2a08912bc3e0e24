package keygen

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GeneratedKey describes a provisioned secp256k1 signing key.
type GeneratedKey struct {
	KeyId     string
	Address   common.Address
	PublicKey *ecdsa.PublicKey
	// PrivateKeyHex is set only for locally generated keys. KMS-backed key
	// material never leaves the HSM.
	PrivateKeyHex string
}

func (gk *GeneratedKey) GetPublicKeyBytes() ([]byte, error) {
	if gk.PublicKey == nil {
		return nil, fmt.Errorf("public key is nil")
	}
	return crypto.FromECDSAPub(gk.PublicKey), nil
}

func (gk *GeneratedKey) GetPublicKeyHex() (string, error) {
	pubKeyBytes, err := gk.GetPublicKeyBytes()
	if err != nil {
		return "", fmt.Errorf("failed to get public key bytes: %w", err)
	}
	return hexutil.Encode(pubKeyBytes), nil
}

// IKeyGenerator provisions signing keys for wallet owners. Signing itself
// lives in pkg/wallet; generators only create and look up key material.
type IKeyGenerator interface {
	GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*GeneratedKey, error)
	GetECDSAKeyById(ctx context.Context, keyId string) (*GeneratedKey, error)
}
