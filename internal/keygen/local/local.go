package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/internal/keygen"
	"github.com/rehash-labs/erc7739-go/pkg/wallet"
)

// keyEntry stores the signer and metadata for a key
type keyEntry struct {
	signer    *wallet.PrivateKeySigner
	keyName   string
	aliasName string
}

// LocalKeyGenerator keeps generated keys in memory. Intended for tooling and
// tests where no KMS is available.
type LocalKeyGenerator struct {
	logger   *zap.Logger
	keyStore map[string]*keyEntry // keyId -> keyEntry
	mu       sync.RWMutex         // protect concurrent access to keyStore
}

func NewLocalKeyGenerator(logger *zap.Logger) *LocalKeyGenerator {
	return &LocalKeyGenerator{
		logger:   logger,
		keyStore: make(map[string]*keyEntry),
	}
}

func (l *LocalKeyGenerator) GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*keygen.GeneratedKey, error) {
	signer, err := wallet.GeneratePrivateKeySigner()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())

	l.mu.Lock()
	l.keyStore[keyId] = &keyEntry{
		signer:    signer,
		keyName:   keyName,
		aliasName: aliasName,
	}
	l.mu.Unlock()

	l.logger.Info("Generated local ECDSA key",
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("keyId", keyId),
		zap.String("address", signer.Address().String()),
	)

	return &keygen.GeneratedKey{
		KeyId:         keyId,
		Address:       signer.Address(),
		PublicKey:     signer.PublicKey(),
		PrivateKeyHex: signer.PrivateKeyHex(),
	}, nil
}

func (l *LocalKeyGenerator) GetECDSAKeyById(ctx context.Context, keyId string) (*keygen.GeneratedKey, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	return &keygen.GeneratedKey{
		KeyId:         keyId,
		Address:       entry.signer.Address(),
		PublicKey:     entry.signer.PublicKey(),
		PrivateKeyHex: entry.signer.PrivateKeyHex(),
	}, nil
}

// Signer returns the wallet signer backing a generated key so tooling can
// sign with it directly.
func (l *LocalKeyGenerator) Signer(keyId string) (*wallet.PrivateKeySigner, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}
	return entry.signer, nil
}

// LoadPrivateKeyFromHex loads a pre-existing private key into the key store.
// The hex string can optionally start with "0x".
func (l *LocalKeyGenerator) LoadPrivateKeyFromHex(keyId string, privateKeyHex string, keyName string, aliasName string) error {
	signer, err := wallet.NewPrivateKeySignerFromHex(privateKeyHex)
	if err != nil {
		return fmt.Errorf("failed to parse private key from hex: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}

	l.keyStore[keyId] = &keyEntry{
		signer:    signer,
		keyName:   keyName,
		aliasName: aliasName,
	}

	l.logger.Info("Loaded private key into store",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("address", signer.Address().String()),
	)
	return nil
}

// KeyExists checks if a key with the given ID exists in the store.
func (l *LocalKeyGenerator) KeyExists(keyId string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.keyStore[keyId]
	return exists
}
