package testutil

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/registry"
	"github.com/rehash-labs/erc7739-go/pkg/rehash"
	"github.com/rehash-labs/erc7739-go/pkg/wallet"
)

// CreateTestSigner generates a throwaway secp256k1 signer.
func CreateTestSigner(t *testing.T) *wallet.PrivateKeySigner {
	t.Helper()
	signer, err := wallet.GeneratePrivateKeySigner()
	if err != nil {
		t.Fatalf("Failed to generate test signer: %v", err)
	}
	return signer
}

// CreateTestDomain builds a deterministic EIP-712 domain with the given name.
func CreateTestDomain(name string) eip712.Domain {
	return eip712.Domain{
		Name:              name,
		Version:           "1",
		ChainId:           big.NewInt(31337),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
	}
}

// CreateTestAccountRecord builds a stored record owned by the signer.
func CreateTestAccountRecord(accountID string, signer *wallet.PrivateKeySigner) *registry.AccountRecord {
	now := time.Now().Unix()
	return &registry.AccountRecord{
		AccountID: accountID,
		Owner:     signer.Address(),
		Domain:    CreateTestDomain("TestAccount-" + accountID),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestTypedBlob signs contents under the nested typed-data workflow and
// returns the app-side digest plus the extended signature blob the verifier
// expects for it.
func CreateTestTypedBlob(t *testing.T, signer *wallet.PrivateKeySigner, accountDomain, appDomain eip712.Domain, contents []byte, description string) (common.Hash, []byte) {
	t.Helper()

	contentsHash := crypto.Keccak256Hash(contents)
	blob, err := wallet.SignTypedData(context.Background(), signer, accountDomain, appDomain, contentsHash, description)
	if err != nil {
		t.Fatalf("Failed to sign typed data: %v", err)
	}

	return rehash.CandidateHash(appDomain.Separator(), contentsHash), blob
}

// CreateTestPersonalBlob signs message under the plain-message workflow and
// returns the prefixed-message hash plus the 65-byte signature.
func CreateTestPersonalBlob(t *testing.T, signer *wallet.PrivateKeySigner, accountDomain eip712.Domain, message []byte) (common.Hash, []byte) {
	t.Helper()

	hash, sig, err := wallet.SignPersonal(context.Background(), signer, accountDomain, message)
	if err != nil {
		t.Fatalf("Failed to sign personal message: %v", err)
	}
	return hash, sig
}
