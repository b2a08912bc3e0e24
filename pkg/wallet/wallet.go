package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rehash-labs/erc7739-go/pkg/contents"
	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/envelope"
	"github.com/rehash-labs/erc7739-go/pkg/rehash"
)

// Signer signs 32-byte digests and reports the address signatures recover to.
// Signatures are 65 bytes [R || S || V] with V in {27, 28}.
type Signer interface {
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)
	Address() common.Address
}

// SignTypedData runs the nested typed-data workflow from the wallet side: it
// rehashes the app's contents under the account domain, signs the nested
// digest, and wraps the signature into the extended format the verifier
// expects. The returned blob validates against the app digest
// keccak256(0x1901 || appDomain.Separator() || contentsHash).
func SignTypedData(ctx context.Context, signer Signer, accountDomain, appDomain eip712.Domain, contentsHash common.Hash, description string) ([]byte, error) {
	d, err := contents.ParseDescriptor(description)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contents description: %w", err)
	}

	appSeparator := appDomain.Separator()
	digest := rehash.TypedDataSignHash(appSeparator, contentsHash, accountDomain, rehash.TypedDataSignTypeHash(d))

	sig, err := signer.SignDigest(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign nested digest: %w", err)
	}

	return envelope.Encode(sig, appSeparator, contentsHash, description)
}

// SignPersonal runs the plain-message workflow: it prefixes and hashes the
// message per EIP-191, rehashes that under the account domain, and signs.
// The returned hash is what a verifying app should pass alongside the
// signature.
func SignPersonal(ctx context.Context, signer Signer, accountDomain eip712.Domain, message []byte) (common.Hash, []byte, error) {
	hash := common.BytesToHash(accounts.TextHash(message))
	digest := rehash.PersonalSignHash(accountDomain.Separator(), hash)

	sig, err := signer.SignDigest(ctx, digest)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to sign personal digest: %w", err)
	}

	return hash, sig, nil
}
