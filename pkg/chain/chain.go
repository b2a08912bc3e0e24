package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/verifier"
)

// ERC-5267 fields bitmap positions
const (
	fieldName = 1 << iota
	fieldVersion
	fieldChainId
	fieldVerifyingContract
	fieldSalt
)

var (
	// eip712Domain() per ERC-5267, selector 0x84b0196e
	selectorEIP712Domain = [4]byte(eip712.Keccak256([]byte("eip712Domain()"))[:4])
	// isValidSignature(bytes32,bytes) per ERC-1271; the selector doubles as
	// the success magic value.
	selectorIsValidSignature = [4]byte(eip712.Keccak256([]byte("isValidSignature(bytes32,bytes)"))[:4])

	eip712DomainReturns = abi.Arguments{
		{Type: mustType("bytes1")},
		{Type: mustType("string")},
		{Type: mustType("string")},
		{Type: mustType("uint256")},
		{Type: mustType("address")},
		{Type: mustType("bytes32")},
		{Type: mustType("uint256[]")},
	}
	isValidSignatureArgs = abi.Arguments{
		{Type: mustType("bytes32")},
		{Type: mustType("bytes")},
	}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

// Caller reads on-chain account metadata: the ERC-5267 domain an account
// advertises and the verdicts its deployed ERC-1271 implementation returns.
type Caller struct {
	ethclient *ethclient.Client
	logger    *zap.Logger
	chainId   *big.Int
}

// NewCaller dials the RPC endpoint and checks connectivity by fetching the
// chain id.
func NewCaller(rpcURL string, logger *zap.Logger) (*Caller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC at %s: %w", rpcURL, err)
	}

	caller, err := NewCallerFromClient(client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return caller, nil
}

func NewCallerFromClient(client *ethclient.Client, logger *zap.Logger) (*Caller, error) {
	chainId, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	logger.Sugar().Infow("Connected to chain", "chainId", chainId.String())

	return &Caller{
		ethclient: client,
		logger:    logger,
		chainId:   chainId,
	}, nil
}

func (c *Caller) ChainId() *big.Int {
	return new(big.Int).Set(c.chainId)
}

func (c *Caller) Close() {
	c.ethclient.Close()
}

// EIP712Domain fetches the domain an account advertises via ERC-5267.
// Fields the account's bitmap marks absent are zeroed in the result.
func (c *Caller) EIP712Domain(ctx context.Context, account common.Address) (eip712.Domain, error) {
	data, err := c.call(ctx, account, selectorEIP712Domain[:])
	if err != nil {
		return eip712.Domain{}, fmt.Errorf("eip712Domain() call failed for %s: %w", account.Hex(), err)
	}
	if len(data) == 0 {
		return eip712.Domain{}, fmt.Errorf("account %s does not implement eip712Domain()", account.Hex())
	}

	return decodeDomain(data)
}

func decodeDomain(data []byte) (eip712.Domain, error) {
	values, err := eip712DomainReturns.Unpack(data)
	if err != nil {
		return eip712.Domain{}, fmt.Errorf("failed to decode eip712Domain() return: %w", err)
	}

	fields := values[0].([1]byte)[0]
	domain := eip712.Domain{}

	if fields&fieldName != 0 {
		domain.Name = values[1].(string)
	}
	if fields&fieldVersion != 0 {
		domain.Version = values[2].(string)
	}
	if fields&fieldChainId != 0 {
		domain.ChainId = values[3].(*big.Int)
	}
	if fields&fieldVerifyingContract != 0 {
		domain.VerifyingContract = values[4].(common.Address)
	}
	if fields&fieldSalt != 0 {
		domain.Salt = values[5].([32]byte)
	}

	return domain, nil
}

// IsValidSignature performs a remote ERC-1271 check against the deployed
// account and returns the raw magic value.
func (c *Caller) IsValidSignature(ctx context.Context, account common.Address, hash common.Hash, signature []byte) ([4]byte, error) {
	payload, err := packIsValidSignature(hash, signature)
	if err != nil {
		return [4]byte{}, err
	}

	data, err := c.call(ctx, account, payload)
	if err != nil {
		if isRevert(err) {
			// A revert is a rejection, not a transport failure.
			return verifier.MagicValueFailure, nil
		}
		return [4]byte{}, fmt.Errorf("isValidSignature call failed for %s: %w", account.Hex(), err)
	}
	if len(data) < 4 {
		return [4]byte{}, fmt.Errorf("account %s returned %d bytes from isValidSignature", account.Hex(), len(data))
	}

	var magic [4]byte
	copy(magic[:], data[:4])
	return magic, nil
}

// SupportsNestedTypedData probes the account with the sentinel hash and an
// empty signature. Accounts that do defensive rehashing answer with the
// support marker.
func (c *Caller) SupportsNestedTypedData(ctx context.Context, account common.Address) (bool, error) {
	magic, err := c.IsValidSignature(ctx, account, verifier.SupportProbeHash, nil)
	if err != nil {
		return false, err
	}
	return magic == verifier.MagicValueSupport, nil
}

func packIsValidSignature(hash common.Hash, signature []byte) ([]byte, error) {
	args, err := isValidSignatureArgs.Pack(hash, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack isValidSignature arguments: %w", err)
	}
	return append(selectorIsValidSignature[:], args...), nil
}

func (c *Caller) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.ethclient.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
}

func isRevert(err error) bool {
	var dataErr rpc.DataError
	return errors.As(err, &dataErr)
}
