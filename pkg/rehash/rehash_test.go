package rehash

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"github.com/rehash-labs/erc7739-go/pkg/contents"
	"github.com/rehash-labs/erc7739-go/pkg/eip712"
)

const mailType = "Mail(address from,address to,string message)"

func mailTypes() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Mail": []apitypes.Type{
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "message", Type: "string"},
		},
		"TypedDataSign": []apitypes.Type{
			{Name: "contents", Type: "Mail"},
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
			{Name: "salt", Type: "bytes32"},
		},
	}
}

func TestTypedDataSignTypeHash(t *testing.T) {
	d := contents.Descriptor{Name: "Mail", Type: mailType}

	assembled := fmt.Sprintf(
		"TypedDataSign(%s contents,string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)%s",
		d.Name, d.Type)
	require.Equal(t, eip712.Keccak256Hash([]byte(assembled)), TypedDataSignTypeHash(d))
}

func TestTypedDataSignHashMatchesGethSigner(t *testing.T) {
	appDomain := eip712.Domain{
		Name:              "Marketplace",
		Version:           "1",
		ChainId:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"),
	}
	accountDomain := eip712.Domain{
		Name:              "SmartAccount",
		Version:           "3",
		ChainId:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0xBbBBbbBBbBbbbBBBBBbbBBbBbbbbBBbBbbbbBBbB"),
		Salt:              eip712.Keccak256Hash([]byte("account salt")),
	}

	mailMessage := apitypes.TypedDataMessage{
		"from":    "0x1111111111111111111111111111111111111111",
		"to":      "0x2222222222222222222222222222222222222222",
		"message": "gm",
	}
	typedData := apitypes.TypedData{
		Types:       mailTypes(),
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:              appDomain.Name,
			Version:           appDomain.Version,
			ChainId:           math.NewHexOrDecimal256(1),
			VerifyingContract: appDomain.VerifyingContract.Hex(),
		},
		Message: mailMessage,
	}

	appDigest, _, err := apitypes.TypedDataAndHash(typedData)
	require.NoError(t, err)
	contentsHashBytes, err := typedData.HashStruct("Mail", mailMessage)
	require.NoError(t, err)
	contentsHash := common.BytesToHash(contentsHashBytes)

	appSep := appDomain.Separator()

	t.Run("Candidate reproduces app digest", func(t *testing.T) {
		require.Equal(t, common.BytesToHash(appDigest), CandidateHash(appSep, contentsHash))
	})

	t.Run("Envelope typehash matches geth encodeType", func(t *testing.T) {
		want := typedData.TypeHash("TypedDataSign")
		got := TypedDataSignTypeHash(contents.Descriptor{Name: "Mail", Type: mailType})
		require.Equal(t, common.BytesToHash(want), got)
	})

	t.Run("Final digest matches geth struct hashing", func(t *testing.T) {
		envelopeMessage := apitypes.TypedDataMessage{
			"contents":          mailMessage,
			"name":              accountDomain.Name,
			"version":           accountDomain.Version,
			"chainId":           math.NewHexOrDecimal256(1),
			"verifyingContract": accountDomain.VerifyingContract.Hex(),
			"salt":              accountDomain.Salt.Hex(),
		}
		wantStructHash, err := typedData.HashStruct("TypedDataSign", envelopeMessage)
		require.NoError(t, err)
		want := eip712.TypedDataHash(appSep, common.BytesToHash(wantStructHash))

		typeHash := TypedDataSignTypeHash(contents.Descriptor{Name: "Mail", Type: mailType})
		got := TypedDataSignHash(appSep, contentsHash, accountDomain, typeHash)
		require.Equal(t, want, got)
	})
}

func TestPersonalSignHashMatchesGethSigner(t *testing.T) {
	accountDomain := eip712.Domain{
		Name:              "SmartAccount",
		Version:           "3",
		ChainId:           big.NewInt(10),
		VerifyingContract: common.HexToAddress("0xBbBBbbBBbBbbbBBBBBbbBBbBbbbbBBbBbbbbBBbB"),
	}

	raw := []byte("hello world")
	prefixed := []byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(raw), raw))
	messageHash := common.BytesToHash(accounts.TextHash(raw))

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"PersonalSign": []apitypes.Type{
				{Name: "prefixed", Type: "bytes"},
			},
		},
		PrimaryType: "PersonalSign",
		Domain: apitypes.TypedDataDomain{
			Name:              accountDomain.Name,
			Version:           accountDomain.Version,
			ChainId:           math.NewHexOrDecimal256(10),
			VerifyingContract: accountDomain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{"prefixed": prefixed},
	}

	wantDigest, _, err := apitypes.TypedDataAndHash(typedData)
	require.NoError(t, err)

	got := PersonalSignHash(accountDomain.Separator(), messageHash)
	require.Equal(t, common.BytesToHash(wantDigest), got)
}

func TestHashTamperSensitivity(t *testing.T) {
	appSep := eip712.Keccak256Hash([]byte("app"))
	contentsHash := eip712.Keccak256Hash([]byte("contents"))
	accountDomain := eip712.Domain{
		Name:              "SmartAccount",
		Version:           "1",
		ChainId:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}
	typeHash := TypedDataSignTypeHash(contents.Descriptor{Name: "Mail", Type: mailType})

	base := TypedDataSignHash(appSep, contentsHash, accountDomain, typeHash)

	t.Run("Deterministic", func(t *testing.T) {
		require.Equal(t, base, TypedDataSignHash(appSep, contentsHash, accountDomain, typeHash))
	})

	t.Run("Flipped contents hash bit", func(t *testing.T) {
		tampered := contentsHash
		tampered[0] ^= 0x01
		require.NotEqual(t, base, TypedDataSignHash(appSep, tampered, accountDomain, typeHash))
	})

	t.Run("Flipped separator bit", func(t *testing.T) {
		tampered := appSep
		tampered[31] ^= 0x80
		require.NotEqual(t, base, TypedDataSignHash(tampered, contentsHash, accountDomain, typeHash))
	})

	t.Run("Different descriptor", func(t *testing.T) {
		other := TypedDataSignTypeHash(contents.Descriptor{Name: "Mail2", Type: "Mail2(address from)"})
		require.NotEqual(t, base, TypedDataSignHash(appSep, contentsHash, accountDomain, other))
	})

	t.Run("Different account domain", func(t *testing.T) {
		other := accountDomain
		other.Version = "2"
		require.NotEqual(t, base, TypedDataSignHash(appSep, contentsHash, other, typeHash))
	})
}

func BenchmarkTypedDataSignHash(b *testing.B) {
	appSep := eip712.Keccak256Hash([]byte("app"))
	contentsHash := eip712.Keccak256Hash([]byte("contents"))
	accountDomain := eip712.Domain{
		Name:              "SmartAccount",
		Version:           "1",
		ChainId:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}
	typeHash := TypedDataSignTypeHash(contents.Descriptor{Name: "Mail", Type: mailType})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TypedDataSignHash(appSep, contentsHash, accountDomain, typeHash)
	}
}
