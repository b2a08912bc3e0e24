package account

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func signDigest(t *testing.T, digest common.Hash) (*ECDSAValidator, []byte) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return NewECDSAValidator(crypto.PubkeyToAddress(key.PublicKey)), sig
}

func TestECDSAValidator(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("authorize transfer"))
	validator, sig := signDigest(t, digest)

	t.Run("Raw recovery id", func(t *testing.T) {
		ok, err := validator.ValidateSignature(digest, sig)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Legacy 27/28 recovery id", func(t *testing.T) {
		legacy := make([]byte, len(sig))
		copy(legacy, sig)
		legacy[64] += 27

		ok, err := validator.ValidateSignature(digest, legacy)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Compact 64-byte form", func(t *testing.T) {
		compact := make([]byte, 64)
		copy(compact, sig[:64])
		compact[32] |= sig[64] << 7

		ok, err := validator.ValidateSignature(digest, compact)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Wrong owner", func(t *testing.T) {
		other := NewECDSAValidator(common.HexToAddress("0x9999999999999999999999999999999999999999"))
		ok, err := other.ValidateSignature(digest, sig)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Wrong digest", func(t *testing.T) {
		ok, err := validator.ValidateSignature(crypto.Keccak256Hash([]byte("other")), sig)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Tampered signature", func(t *testing.T) {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		tampered[10] ^= 0xFF

		ok, err := validator.ValidateSignature(digest, tampered)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Unsupported lengths", func(t *testing.T) {
		for _, n := range []int{0, 1, 63, 66, 128} {
			ok, err := validator.ValidateSignature(digest, make([]byte, n))
			require.NoError(t, err)
			require.False(t, ok, "length %d must not validate", n)
		}
	})

	t.Run("Upper half order s rejected", func(t *testing.T) {
		// Flip to the complementary signature: s' = N - s, v' = 1 - v. It
		// recovers to the same key but must fail the malleability check.
		n := crypto.S256().Params().N
		s := new(big.Int).SetBytes(sig[32:64])
		flipped := make([]byte, 65)
		copy(flipped[:32], sig[:32])
		new(big.Int).Sub(n, s).FillBytes(flipped[32:64])
		flipped[64] = 1 - sig[64]

		ok, err := validator.ValidateSignature(digest, flipped)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestMultiValidator(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("rotate owners"))
	oldOwner, sig := signDigest(t, digest)
	newOwner := NewECDSAValidator(common.HexToAddress("0x8888888888888888888888888888888888888888"))

	t.Run("Any member accepting suffices", func(t *testing.T) {
		m := MultiValidator{newOwner, oldOwner}
		ok, err := m.ValidateSignature(digest, sig)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("No member accepting fails", func(t *testing.T) {
		m := MultiValidator{newOwner}
		ok, err := m.ValidateSignature(digest, sig)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Empty set fails", func(t *testing.T) {
		ok, err := MultiValidator{}.ValidateSignature(digest, sig)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestRecoverSigner(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("recover me"))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	got, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = RecoverSigner(digest, nil)
	require.Error(t, err)
}
