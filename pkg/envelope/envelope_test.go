package envelope

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sig := bytes.Repeat([]byte{0xAA}, 65)
	sep := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	contentsHash := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	description := "Mail(address from,address to,string message)"

	blob, err := Encode(sig, sep, contentsHash, description)
	require.NoError(t, err)

	env, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, sig, env.OriginalSignature)
	require.Equal(t, sep, env.AppDomainSeparator)
	require.Equal(t, contentsHash, env.ContentsHash)
	require.Equal(t, description, env.ContentsDescription)
}

func TestByteLayout(t *testing.T) {
	sig := bytes.Repeat([]byte{0xAA}, 65)
	sep := bytes.Repeat([]byte{0x11}, 32)
	contentsHash := bytes.Repeat([]byte{0x22}, 32)
	description := []byte("Mail(address from)")

	// Hand-assembled blob: sig || sep || contentsHash || description || len.
	var want []byte
	want = append(want, sig...)
	want = append(want, sep...)
	want = append(want, contentsHash...)
	want = append(want, description...)
	want = append(want, 0x00, byte(len(description)))

	blob, err := Encode(sig, common.BytesToHash(sep), common.BytesToHash(contentsHash), string(description))
	require.NoError(t, err)
	require.Equal(t, want, blob)

	env, err := Decode(want)
	require.NoError(t, err)
	require.Equal(t, sig, env.OriginalSignature)
	require.Equal(t, common.BytesToHash(sep), env.AppDomainSeparator)
	require.Equal(t, common.BytesToHash(contentsHash), env.ContentsHash)
	require.Equal(t, string(description), env.ContentsDescription)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Run("Too short for fixed tail", func(t *testing.T) {
		_, err := Decode(bytes.Repeat([]byte{0x01}, 65))
		require.Error(t, err)
	})

	t.Run("Empty blob", func(t *testing.T) {
		_, err := Decode(nil)
		require.Error(t, err)
	})

	t.Run("Length field exceeds buffer", func(t *testing.T) {
		blob, err := Encode(bytes.Repeat([]byte{0xAA}, 65), common.Hash{}, common.Hash{}, "Mail(address from)")
		require.NoError(t, err)

		// Inflate the trailing length beyond what the buffer holds.
		blob[len(blob)-2] = 0xFF
		blob[len(blob)-1] = 0xFF
		_, err = Decode(blob)
		require.Error(t, err)
	})
}

func TestDecodeBoundaries(t *testing.T) {
	t.Run("Minimal blob has empty signature and description", func(t *testing.T) {
		blob, err := Encode(nil, common.Hash{}, common.Hash{}, "")
		require.NoError(t, err)
		require.Len(t, blob, 66)

		env, err := Decode(blob)
		require.NoError(t, err)
		require.Empty(t, env.OriginalSignature)
		require.Empty(t, env.ContentsDescription)
	})

	t.Run("Description consuming all variable bytes", func(t *testing.T) {
		description := "Order(Item item)Item(uint256 qty)"
		blob, err := Encode(nil, common.Hash{}, common.Hash{}, description)
		require.NoError(t, err)

		env, err := Decode(blob)
		require.NoError(t, err)
		require.Empty(t, env.OriginalSignature)
		require.Equal(t, description, env.ContentsDescription)
	})
}

func TestEncodeRejectsOversizedDescription(t *testing.T) {
	_, err := Encode(nil, common.Hash{}, common.Hash{}, string(bytes.Repeat([]byte{'A'}, 65536)))
	require.Error(t, err)
}

func TestEnvelopeDescriptor(t *testing.T) {
	t.Run("Implicit descriptor", func(t *testing.T) {
		blob, err := Encode(nil, common.Hash{}, common.Hash{}, "Mail(address from)")
		require.NoError(t, err)

		env, err := Decode(blob)
		require.NoError(t, err)

		d, err := env.Descriptor()
		require.NoError(t, err)
		require.Equal(t, "Mail", d.Name)
		require.False(t, d.Explicit)
	})

	t.Run("Explicit descriptor", func(t *testing.T) {
		blob, err := Encode(nil, common.Hash{}, common.Hash{}, "Attachment(bytes blob)Mail(Attachment a)Mail")
		require.NoError(t, err)

		env, err := Decode(blob)
		require.NoError(t, err)

		d, err := env.Descriptor()
		require.NoError(t, err)
		require.Equal(t, "Mail", d.Name)
		require.Equal(t, "Attachment(bytes blob)Mail(Attachment a)", d.Type)
		require.True(t, d.Explicit)
	})
}
