// Package envelope implements the extended-signature wire format: the
// original signature followed by the app domain separator, the contents
// hash, the contents description, and a trailing big-endian 16-bit
// description length.
package envelope

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rehash-labs/erc7739-go/pkg/contents"
)

// fixedTailLen is the byte count of the fixed fields after the original
// signature: two 32-byte words plus the 16-bit length.
const fixedTailLen = 66

// Envelope is a decoded extended signature.
type Envelope struct {
	OriginalSignature   []byte
	AppDomainSeparator  common.Hash
	ContentsHash        common.Hash
	ContentsDescription string
}

// Decode parses an extended signature blob. The trailing length field governs
// how many bytes belong to the contents description; everything before the
// fixed tail and the description is the original signature.
func Decode(blob []byte) (*Envelope, error) {
	if len(blob) < fixedTailLen {
		return nil, fmt.Errorf("extended signature too short: %d bytes, need at least %d", len(blob), fixedTailLen)
	}

	n := len(blob)
	descLen := int(binary.BigEndian.Uint16(blob[n-2:]))
	if descLen > n-fixedTailLen {
		return nil, fmt.Errorf("description length %d exceeds remaining %d bytes", descLen, n-fixedTailLen)
	}

	descStart := n - 2 - descLen
	return &Envelope{
		OriginalSignature:   blob[:descStart-64],
		AppDomainSeparator:  common.BytesToHash(blob[descStart-64 : descStart-32]),
		ContentsHash:        common.BytesToHash(blob[descStart-32 : descStart]),
		ContentsDescription: string(blob[descStart : n-2]),
	}, nil
}

// Encode builds an extended signature blob from its parts. The description
// must fit the 16-bit length field.
func Encode(originalSignature []byte, appDomainSeparator, contentsHash common.Hash, contentsDescription string) ([]byte, error) {
	if len(contentsDescription) > math.MaxUint16 {
		return nil, fmt.Errorf("contents description too long: %d bytes", len(contentsDescription))
	}

	blob := make([]byte, 0, len(originalSignature)+len(contentsDescription)+fixedTailLen)
	blob = append(blob, originalSignature...)
	blob = append(blob, appDomainSeparator.Bytes()...)
	blob = append(blob, contentsHash.Bytes()...)
	blob = append(blob, contentsDescription...)
	blob = binary.BigEndian.AppendUint16(blob, uint16(len(contentsDescription)))
	return blob, nil
}

// Descriptor parses the envelope's contents description.
func (e *Envelope) Descriptor() (contents.Descriptor, error) {
	return contents.ParseDescriptor(e.ContentsDescription)
}
