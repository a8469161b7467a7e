package envelope

import (
	"encoding/base64"
	"fmt"
)

const (
	aesGCMTagSize  = 16
	ivSize12       = 12
	ivSize16Legacy = 16
)

// DecodeB64 decodes a standard-alphabet, padded base64 field. All four
// hybrid envelope fields use this alphabet per spec.md §3.
func DecodeB64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeB64 encodes bytes with the standard padded alphabet.
func EncodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// ValidateIV accepts both the 12-byte IV spec.md mandates for new
// encodes and the 16-byte IV legacy V1/V2 producers emit, per spec.md
// §9's open-question resolution ("Implementers SHOULD accept both on
// decrypt").
func ValidateIV(iv []byte) error {
	if len(iv) != ivSize12 && len(iv) != ivSize16Legacy {
		return fmt.Errorf("invalid IV length %d (want %d or %d)", len(iv), ivSize12, ivSize16Legacy)
	}
	return nil
}

// ValidateAuthTag enforces the exact 16-byte GCM tag size spec.md §3
// requires.
func ValidateAuthTag(tag []byte) error {
	if len(tag) != aesGCMTagSize {
		return fmt.Errorf("invalid auth tag length %d (want %d)", len(tag), aesGCMTagSize)
	}
	return nil
}
