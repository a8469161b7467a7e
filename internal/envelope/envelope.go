// Package envelope implements C4, the versioned JSON envelope codec of
// spec.md §3 and §4.4. The three shapes are a tagged union over
// "version"; encoders emit the canonical field order the spec
// recommends to minimize diffs, mirroring the teacher's header-sniffing
// idiom in internal/crypto/encrypt.go (IsFullyEncrypted) generalized
// into Sniff below.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// RecipientMeta is the "metadata.recipient" object shared by V2 and V3
// envelopes.
type RecipientMeta struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	KeyID       string `json:"keyId,omitempty"`
}

// Metadata is the "metadata" object of V2/V3 envelopes.
type Metadata struct {
	Sender    string        `json:"sender"`
	Recipient RecipientMeta `json:"recipient"`
	Pgp       bool          `json:"pgp,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// V1 is the legacy, decrypt-only hybrid envelope: no metadata.
type V1 struct {
	Version          int    `json:"version"`
	EncryptedKey     string `json:"encryptedKey"`
	IV               string `json:"iv"`
	AuthTag          string `json:"authTag"`
	EncryptedContent string `json:"encryptedContent"`
}

// V2 is the standard hybrid envelope: V1 fields plus metadata.
type V2 struct {
	Version          int      `json:"version"`
	Metadata         Metadata `json:"metadata"`
	EncryptedKey     string   `json:"encryptedKey"`
	IV               string   `json:"iv"`
	AuthTag          string   `json:"authTag"`
	EncryptedContent string   `json:"encryptedContent"`
}

// V3 is the OpenPGP envelope.
type V3 struct {
	Version       int      `json:"version"`
	Metadata      Metadata `json:"metadata"`
	PgpEncrypted  string   `json:"pgpEncrypted"`
}

// versionProbe is used only to sniff the "version" field before
// deciding which concrete struct to unmarshal into.
type versionProbe struct {
	Version int `json:"version"`
}

// Sniff reports the envelope version without fully decoding it, so C6
// can dispatch to the right decrypt path.
func Sniff(data []byte) (int, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	switch probe.Version {
	case 1, 2, 3:
		return probe.Version, nil
	default:
		return 0, &coreerr.UnsupportedVersionError{Version: probe.Version}
	}
}

// EncodeV2 marshals a V2 envelope in the canonical field order spec.md
// §4.4 recommends (struct field order already matches it; encoding/json
// preserves struct field order for unkeyed object encoding).
func EncodeV2(env V2) ([]byte, error) {
	env.Version = 2
	return json.Marshal(env)
}

// EncodeV3 marshals a V3 envelope.
func EncodeV3(env V3) ([]byte, error) {
	env.Version = 3
	env.Metadata.Pgp = true
	return json.Marshal(env)
}

// DecodeV1 decodes a legacy envelope. Callers should only reach this
// after Sniff reports version 1.
func DecodeV1(data []byte) (*V1, error) {
	var env V1
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if env.Version != 1 {
		return nil, &coreerr.UnsupportedVersionError{Version: env.Version}
	}
	return &env, nil
}

// DecodeV2 decodes a standard hybrid envelope, validating that the
// metadata timestamp parses as RFC 3339 (it is a time.Time field, so
// encoding/json already enforces that on unmarshal).
func DecodeV2(data []byte) (*V2, error) {
	var env V2
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if env.Version != 2 {
		return nil, &coreerr.UnsupportedVersionError{Version: env.Version}
	}
	return &env, nil
}

// DecodeV3 decodes an OpenPGP envelope.
func DecodeV3(data []byte) (*V3, error) {
	var env V3
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if env.Version != 3 {
		return nil, &coreerr.UnsupportedVersionError{Version: env.Version}
	}
	return &env, nil
}
