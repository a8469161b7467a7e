package store

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"
)

// Backend is one of the five KeyRecord namespaces spec.md §3 defines.
type Backend string

const (
	BackendSelf    Backend = "self"
	BackendFriend  Backend = "friend"
	BackendPgp     Backend = "pgp"
	BackendKeybase Backend = "keybase"
	BackendGithub  Backend = "github"
	// BackendAny is not a real namespace; Get/Remove treat it as
	// "search every backend in the fixed precedence order".
	BackendAny Backend = "any"
)

// precedence is the fixed search order spec.md §4.1 requires for
// backend="any" lookups.
var precedence = []Backend{BackendSelf, BackendFriend, BackendPgp, BackendKeybase, BackendGithub}

// KeyKind is derived from Backend: only "self" and "friend" are RSA, all
// others are OpenPGP.
type KeyKind string

const (
	KeyKindRSAPem          KeyKind = "rsa_pem"
	KeyKindOpenPGPArmored  KeyKind = "openpgp_armored"
)

// KeyRecord is the essential entity of spec.md §3.
type KeyRecord struct {
	ID                string    `json:"id"`
	Backend           Backend   `json:"backend"`
	KeyKind           KeyKind   `json:"key_kind"`
	Fingerprint       string    `json:"fingerprint"`
	PublicPath        string    `json:"public_path"`
	PrivatePath       string    `json:"private_path,omitempty"`
	Email             string    `json:"email,omitempty"`
	Username          string    `json:"username,omitempty"`
	Name              string    `json:"name,omitempty"`
	AddedAt           time.Time `json:"added_at"`
	LastUsedAt        time.Time `json:"last_used_at"`
	SourceURLOrOrigin string    `json:"source_url_or_origin,omitempty"`
}

// IsOpenPGP reports whether the record's key material is OpenPGP
// armored rather than an RSA PEM key.
func (r KeyRecord) IsOpenPGP() bool {
	return r.KeyKind == KeyKindOpenPGPArmored
}

// validateID rejects an id/name that would escape its backend directory
// when joined into a filename, generalizing the teacher's
// ValidateFilePath path-traversal guard from tracked-file paths to key
// identifiers.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("id %q cannot contain path separators", id)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("id %q is not a valid identifier", id)
	}
	return nil
}

// FingerprintRSA computes the SHA-256 hex digest of the DER encoding of
// an RSA public key PEM block, per spec.md §3.
func FingerprintRSA(pemBytes []byte) (string, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return "", fmt.Errorf("not a valid PEM block")
	}
	sum := sha256.Sum256(block.Bytes)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateOpenPGPArmor checks only the armor header shape spec.md §3
// requires ("first line is -----BEGIN PGP PUBLIC KEY BLOCK-----"),
// ignoring leading whitespace. It does not parse the key or compute a
// fingerprint; callers of PutOpenPGP supply the fingerprint.
func ValidateOpenPGPArmor(armored []byte) error {
	text := strings.TrimLeft(string(armored), "\r\n\t ")
	if !strings.HasPrefix(text, "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		return fmt.Errorf("not an ascii-armored OpenPGP public key block")
	}
	return nil
}

// ValidateRSAPem checks that pemBytes carries one of the two PEM headers
// the hybrid engine accepts (spec.md §4.5.1).
func ValidateRSAPem(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("not a valid PEM block")
	}
	switch block.Type {
	case "PUBLIC KEY", "RSA PUBLIC KEY":
		if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			if _, err2 := x509.ParsePKCS1PublicKey(block.Bytes); err2 != nil {
				return fmt.Errorf("not a valid RSA public key: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unexpected PEM header %q", block.Type)
	}
}
