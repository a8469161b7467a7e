// Package cipher implements C5, the two encryption engines of spec.md
// §4.5: the hybrid RSA-OAEP + AES-256-GCM engine, and the OpenPGP
// engine (native library plus optional host-agent subprocess). Go's
// standard crypto/aes, crypto/rsa, crypto/sha256 and crypto/rand give
// the exact primitives spec.md §4.5.1 names and are the unqualified
// idiomatic choice here — no repo in the example pack reaches for a
// third-party AES/RSA primitive library (see DESIGN.md).
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/logging"
)

var log = logging.New("cipher")

const (
	contentKeySize = 32 // AES-256
	ivSize         = 12 // GCM-conventional; spec.md §9 resolves the 12-vs-16 question in favor of 12 on encode
)

// HybridFields is the four-field output of the hybrid engine; C6 wraps
// these into a V2 envelope, C4 (de)serializes them as base64 JSON
// strings.
type HybridFields struct {
	EncryptedKey     []byte
	IV               []byte
	AuthTag          []byte
	EncryptedContent []byte
}

// ParseRSAPublicKey accepts PEM with header "PUBLIC KEY" (PKIX) or
// "RSA PUBLIC KEY" (PKCS1), per spec.md §4.5.1. An OpenPGP-armored key
// is rejected with WrongKeyKindError so the caller knows to use the
// OpenPGP path instead.
func ParseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("not a valid PEM block")
	}

	switch block.Type {
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKIX public key: %w", err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("PEM key is not RSA")
		}
		return rsaPub, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PGP PUBLIC KEY BLOCK":
		return nil, &coreerr.WrongKeyKindError{Actual: "pgp"}
	default:
		return nil, fmt.Errorf("unrecognized PEM header %q", block.Type)
	}
}

// ParseRSAPrivateKey accepts PKCS1 or PKCS8 PEM-encoded RSA private
// keys.
func ParseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: not a valid PEM block", coreerr.ErrBadPrivateKey)
	}

	if block.Type == "PGP PRIVATE KEY BLOCK" {
		return nil, &coreerr.WrongKeyKindError{Actual: "pgp"}
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", coreerr.ErrBadPrivateKey)
	}
	return rsaKey, nil
}

// HybridEncrypt implements spec.md §4.5.1's encrypt algorithm: a fresh
// random 32-byte content key and 12-byte IV, AES-256-GCM over the
// plaintext with empty AAD, then RSA-OAEP-SHA256 wrapping of the
// content key. K and IV are drawn from crypto/rand per call — no
// session reuse, as spec.md requires.
func HybridEncrypt(plaintext []byte, rsaPublicPem []byte) (*HybridFields, error) {
	pub, err := ParseRSAPublicKey(rsaPublicPem)
	if err != nil {
		return nil, err
	}

	contentKey := make([]byte, contentKeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return nil, fmt.Errorf("generating content key: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	block, err := aes.NewCipher(contentKey)
	if err != nil {
		return nil, fmt.Errorf("constructing aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("constructing gcm: %w", err)
	}

	// gcm.Seal appends the tag to the end of the ciphertext; split it
	// back out so the envelope carries authTag and encryptedContent as
	// distinct base64 fields, per spec.md §3.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	encryptedContent := sealed[:tagStart]
	authTag := sealed[tagStart:]

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, contentKey, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa-oaep wrapping content key: %w", err)
	}

	return &HybridFields{
		EncryptedKey:     encryptedKey,
		IV:               iv,
		AuthTag:          authTag,
		EncryptedContent: encryptedContent,
	}, nil
}

// HybridDecrypt reverses HybridEncrypt. RSA unwrap failure surfaces as
// coreerr.ErrBadPrivateKey; GCM tag mismatch surfaces as
// coreerr.ErrIntegrityFailure and is always fatal — spec.md §4.5.1
// forbids retrying it.
func HybridDecrypt(fields HybridFields, rsaPrivatePem []byte) ([]byte, error) {
	priv, err := ParseRSAPrivateKey(rsaPrivatePem)
	if err != nil {
		return nil, err
	}

	contentKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, fields.EncryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}

	block, err := aes.NewCipher(contentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(fields.IV))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}

	sealed := append(append([]byte{}, fields.EncryptedContent...), fields.AuthTag...)
	// gcm.Open performs a constant-time tag comparison internally
	// (crypto/cipher's gcm implementation), satisfying spec.md
	// §4.5.1's "tag comparison MUST be constant-time" requirement.
	plaintext, err := gcm.Open(nil, fields.IV, sealed, nil)
	if err != nil {
		log.Warn().Msg("gcm tag verification failed; treating as tamper-evident integrity failure")
		return nil, coreerr.ErrIntegrityFailure
	}
	return plaintext, nil
}

// GenerateSelfKeypair generates the 4096-bit RSA keypair spec.md §4.1
// requires for put_self, returning PEM-encoded public (PKIX) and
// private (PKCS1) blocks.
func GenerateSelfKeypair() (publicPem, privatePem []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, nil, fmt.Errorf("generating rsa-4096 keypair: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling public key: %w", err)
	}
	publicPem = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	privDER := x509.MarshalPKCS1PrivateKey(key)
	privatePem = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER})

	return publicPem, privatePem, nil
}
