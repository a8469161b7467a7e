package cipher

import (
	"bytes"
	"context"
	"crypto"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// privateKeyDecryptTimeout is the overall wall-clock budget spec.md
// §4.5.2 gives the provided-private-key decrypt path, distinct from the
// host agent's own AgentTimeout in hostagent_decrypt.go.
const privateKeyDecryptTimeout = 30 * time.Second

// openpgpConfig fixes the algorithm choices spec.md §4.5.2 calls for:
// AES-256 symmetric cipher and no compression, so ciphertext size is
// deterministic for a given plaintext length.
func openpgpConfig() *packet.Config {
	return &packet.Config{
		DefaultHash:            crypto.SHA256,
		DefaultCipher:          packet.CipherAES256,
		DefaultCompressionAlgo: packet.CompressionNone,
	}
}

// ReadArmoredPublicKey parses a single ASCII-armored OpenPGP public key
// block, returning its openpgp.Entity. If the key carries multiple
// user-IDs, label fallback (used by the caller for display) takes the
// first, per spec.md §4.5.2.
func ReadArmoredPublicKey(armored []byte) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: key ring is empty", coreerr.ErrWrongEnvelopeFormat)
	}
	return entities[0], nil
}

// PrivateKeyFingerprint parses an armored private key ring and returns
// its primary entity's hex fingerprint, used to key the passphrase
// cache in passphrase_keyring.go. Failure is non-fatal to callers that
// only use this for an optional cache lookup.
func PrivateKeyFingerprint(armoredPrivateKey []byte) (string, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredPrivateKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}
	if len(entities) == 0 || entities[0].PrimaryKey == nil {
		return "", fmt.Errorf("%w: key ring is empty", coreerr.ErrBadPrivateKey)
	}
	return strings.ToUpper(fmt.Sprintf("%x", entities[0].PrimaryKey.Fingerprint)), nil
}

// PrimaryUserID returns a user-ID string of the entity, used as the
// display label. entity.Identities is a map, so for a key with several
// user-IDs which one is returned is not defined; it is not necessarily
// the first in the key's packet order.
func PrimaryUserID(entity *openpgp.Entity) string {
	for _, ident := range entity.Identities {
		if ident.UserId != nil {
			return ident.UserId.Id
		}
	}
	return ""
}

// OpenPGPEncrypt encrypts plaintext for the given armored public key,
// returning an ASCII-armored ciphertext message, per spec.md §4.5.2.
func OpenPGPEncrypt(plaintext []byte, armoredPublicKey []byte) (string, error) {
	entity, err := ReadArmoredPublicKey(armoredPublicKey)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	armorWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("creating armor writer: %w", err)
	}

	plainWriter, err := openpgp.Encrypt(armorWriter, []*openpgp.Entity{entity}, nil, nil, openpgpConfig())
	if err != nil {
		armorWriter.Close()
		return "", fmt.Errorf("creating encrypt writer: %w", err)
	}
	if _, err := plainWriter.Write(plaintext); err != nil {
		plainWriter.Close()
		armorWriter.Close()
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := plainWriter.Close(); err != nil {
		armorWriter.Close()
		return "", fmt.Errorf("closing encrypt writer: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("closing armor writer: %w", err)
	}

	return buf.String(), nil
}

// extractRecipientKeyIDs walks the OpenPGP packet stream of an armored
// message and collects the key-IDs it was encrypted to, without
// attempting to decrypt anything. Used to populate
// coreerr.NoMatchingKeyError.KeyIDs for user diagnosis, per spec.md
// §4.5.2.
func extractRecipientKeyIDs(armored []byte) []coreerr.KeyRef {
	block, err := armor.Decode(bytes.NewReader(armored))
	if err != nil {
		return nil
	}

	var refs []coreerr.KeyRef
	reader := packet.NewReader(block.Body)
	for {
		p, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if ek, ok := p.(*packet.EncryptedKey); ok {
			refs = append(refs, coreerr.KeyRef{
				Type: "RSA",
				ID:   fmt.Sprintf("%X", ek.KeyId),
			})
		}
	}
	return refs
}

// OpenPGPDecryptWithPrivateKey implements spec.md §4.5.2's
// decrypt-with-provided-private-key path: unlock armoredPrivateKey with
// passphrase, then decrypt armoredCiphertext. Errors are translated
// into the taxonomy spec.md §7 names; NoMatchingKeyError carries the
// message's recipient key-IDs regardless of which branch failed.
//
// The underlying go-crypto calls are synchronous with no context
// support, so the unlock+decrypt work runs on its own goroutine and
// races against ctx/privateKeyDecryptTimeout; on expiry this returns
// coreerr.ErrCryptoTimeout while the goroutine is left to finish on its
// own, mirroring the host agent's own timeout in hostagent_decrypt.go.
func OpenPGPDecryptWithPrivateKey(ctx context.Context, armoredCiphertext, armoredPrivateKey []byte, passphrase string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, privateKeyDecryptTimeout)
	defer cancel()

	type result struct {
		plaintext []byte
		err       error
	}
	done := make(chan result, 1)
	go func() {
		plaintext, err := openpgpDecryptWithPrivateKeySync(armoredCiphertext, armoredPrivateKey, passphrase)
		done <- result{plaintext, err}
	}()

	select {
	case r := <-done:
		return r.plaintext, r.err
	case <-runCtx.Done():
		log.Warn().Msg("private key decrypt timed out")
		return nil, coreerr.ErrCryptoTimeout
	}
}

func openpgpDecryptWithPrivateKeySync(armoredCiphertext, armoredPrivateKey []byte, passphrase string) ([]byte, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrBadPrivateKey, err)
	}

	if err := unlockEntities(entities, passphrase); err != nil {
		return nil, err
	}

	block, err := armor.Decode(bytes.NewReader(armoredCiphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}

	md, err := openpgp.ReadMessage(block.Body, entities, nil, openpgpConfig())
	if err != nil {
		if looksLikeMissingKey(err) {
			return nil, &coreerr.NoMatchingKeyError{KeyIDs: extractRecipientKeyIDs(armoredCiphertext)}
		}
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}

	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	return plaintext, nil
}

// unlockEntities decrypts every encrypted private key and subkey in the
// ring with passphrase. A checksum failure from the underlying library
// is translated to coreerr.ErrBadPassphrase.
func unlockEntities(entities openpgp.EntityList, passphrase string) error {
	pass := []byte(passphrase)
	unlocked := false
	for _, entity := range entities {
		if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt(pass); err != nil {
				return fmt.Errorf("%w: %v", coreerr.ErrBadPassphrase, err)
			}
		}
		if entity.PrivateKey != nil {
			unlocked = true
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
				if err := subkey.PrivateKey.Decrypt(pass); err != nil {
					return fmt.Errorf("%w: %v", coreerr.ErrBadPassphrase, err)
				}
			}
		}
	}
	if !unlocked {
		return fmt.Errorf("%w: key ring has no private key material", coreerr.ErrBadPrivateKey)
	}
	return nil
}

func looksLikeMissingKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no key") || strings.Contains(msg, "could not find") || strings.Contains(msg, "unknown issuer") || strings.Contains(msg, "incorrect key")
}
