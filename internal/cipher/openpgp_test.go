package cipher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// generateTestEntity builds an unencrypted OpenPGP keypair and returns its
// armored public and private key blocks.
func generateTestEntity(t *testing.T) (publicArmor, privateArmor []byte, entity *openpgp.Entity) {
	t.Helper()
	cfg := openpgpConfig()
	ent, err := openpgp.NewEntity("Test User", "", "test@example.com", cfg)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}

	var pubBuf bytes.Buffer
	pubWriter, err := armor.Encode(&pubBuf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode public: %v", err)
	}
	if err := ent.Serialize(pubWriter); err != nil {
		t.Fatalf("Serialize public: %v", err)
	}
	if err := pubWriter.Close(); err != nil {
		t.Fatalf("close public armor: %v", err)
	}

	var privBuf bytes.Buffer
	privWriter, err := armor.Encode(&privBuf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode private: %v", err)
	}
	if err := ent.SerializePrivate(privWriter, nil); err != nil {
		t.Fatalf("SerializePrivate: %v", err)
	}
	if err := privWriter.Close(); err != nil {
		t.Fatalf("close private armor: %v", err)
	}

	return pubBuf.Bytes(), privBuf.Bytes(), ent
}

func TestOpenPGPEncryptDecryptRoundTrip(t *testing.T) {
	pubArmor, privArmor, _ := generateTestEntity(t)

	plaintext := []byte("a secret paste body")
	ciphertext, err := OpenPGPEncrypt(plaintext, pubArmor)
	if err != nil {
		t.Fatalf("OpenPGPEncrypt: %v", err)
	}

	decrypted, err := OpenPGPDecryptWithPrivateKey(context.Background(), []byte(ciphertext), privArmor, "")
	if err != nil {
		t.Fatalf("OpenPGPDecryptWithPrivateKey: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestOpenPGPDecryptWrongPrivateKeyReturnsNoMatchingKey(t *testing.T) {
	pubArmor, _, _ := generateTestEntity(t)
	_, otherPrivArmor, _ := generateTestEntity(t)

	ciphertext, err := OpenPGPEncrypt([]byte("hello"), pubArmor)
	if err != nil {
		t.Fatalf("OpenPGPEncrypt: %v", err)
	}

	_, err = OpenPGPDecryptWithPrivateKey(context.Background(), []byte(ciphertext), otherPrivArmor, "")
	if err == nil {
		t.Fatal("expected decrypt with the wrong private key to fail")
	}
	if _, ok := err.(*coreerr.NoMatchingKeyError); !ok {
		t.Fatalf("got %v, want *coreerr.NoMatchingKeyError", err)
	}
}

func TestPrimaryUserIDReturnsFirstIdentity(t *testing.T) {
	_, _, entity := generateTestEntity(t)
	uid := PrimaryUserID(entity)
	if uid == "" {
		t.Fatal("expected a non-empty primary user id")
	}
	if want := "Test User <test@example.com>"; uid != want {
		t.Errorf("PrimaryUserID = %q, want %q", uid, want)
	}
}

func TestReadArmoredPublicKeyRejectsGarbage(t *testing.T) {
	_, err := ReadArmoredPublicKey([]byte("not a key"))
	if err == nil {
		t.Fatal("expected ReadArmoredPublicKey to reject non-armored input")
	}
}

func TestOpenPGPDecryptWithPrivateKeyRespectsContextTimeout(t *testing.T) {
	pubArmor, privArmor, _ := generateTestEntity(t)

	ciphertext, err := OpenPGPEncrypt([]byte("hello"), pubArmor)
	if err != nil {
		t.Fatalf("OpenPGPEncrypt: %v", err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Hour))
	defer cancel()

	_, err = OpenPGPDecryptWithPrivateKey(ctx, []byte(ciphertext), privArmor, "")
	if err != coreerr.ErrCryptoTimeout {
		t.Fatalf("got %v, want ErrCryptoTimeout", err)
	}
}

func TestPrivateKeyFingerprintIsStableAcrossCalls(t *testing.T) {
	_, privArmor, entity := generateTestEntity(t)

	got, err := PrivateKeyFingerprint(privArmor)
	if err != nil {
		t.Fatalf("PrivateKeyFingerprint: %v", err)
	}
	want := strings.ToUpper(fmt.Sprintf("%x", entity.PrimaryKey.Fingerprint))
	if got != want {
		t.Errorf("fingerprint = %q, want %q", got, want)
	}

	again, err := PrivateKeyFingerprint(privArmor)
	if err != nil {
		t.Fatalf("PrivateKeyFingerprint (second call): %v", err)
	}
	if again != got {
		t.Errorf("fingerprint changed across calls: %q vs %q", got, again)
	}
}

func TestExtractRecipientKeyIDsFindsEncryptedKeyPacket(t *testing.T) {
	pubArmor, _, entity := generateTestEntity(t)

	ciphertext, err := OpenPGPEncrypt([]byte("hello"), pubArmor)
	if err != nil {
		t.Fatalf("OpenPGPEncrypt: %v", err)
	}

	refs := extractRecipientKeyIDs([]byte(ciphertext))
	if len(refs) == 0 {
		t.Fatal("expected at least one recipient key-id")
	}
	_ = entity
}
