package paste

import (
	"bytes"
	"context"
	"testing"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/cipher"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/dedpaste/dedpaste/internal/resolver"
	"github.com/dedpaste/dedpaste/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	ctx := &appconfig.Context{HomeDir: t.TempDir(), AutoFetch: false}
	st, err := store.New(ctx)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		t.Fatalf("keyfetch.New: %v", err)
	}
	res := resolver.New(ctx, st, fetch)
	return New(ctx, st, res), st
}

func seedSelf(t *testing.T, st *store.Store) {
	t.Helper()
	pub, priv, err := cipher.GenerateSelfKeypair()
	if err != nil {
		t.Fatalf("GenerateSelfKeypair: %v", err)
	}
	fingerprint, err := store.FingerprintRSA(pub)
	if err != nil {
		t.Fatalf("FingerprintRSA: %v", err)
	}
	if _, err := st.PutSelf(pub, priv, fingerprint); err != nil {
		t.Fatalf("PutSelf: %v", err)
	}
}

func TestEncryptDecryptSelfHybridRoundTrip(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	seedSelf(t, st)

	plaintext := []byte("a secret paste body")
	envelopeBytes, err := orch.Encrypt(context.Background(), plaintext, resolver.Self(), false, false)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	decrypted, info, err := orch.Decrypt(context.Background(), envelopeBytes, DecryptOpts{})
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
	if info.Sender != "self" {
		t.Errorf("sender = %q, want %q", info.Sender, "self")
	}
}

func TestEncryptForcePgpWithoutRecipientIsRejected(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	seedSelf(t, st)

	_, err := orch.Encrypt(context.Background(), []byte("x"), resolver.Self(), true, false)
	if err != coreerr.ErrSelfPgpNotSupported {
		t.Fatalf("got error %v, want ErrSelfPgpNotSupported", err)
	}
}

func TestDecryptV2RejectsEnvelopeForAnotherRecipient(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	seedSelf(t, st)

	friendPub, _, err := cipher.GenerateSelfKeypair()
	if err != nil {
		t.Fatalf("GenerateSelfKeypair: %v", err)
	}
	if _, err := st.PutFriend("bob", friendPub); err != nil {
		t.Fatalf("PutFriend: %v", err)
	}

	envelopeBytes, err := orch.Encrypt(context.Background(), []byte("for bob only"), resolver.One("bob"), false, false)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, _, err = orch.Decrypt(context.Background(), envelopeBytes, DecryptOpts{})
	var notForYou *coreerr.NotForYouError
	if !asNotForYou(err, &notForYou) {
		t.Fatalf("expected NotForYouError, got %v", err)
	}
}

func asNotForYou(err error, target **coreerr.NotForYouError) bool {
	nfy, ok := err.(*coreerr.NotForYouError)
	if !ok {
		return false
	}
	*target = nfy
	return true
}
