package resolver

import (
	"context"
	"testing"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/dedpaste/dedpaste/internal/store"
)

const testPgpArmor = "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nmDMEY...placeholder...\n=abcd\n-----END PGP PUBLIC KEY BLOCK-----\n"

func newTestResolver(t *testing.T, autoFetch bool) (*Resolver, *store.Store) {
	t.Helper()
	ctx := &appconfig.Context{HomeDir: t.TempDir(), AutoFetch: autoFetch}
	st, err := store.New(ctx)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		t.Fatalf("keyfetch.New: %v", err)
	}
	return New(ctx, st, fetch), st
}

func TestClassifyPrefixes(t *testing.T) {
	cases := []struct {
		identifier string
		wantKind   identifierKind
		wantKey    string
	}{
		{"gh:octocat", kindGithub, "octocat"},
		{"github:octocat", kindGithub, "octocat"},
		{"kb:max", kindKeybase, "max"},
		{"keybase:max", kindKeybase, "max"},
		{"alice@example.com", kindEmail, "alice@example.com"},
		{"0123456789ABCDEF", kindHex, "0123456789ABCDEF"},
		{"alice", kindPlain, "alice"},
	}
	for _, tc := range cases {
		kind, key := classify(tc.identifier)
		if kind != tc.wantKind {
			t.Errorf("classify(%q) kind = %v, want %v", tc.identifier, kind, tc.wantKind)
		}
		if key != tc.wantKey {
			t.Errorf("classify(%q) key = %q, want %q", tc.identifier, key, tc.wantKey)
		}
	}
}

func TestResolvePlainIdentifierNotFound(t *testing.T) {
	r, _ := newTestResolver(t, false)
	_, err := r.Resolve(context.Background(), One("nobody"))
	var notFound *coreerr.RecipientNotFoundError
	if !asRecipientNotFound(err, &notFound) {
		t.Fatalf("expected RecipientNotFoundError, got %v", err)
	}
}

func TestResolveFindsPgpKeyByName(t *testing.T) {
	r, st := newTestResolver(t, false)
	if _, err := st.PutOpenPGP(store.BackendPgp, "alice", "fp-alice", []byte(testPgpArmor), store.KeyAttrs{}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	resolved, err := r.Resolve(context.Background(), One("alice"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Record.ID != "alice" {
		t.Fatalf("resolved = %+v, want one record for alice", resolved)
	}
	if !resolved[0].IsOpenPGPNatured() {
		t.Error("expected pgp-backend recipient to be openpgp-natured")
	}
}

func TestResolveExpandsGroupForSingleIdentifier(t *testing.T) {
	r, st := newTestResolver(t, false)
	if _, err := st.PutOpenPGP(store.BackendPgp, "alice", "fp-alice", []byte(testPgpArmor), store.KeyAttrs{}); err != nil {
		t.Fatalf("seeding alice: %v", err)
	}
	if _, err := st.PutOpenPGP(store.BackendPgp, "bob", "fp-bob", []byte(testPgpArmor), store.KeyAttrs{}); err != nil {
		t.Fatalf("seeding bob: %v", err)
	}
	if _, err := st.PutGroup("team", []string{"alice", "bob"}); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}

	resolved, err := r.Resolve(context.Background(), One("team"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d resolved recipients, want 2", len(resolved))
	}
}

func TestResolveDedupesByFingerprint(t *testing.T) {
	r, st := newTestResolver(t, false)
	if _, err := st.PutOpenPGP(store.BackendPgp, "alice-pgp", "same-fingerprint", []byte(testPgpArmor), store.KeyAttrs{}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if _, err := st.PutOpenPGP(store.BackendKeybase, "alice-kb", "same-fingerprint", []byte(testPgpArmor), store.KeyAttrs{}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	resolved, err := r.Resolve(context.Background(), Many([]string{"alice-pgp", "alice-kb"}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("got %d resolved recipients, want 1 after dedup", len(resolved))
	}
}

func TestResolveEmptySpecReturnsNoRecipients(t *testing.T) {
	r, _ := newTestResolver(t, false)
	resolved, err := r.Resolve(context.Background(), Self())
	if err != nil {
		t.Fatalf("Resolve(Self()): %v", err)
	}
	if resolved != nil {
		t.Errorf("expected nil/empty resolution for self-encrypt, got %v", resolved)
	}
}

func asRecipientNotFound(err error, target **coreerr.RecipientNotFoundError) bool {
	rn, ok := err.(*coreerr.RecipientNotFoundError)
	if !ok {
		return false
	}
	*target = rn
	return true
}
