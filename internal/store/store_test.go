package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dedpaste/dedpaste/internal/appconfig"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := &appconfig.Context{HomeDir: t.TempDir()}
	st, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st
}

const testRSAPublicPem = `-----BEGIN PUBLIC KEY-----
MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAMvd/xIFgY1oErYKcYiHdOgOiuMPlzQM
+r/D6o7oSbD4LGO40LrdbgaA0XL9s8VHgnApplacedForTestOnlyNotAValidKey
AgMBAAE=
-----END PUBLIC KEY-----
`

const testPgpArmor = "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nmDMEY...placeholder...\n=abcd\n-----END PGP PUBLIC KEY BLOCK-----\n"

func TestPutFriendRejectsNonRSAPem(t *testing.T) {
	st := newTestStore(t)
	_, err := st.PutFriend("alice", []byte(testPgpArmor))
	if err == nil {
		t.Fatal("expected PutFriend to reject an openpgp-armored block")
	}
}

func TestPutOpenPGPRejectsMissingArmorHeader(t *testing.T) {
	st := newTestStore(t)
	_, err := st.PutOpenPGP(BackendPgp, "bob", "deadbeef", []byte("not armored"), KeyAttrs{})
	if err == nil {
		t.Fatal("expected PutOpenPGP to reject non-armored input")
	}
}

func TestPutFriendRejectsPathTraversalName(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutFriend("../../etc/passwd", []byte(testRSAPublicPem)); err == nil {
		t.Fatal("expected PutFriend to reject a name containing path separators")
	}
}

func TestPutOpenPGPRejectsPathTraversalID(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutOpenPGP(BackendPgp, "../escape", "deadbeef", []byte(testPgpArmor), KeyAttrs{}); err == nil {
		t.Fatal("expected PutOpenPGP to reject an id containing path separators")
	}
}

func TestPutOpenPGPAndGetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	rec, err := st.PutOpenPGP(BackendPgp, "bob", "deadbeef", []byte(testPgpArmor), KeyAttrs{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("PutOpenPGP: %v", err)
	}
	if rec.KeyKind != KeyKindOpenPGPArmored {
		t.Errorf("KeyKind = %q, want %q", rec.KeyKind, KeyKindOpenPGPArmored)
	}

	got, ok, err := st.Get(BackendPgp, "bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.Email != "bob@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "bob@example.com")
	}
}

func TestGetBackendAnyUsesFixedPrecedence(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutOpenPGP(BackendGithub, "shared-id", "fp1", []byte(testPgpArmor), KeyAttrs{}); err != nil {
		t.Fatalf("PutOpenPGP github: %v", err)
	}
	if _, err := st.PutOpenPGP(BackendPgp, "shared-id", "fp2", []byte(testPgpArmor), KeyAttrs{}); err != nil {
		t.Fatalf("PutOpenPGP pgp: %v", err)
	}

	rec, ok, err := st.Get(BackendAny, "shared-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if rec.Backend != BackendPgp {
		t.Errorf("precedence picked backend %q, want %q (pgp precedes github)", rec.Backend, BackendPgp)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutOpenPGP(BackendPgp, "carol", "fp", []byte(testPgpArmor), KeyAttrs{}); err != nil {
		t.Fatalf("PutOpenPGP: %v", err)
	}

	removed, err := st.Remove(BackendPgp, "carol")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected first Remove to report removed=true")
	}

	removedAgain, err := st.Remove(BackendPgp, "carol")
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if removedAgain {
		t.Error("expected second Remove to report removed=false, not an error")
	}
}

func TestLoadTreatsCorruptDatabaseAsEmpty(t *testing.T) {
	st := newTestStore(t)
	if err := os.WriteFile(st.ctx.KeydbPath(), []byte("{not json"), filePerms); err != nil {
		t.Fatalf("writing corrupt keydb: %v", err)
	}

	recs, err := st.List(BackendPgp)
	if err != nil {
		t.Fatalf("List on corrupt db should not error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records from a corrupt db, got %d", len(recs))
	}
}

func TestUpdateLastUsed(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutOpenPGP(BackendPgp, "dave", "fp", []byte(testPgpArmor), KeyAttrs{}); err != nil {
		t.Fatalf("PutOpenPGP: %v", err)
	}

	if err := st.UpdateLastUsed(BackendPgp, "dave"); err != nil {
		t.Fatalf("UpdateLastUsed: %v", err)
	}

	rec, ok, err := st.Get(BackendPgp, "dave")
	if err != nil || !ok {
		t.Fatalf("Get after update: ok=%v err=%v", ok, err)
	}
	if rec.LastUsedAt.Before(time.Now().Add(-time.Minute)) {
		t.Errorf("LastUsedAt was not updated: %v", rec.LastUsedAt)
	}
}

func TestSearchMatchesAnyField(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutOpenPGP(BackendKeybase, "erin", "fp", []byte(testPgpArmor), KeyAttrs{Email: "erin@example.com", Username: "erinkb"}); err != nil {
		t.Fatalf("PutOpenPGP: %v", err)
	}

	results, err := st.Search("ERIN")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestGroupNoSelfReference(t *testing.T) {
	st := newTestStore(t)
	_, err := st.PutGroup("team", []string{"team"})
	if err == nil {
		t.Fatal("expected error creating a group that contains itself")
	}
}

func TestGroupNoNestedGroups(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.PutGroup("inner", []string{"alice"}); err != nil {
		t.Fatalf("PutGroup inner: %v", err)
	}
	_, err := st.PutGroup("outer", []string{"inner"})
	if err == nil {
		t.Fatal("expected error nesting a group inside another group")
	}
}

func TestPutSelfWritesModeRestrictedPrivateKey(t *testing.T) {
	st := newTestStore(t)
	rec, err := st.PutSelf([]byte(testRSAPublicPem), []byte("fake-private-pem"), "fingerprint")
	if err != nil {
		t.Fatalf("PutSelf: %v", err)
	}

	info, err := os.Stat(rec.PrivatePath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("private key mode = %o, want 0600", perm)
	}
	if filepath.Base(rec.PrivatePath) != "self.key" {
		t.Errorf("private key filename = %q, want self.key", filepath.Base(rec.PrivatePath))
	}
}
