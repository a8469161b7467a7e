package cipher

import (
	"context"
	"os"
	"testing"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/coreerr"
)

func TestParseStderrKeyIDsExtractsHexID(t *testing.T) {
	stderr := "gpg: encrypted with 2048-bit RSA key, ID DEADBEEF12345678, created 2020-01-01\n"
	refs := parseStderrKeyIDs(stderr)
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}
	if refs[0].ID != "DEADBEEF12345678" {
		t.Errorf("ID = %q, want %q", refs[0].ID, "DEADBEEF12345678")
	}
}

func TestParseStderrKeyIDsNoMatchReturnsEmpty(t *testing.T) {
	refs := parseStderrKeyIDs("gpg: decryption failed: No secret key\n")
	if len(refs) != 0 {
		t.Fatalf("got %d refs, want 0", len(refs))
	}
}

func TestWriteTempCiphertextWritesMode0600(t *testing.T) {
	appCtx := &appconfig.Context{}
	path, err := writeTempCiphertext(appCtx, []byte("armored ciphertext"))
	if err != nil {
		t.Fatalf("writeTempCiphertext: %v", err)
	}
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 0600", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "armored ciphertext" {
		t.Errorf("contents = %q, want %q", data, "armored ciphertext")
	}
}

func TestHostAgentDecryptReportsUnavailableForMissingExecutable(t *testing.T) {
	appCtx := &appconfig.Context{
		HostAgentExec: "dedpaste-nonexistent-binary-xyz",
		AgentTimeout:  appconfig.DefaultAgentTimeout,
	}
	_, err := HostAgentDecrypt(context.Background(), appCtx, []byte("irrelevant"))
	if err != coreerr.ErrHostAgentUnavailable {
		t.Fatalf("got %v, want ErrHostAgentUnavailable", err)
	}
}
