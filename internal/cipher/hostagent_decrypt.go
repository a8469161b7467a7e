package cipher

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// keyIDLine matches the host agent's "encrypted with ... key, ID <hex>"
// diagnostic, per spec.md §4.5.2.
var keyIDLine = regexp.MustCompile(`encrypted with .*key, ID ([0-9A-Fa-f]+)`)

// sigkillGrace is the delay between the terminate signal and the hard
// kill spec.md §5 specifies for a host-agent timeout.
const sigkillGrace = 300 * time.Millisecond

// HostAgentDecrypt implements spec.md §4.5.2's decrypt-via-host-agent
// path: the armored ciphertext is written to a freshly-created,
// mode-0600 temp file whose name is seeded by 16 random bytes, the host
// agent is invoked in batch/no-tty/C-locale mode against it, and the
// temp file is always removed, on every exit path.
func HostAgentDecrypt(ctx context.Context, appCtx *appconfig.Context, armoredCiphertext []byte) ([]byte, error) {
	tmpPath, err := writeTempCiphertext(appCtx, armoredCiphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}
	defer os.Remove(tmpPath)

	runCtx, cancel := context.WithTimeout(ctx, appCtx.AgentTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, appCtx.HostAgentExec,
		"--decrypt", "--batch", "--no-tty", "--yes", tmpPath)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "LANG=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := runWithTwoStageTimeout(cmd, runCtx)

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, coreerr.ErrHostAgentUnavailable
		}
		var execErr *exec.Error
		if errors.As(runErr, &execErr) {
			return nil, coreerr.ErrHostAgentUnavailable
		}
		if runCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("host agent decrypt timed out")
			return nil, coreerr.ErrCryptoTimeout
		}
		return nil, &coreerr.NoMatchingKeyError{KeyIDs: parseStderrKeyIDs(stderr.String())}
	}

	return stdout.Bytes(), nil
}

// runWithTwoStageTimeout runs cmd to completion, or, if runCtx expires
// first, sends SIGTERM and escalates to SIGKILL after sigkillGrace, per
// spec.md §5.
func runWithTwoStageTimeout(cmd *exec.Cmd, runCtx context.Context) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(sigkillGrace):
			_ = cmd.Process.Kill()
			<-done
			return runCtx.Err()
		}
	}
}

// writeTempCiphertext creates a mode-0600 temp file in the OS temp
// directory, named with 16 random bytes of hex entropy, and writes the
// ciphertext to it.
func writeTempCiphertext(appCtx *appconfig.Context, data []byte) (string, error) {
	entropy := make([]byte, 16)
	if _, err := rand.Read(entropy); err != nil {
		return "", err
	}
	name := fmt.Sprintf("dedpaste-decrypt-%s.asc", hex.EncodeToString(entropy))
	path := filepath.Join(os.TempDir(), name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func parseStderrKeyIDs(stderr string) []coreerr.KeyRef {
	matches := keyIDLine.FindAllStringSubmatch(stderr, -1)
	var refs []coreerr.KeyRef
	for _, m := range matches {
		refs = append(refs, coreerr.KeyRef{Type: "openpgp", ID: m[1]})
	}
	return refs
}
