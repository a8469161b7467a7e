package keyfetch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// HostAgentKey is one entry parsed from the host agent's
// `--list-keys --with-colons` output, per spec.md §6's best-effort
// schema: record type (column 1), key-ID (column 5), creation (column
// 6), expiry (column 7), trust (column 9), uid string (column 10).
type HostAgentKey struct {
	RecordType string
	KeyID      string
	CreatedAt  string
	ExpiresAt  string
	Trust      string
	UID        string
}

// ListHostAgentKeys invokes the configured host agent executable's
// key-list subcommand and parses its colon-separated output. Absence of
// the executable is reported as coreerr.ErrHostAgentUnavailable, not a
// generic error, per spec.md §4.2 ("Absence of the agent ... is
// reported as unavailable, not as an error").
func (c *Client) ListHostAgentKeys(ctx context.Context) ([]HostAgentKey, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.ctx.ListTimeout)
	defer cancel()

	cmd := exec.CommandContext(fetchCtx, c.ctx.HostAgentExec, "--list-keys", "--with-colons")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, coreerr.ErrHostAgentUnavailable
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, coreerr.ErrHostAgentUnavailable
		}
		if fetchCtx.Err() != nil {
			return nil, &TimeoutError{Operation: "host agent key listing"}
		}
		return nil, err
	}

	return parseColonOutput(stdout.String()), nil
}

func parseColonOutput(output string) []HostAgentKey {
	var keys []HostAgentKey
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, ":")
		if len(fields) < 10 {
			continue
		}
		if fields[0] != "pub" && fields[0] != "sub" && fields[0] != "uid" {
			continue
		}
		keys = append(keys, HostAgentKey{
			RecordType: fields[0],
			KeyID:      fields[4],
			CreatedAt:  fields[5],
			ExpiresAt:  fields[6],
			Trust:      fields[8],
			UID:        fields[9],
		})
	}
	return keys
}
