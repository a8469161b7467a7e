package keyfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

var pgpBlockPattern = regexp.MustCompile(`(?s)-----BEGIN PGP PUBLIC KEY BLOCK-----.*?-----END PGP PUBLIC KEY BLOCK-----`)

// stripKeyIDPrefix removes an optional "0x" prefix from a hex key-ID or
// fingerprint, per spec.md §4.2.
func stripKeyIDPrefix(id string) string {
	return strings.TrimPrefix(strings.TrimPrefix(id, "0x"), "0X")
}

func isHexIdentifier(id string) bool {
	if len(id) < 8 {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func isEmailIdentifier(id string) bool {
	return strings.Contains(id, "@")
}

// FetchHKP tries the configured HKP keyservers in order, per spec.md
// §4.2: success is HTTP 200 AND a body containing a PGP public key
// block. A per-server failure is accumulated and the next server is
// tried; only once every server has failed is coreerr.ErrKeyserverUnavailable
// raised with the joined diagnostics.
func (c *Client) FetchHKP(ctx context.Context, identifier string) (*FetchResult, error) {
	id := stripKeyIDPrefix(identifier)

	var failures []string
	for _, server := range c.ctx.Keyservers {
		reqURL, err := hkpRequestURL(server, id)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", server, err))
			continue
		}

		armored, err := c.fetchHKPFromServer(ctx, reqURL)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", server, err))
			log.Debug().Str("server", server).Err(err).Msg("hkp fetch failed, trying next server")
			continue
		}

		return &FetchResult{
			Armored: armored,
			Origin:  server,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", coreerr.ErrKeyserverUnavailable, strings.Join(failures, "; "))
}

func hkpRequestURL(server, id string) (string, error) {
	if server == "keys.openpgp.org" {
		if isEmailIdentifier(id) {
			return fmt.Sprintf("https://%s/vks/v1/by-email/%s", server, url.PathEscape(id)), nil
		}
		if isHexIdentifier(id) {
			return fmt.Sprintf("https://%s/vks/v1/by-fingerprint/%s", server, url.PathEscape(strings.ToUpper(id))), nil
		}
		return "", fmt.Errorf("identifier %q is neither an email nor a hex key-ID", id)
	}

	q := url.Values{}
	q.Set("op", "get")
	q.Set("options", "mr")
	q.Set("search", id)
	return fmt.Sprintf("https://%s/pks/lookup?%s", server, q.Encode()), nil
}

func (c *Client) fetchHKPFromServer(ctx context.Context, reqURL string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.ctx.ExportTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil, &TimeoutError{Operation: "hkp fetch"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	match := pgpBlockPattern.Find(body)
	if match == nil {
		return nil, fmt.Errorf("response did not contain a PGP public key block")
	}
	return match, nil
}
