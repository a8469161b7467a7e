package keyfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

type keybaseResponse struct {
	Status struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"status"`
	Them []keybaseUser `json:"them"`
}

type keybaseUser struct {
	PublicKeys struct {
		Primary *keybasePrimaryKey `json:"primary"`
	} `json:"public_keys"`
	ProofsSummary *struct {
		All []keybaseProof `json:"all"`
	} `json:"proofs_summary"`
}

type keybasePrimaryKey struct {
	Bundle      string `json:"bundle"`
	Fingerprint string `json:"key_fingerprint"`
	KeyID       string `json:"kid"`
}

type keybaseProof struct {
	State int `json:"state"`
}

const keybaseProofVerifiedState = 1

// FetchKeybase calls Keybase's public lookup API, per spec.md §4.2.
// Success requires HTTP 200, status.code==0, and a primary PGP bundle.
// When verify is true, at least one proof with state==1 must be
// present; otherwise coreerr.ErrUnverifiedKeybase is returned.
func (c *Client) FetchKeybase(ctx context.Context, username string, verify bool) (*FetchResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.ctx.ExportTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("username", username)
	q.Set("fields", "public_keys,proofs_summary")
	reqURL := fmt.Sprintf("https://keybase.io/_/api/1.0/user/lookup.json?%s", q.Encode())

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil, &TimeoutError{Operation: "keybase lookup"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keybase lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded keybaseResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding keybase response: %w", err)
	}

	if decoded.Status.Code != 0 {
		return nil, fmt.Errorf("keybase lookup failed: %s", decoded.Status.Name)
	}
	if len(decoded.Them) == 0 || decoded.Them[0].PublicKeys.Primary == nil {
		return nil, fmt.Errorf("keybase user %q has no primary PGP key", username)
	}

	user := decoded.Them[0]
	if verify {
		if !hasVerifiedProof(user) {
			return nil, fmt.Errorf("%w: %s", coreerr.ErrUnverifiedKeybase, username)
		}
	}

	key := user.PublicKeys.Primary
	return &FetchResult{
		Armored:     []byte(key.Bundle),
		Fingerprint: key.Fingerprint,
		KeyID:       key.KeyID,
		Username:    username,
		Origin:      fmt.Sprintf("https://keybase.io/%s", username),
	}, nil
}

func hasVerifiedProof(user keybaseUser) bool {
	if user.ProofsSummary == nil {
		return false
	}
	for _, p := range user.ProofsSummary.All {
		if p.State == keybaseProofVerifiedState {
			return true
		}
	}
	return false
}
