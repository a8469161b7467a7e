package keyfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// FetchGithub fetches https://github.com/<user>.gpg, per spec.md §4.2.
// Results are cached keyed by username; forceRefresh skips the cache
// lookup and always fetches, and the freshly fetched key then replaces
// any cached entry for that username.
func (c *Client) FetchGithub(ctx context.Context, username string, forceRefresh bool) (*FetchResult, error) {
	if !forceRefresh {
		if cached, ok := c.githubCache.Get(username); ok {
			log.Debug().Str("username", username).Msg("github key served from cache")
			return &FetchResult{
				Armored:  cached,
				Username: username,
				Origin:   githubKeyURL(username),
			}, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.ctx.ExportTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, githubKeyURL(username), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil, &TimeoutError{Operation: "github key export"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", coreerr.ErrGithubKeyNotFound, username)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github key export returned status %d", resp.StatusCode)
	}

	armored, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(armored) == 0 {
		return nil, fmt.Errorf("%w: %s", coreerr.ErrGithubKeyNotFound, username)
	}

	if !forceRefresh {
		c.githubCache.Add(username, armored)
	} else {
		c.githubCache.Remove(username)
		c.githubCache.Add(username, armored)
	}

	return &FetchResult{
		Armored:  armored,
		Username: username,
		Origin:   githubKeyURL(username),
	}, nil
}

func githubKeyURL(username string) string {
	return fmt.Sprintf("https://github.com/%s.gpg", username)
}
