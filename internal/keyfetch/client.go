// Package keyfetch implements C2, the external key fetchers of
// spec.md §4.2: HKP keyservers, the Keybase lookup API, GitHub's
// per-user .gpg export, and the host OpenPGP agent's key listing.
package keyfetch

import (
	"net/http"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/logging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Client bundles the shared *http.Client and appconfig.Context every
// fetcher needs, following the teacher's pattern of composing small
// backend-specific providers (internal/crypto/gpg.go's
// NativeGPG/CLIGPG pair) behind one entry point — here HKP, Keybase,
// GitHub and the host agent are methods on the same Client rather than
// separate structs, since they share nothing but configuration and a
// transport, not a fallback relationship.
type Client struct {
	ctx        *appconfig.Context
	httpClient *http.Client

	// githubCache maps GitHub username -> cached armored key bytes, per
	// spec.md §4.2 ("Caches result keyed by username"). Backed by
	// hashicorp/golang-lru so a long-lived CLI process (or test suite)
	// doesn't grow this unbounded.
	githubCache *lru.Cache[string, []byte]
}

const githubCacheSize = 256

var log = logging.New("keyfetch")

// New builds a Client from ctx, sharing one *http.Client across all
// three HTTP-based fetchers.
func New(ctx *appconfig.Context) (*Client, error) {
	cache, err := lru.New[string, []byte](githubCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		ctx:         ctx,
		httpClient:  &http.Client{},
		githubCache: cache,
	}, nil
}
