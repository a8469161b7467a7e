package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/dedpaste/dedpaste/internal/logging"
	"github.com/dedpaste/dedpaste/internal/store"
)

var log = logging.New("resolver")

// Resolver is C3. It composes the store (C1) and the fetch client (C2)
// the way the teacher composes its provider pairs: small, stateless
// methods on one struct rather than a chain-of-responsibility type.
type Resolver struct {
	ctx   *appconfig.Context
	store *store.Store
	fetch *keyfetch.Client
}

// New builds a Resolver over an already-constructed store and fetch
// client.
func New(ctx *appconfig.Context, st *store.Store, fetch *keyfetch.Client) *Resolver {
	return &Resolver{ctx: ctx, store: st, fetch: fetch}
}

// Resolve expands spec into an ordered list of ResolvedRecipients, per
// spec.md §4.3: group-name expansion (single-level only), prefix/shape
// classification, store lookup, and auto-fetch on miss. Deduplicates by
// fingerprint while preserving first-seen order.
//
// It does NOT update last_used_at itself: spec.md §5 ties that update to
// the success of the operation using the resolved key (e.g. C6's
// encrypt), not to resolution alone, so the caller calls
// MarkUsed once its own operation has succeeded.
func (r *Resolver) Resolve(ctx context.Context, spec RecipientSpec) ([]ResolvedRecipient, error) {
	if spec.Empty {
		return nil, nil
	}

	identifiers, err := r.expandGroup(spec)
	if err != nil {
		return nil, err
	}

	var out []ResolvedRecipient
	seen := make(map[string]bool)
	for _, id := range identifiers {
		resolved, err := r.resolveOne(ctx, id)
		if err != nil {
			return nil, err
		}
		if seen[resolved.Record.Fingerprint] {
			continue
		}
		seen[resolved.Record.Fingerprint] = true
		out = append(out, *resolved)
	}
	return out, nil
}

// MarkUsed updates last_used_at for every resolved recipient. Callers
// invoke it only after the operation that consumed the resolution has
// itself succeeded.
func (r *Resolver) MarkUsed(resolved []ResolvedRecipient) {
	for _, rr := range resolved {
		if err := r.store.UpdateLastUsed(rr.Backend, rr.Record.ID); err != nil {
			log.Warn().Err(err).Str("identifier", rr.Identifier).Msg("failed to update last_used_at")
		}
	}
}

// expandGroup implements spec.md §4.3 step 1: if spec names exactly one
// identifier and it matches a known group, the group's member list
// (already validated at creation to contain no group names) replaces
// it. Any other shape of spec passes through unchanged.
func (r *Resolver) expandGroup(spec RecipientSpec) ([]string, error) {
	if len(spec.Names) != 1 {
		return spec.Names, nil
	}
	name := spec.Names[0]
	group, ok, err := r.store.GetGroup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return spec.Names, nil
	}
	return group.Members, nil
}

type identifierKind int

const (
	kindPlain identifierKind = iota
	kindGithub
	kindKeybase
	kindEmail
	kindHex
)

func classify(identifier string) (identifierKind, string) {
	switch {
	case strings.HasPrefix(identifier, "gh:"):
		return kindGithub, strings.TrimPrefix(identifier, "gh:")
	case strings.HasPrefix(identifier, "github:"):
		return kindGithub, strings.TrimPrefix(identifier, "github:")
	case strings.HasPrefix(identifier, "kb:"):
		return kindKeybase, strings.TrimPrefix(identifier, "kb:")
	case strings.HasPrefix(identifier, "keybase:"):
		return kindKeybase, strings.TrimPrefix(identifier, "keybase:")
	case strings.Contains(identifier, "@"):
		return kindEmail, identifier
	case isHex(identifier):
		return kindHex, identifier
	default:
		return kindPlain, identifier
	}
}

func isHex(s string) bool {
	if len(s) < 8 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// resolveOne implements spec.md §4.3 steps 2-5 for a single identifier.
func (r *Resolver) resolveOne(ctx context.Context, identifier string) (*ResolvedRecipient, error) {
	kind, key := classify(identifier)

	switch kind {
	case kindGithub:
		return r.resolveBackend(ctx, identifier, store.BackendGithub, key, func() (*keyfetch.FetchResult, error) {
			return r.fetch.FetchGithub(ctx, key, r.ctx.RefreshGithubKeys)
		})
	case kindKeybase:
		return r.resolveBackend(ctx, identifier, store.BackendKeybase, key, func() (*keyfetch.FetchResult, error) {
			return r.fetch.FetchKeybase(ctx, key, r.ctx.VerifyKeybaseProofs)
		})
	case kindEmail:
		return r.resolveEmailOrHex(ctx, identifier, key)
	case kindHex:
		return r.resolveEmailOrHex(ctx, identifier, key)
	default:
		return r.resolvePlain(identifier)
	}
}

// resolveBackend handles the github/keybase shapes: store lookup with a
// concrete backend hint, auto-fetch and persist on miss.
func (r *Resolver) resolveBackend(ctx context.Context, identifier string, backend store.Backend, id string, doFetch func() (*keyfetch.FetchResult, error)) (*ResolvedRecipient, error) {
	if rec, ok, err := r.store.Get(backend, id); err != nil {
		return nil, err
	} else if ok {
		return &ResolvedRecipient{Identifier: identifier, Backend: backend, Record: *rec}, nil
	}

	if !r.ctx.AutoFetch {
		return nil, &coreerr.RecipientNotFoundError{Identifier: identifier}
	}

	result, err := doFetch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", &coreerr.RecipientNotFoundError{Identifier: identifier}, err)
	}

	rec, err := r.store.PutOpenPGP(backend, id, result.Fingerprint, result.Armored, store.KeyAttrs{
		Email:             result.Email,
		Username:          result.Username,
		Name:              result.Name,
		SourceURLOrOrigin: result.Origin,
	})
	if err != nil {
		return nil, err
	}
	return &ResolvedRecipient{Identifier: identifier, Backend: backend, Record: *rec}, nil
}

// resolveEmailOrHex implements spec.md §4.3's "contains @ -> try
// pgp/keybase/github by email then HKP" and "pure hex -> HKP by
// key-ID": the store is searched across those backends by either ID or
// recorded email before falling back to an HKP fetch stored under the
// pgp backend.
func (r *Resolver) resolveEmailOrHex(ctx context.Context, identifier, key string) (*ResolvedRecipient, error) {
	for _, backend := range []store.Backend{store.BackendPgp, store.BackendKeybase, store.BackendGithub} {
		records, err := r.store.List(backend)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.ID == key || (rec.Email != "" && rec.Email == key) {
				return &ResolvedRecipient{Identifier: identifier, Backend: backend, Record: rec}, nil
			}
		}
	}

	if !r.ctx.AutoFetch {
		return nil, &coreerr.RecipientNotFoundError{Identifier: identifier}
	}

	result, err := r.fetch.FetchHKP(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", &coreerr.RecipientNotFoundError{Identifier: identifier}, err)
	}

	rec, err := r.store.PutOpenPGP(store.BackendPgp, key, result.Fingerprint, result.Armored, store.KeyAttrs{
		SourceURLOrOrigin: result.Origin,
	})
	if err != nil {
		return nil, err
	}
	return &ResolvedRecipient{Identifier: identifier, Backend: store.BackendPgp, Record: *rec}, nil
}

// resolvePlain handles identifiers with no recognizable shape (e.g. a
// friend name added via PutFriend, or "self"): a plain store lookup
// across the fixed backend precedence, with no auto-fetch path defined
// for it, per spec.md §4.3.
func (r *Resolver) resolvePlain(identifier string) (*ResolvedRecipient, error) {
	rec, ok, err := r.store.Get(store.BackendAny, identifier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &coreerr.RecipientNotFoundError{Identifier: identifier}
	}
	return &ResolvedRecipient{Identifier: identifier, Backend: rec.Backend, Record: *rec}, nil
}
