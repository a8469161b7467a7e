// Package resolver implements C3, the recipient resolver of spec.md
// §4.3: it turns a RecipientSpec into an ordered, deduplicated list of
// ResolvedRecipients, expanding group names, trying prefix shortcuts,
// and auto-fetching via C2 when the store doesn't already have the key.
package resolver

import "github.com/dedpaste/dedpaste/internal/store"

// RecipientSpec is the tagged union spec.md §4.3 describes: no
// recipient (self-encryption), a single identifier, or an ordered list.
// A nil Names with Empty=false is never valid; callers build one of the
// three constructors below.
type RecipientSpec struct {
	Empty bool
	Names []string
}

// Self builds the empty spec, meaning "encrypt for self".
func Self() RecipientSpec { return RecipientSpec{Empty: true} }

// One builds a single-identifier spec. A single identifier is the only
// shape eligible for group-name expansion (spec.md §4.3 step 1).
func One(identifier string) RecipientSpec {
	return RecipientSpec{Names: []string{identifier}}
}

// Many builds a multi-identifier spec.
func Many(identifiers []string) RecipientSpec {
	return RecipientSpec{Names: identifiers}
}

// ResolvedRecipient is the resolver's output shape per spec.md §4.3.
type ResolvedRecipient struct {
	Identifier string
	Backend    store.Backend
	Record     store.KeyRecord
}

// IsOpenPGPNatured classifies a resolved recipient per spec.md §4.3: a
// recipient is openpgp-natured iff its backend is one of the three
// OpenPGP backends, or its key record is already known to carry
// OpenPGP-armored material.
func (r ResolvedRecipient) IsOpenPGPNatured() bool {
	switch r.Backend {
	case store.BackendPgp, store.BackendKeybase, store.BackendGithub:
		return true
	}
	return r.Record.IsOpenPGP()
}
