// Package paste implements C6, the orchestrator of spec.md §4.6: the
// two public operations, encrypt and decrypt, that wire C3 (resolver)
// through C5 (cipher engines) to C4 (envelope codec), including the
// decrypt fallback chain and the error-translation rules of spec.md §7.
package paste

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/cipher"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/envelope"
	"github.com/dedpaste/dedpaste/internal/logging"
	"github.com/dedpaste/dedpaste/internal/resolver"
	"github.com/dedpaste/dedpaste/internal/store"
	"github.com/rs/zerolog"
)

var log = logging.New("paste")

// Orchestrator is C6.
type Orchestrator struct {
	ctx      *appconfig.Context
	store    *store.Store
	resolver *resolver.Resolver

	// opLog is the logger for whichever encrypt/decrypt call is
	// currently in flight, carrying that call's operation id so its log
	// lines can be grep'd together across C1-C6. Set at the start of
	// Encrypt/Decrypt; an Orchestrator is only ever driven by one CLI
	// invocation at a time, so this is not guarded for concurrent use.
	opLog zerolog.Logger
}

// New builds an Orchestrator from its already-constructed
// collaborators.
func New(ctx *appconfig.Context, st *store.Store, res *resolver.Resolver) *Orchestrator {
	return &Orchestrator{ctx: ctx, store: st, resolver: res, opLog: log}
}

// startOperation mints a fresh operation id, scopes o.opLog to it, and
// returns the scoped logger for the caller's own use.
func (o *Orchestrator) startOperation(name string) zerolog.Logger {
	opID := logging.OperationID()
	o.opLog = log.With().Str("op_id", opID).Logger()
	o.opLog.Debug().Str("operation", name).Msg("starting operation")
	return o.opLog
}

// SenderInfo is returned alongside decrypted plaintext, carrying
// whatever the envelope's metadata recorded about its sender.
type SenderInfo struct {
	Sender    string
	Timestamp time.Time
}

// Encrypt implements spec.md §4.6's encrypt operation.
func (o *Orchestrator) Encrypt(ctx context.Context, plaintext []byte, spec resolver.RecipientSpec, forcePgp, refreshGithub bool) ([]byte, error) {
	o.startOperation("encrypt")
	o.ctx.RefreshGithubKeys = refreshGithub

	resolved, err := o.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	usePgp := forcePgp
	for _, r := range resolved {
		if r.IsOpenPGPNatured() {
			usePgp = true
		}
	}

	var envelopeBytes []byte
	if usePgp {
		envelopeBytes, err = o.encryptPgp(plaintext, resolved)
	} else {
		envelopeBytes, err = o.encryptHybrid(plaintext, resolved)
	}
	if err != nil {
		return nil, err
	}

	o.resolver.MarkUsed(resolved)
	return envelopeBytes, nil
}

// encryptPgp implements the use_pgp branch: self-encryption (empty
// spec) is rejected with SelfPgpNotSupported, and — per spec.md §9's
// current no-multi-recipient-packet semantics — only the first
// resolved recipient is used, with a warning if more were given.
func (o *Orchestrator) encryptPgp(plaintext []byte, resolved []resolver.ResolvedRecipient) ([]byte, error) {
	if len(resolved) == 0 {
		return nil, coreerr.ErrSelfPgpNotSupported
	}
	if len(resolved) > 1 {
		o.opLog.Warn().Int("recipient_count", len(resolved)).Msg("openpgp path only supports one recipient; using the first and ignoring the rest")
	}
	recipient := resolved[0]

	armoredPublicKey, err := os.ReadFile(recipient.Record.PublicPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	pgpEncrypted, err := cipher.OpenPGPEncrypt(plaintext, armoredPublicKey)
	if err != nil {
		return nil, err
	}

	env := envelope.V3{
		Metadata: envelope.Metadata{
			Sender: "self",
			Recipient: envelope.RecipientMeta{
				Type:        "pgp",
				Name:        recipient.Record.Name,
				Email:       recipient.Record.Email,
				KeyID:       recipient.Record.ID,
				Fingerprint: recipient.Record.Fingerprint,
			},
			Timestamp: time.Now().UTC(),
		},
		PgpEncrypted: envelope.EncodeB64([]byte(pgpEncrypted)),
	}
	return envelope.EncodeV3(env)
}

// encryptHybrid implements the hybrid branch: an empty spec
// self-encrypts against the store's "self" RSA key.
func (o *Orchestrator) encryptHybrid(plaintext []byte, resolved []resolver.ResolvedRecipient) ([]byte, error) {
	var recipientMeta envelope.RecipientMeta
	var publicPath string

	if len(resolved) == 0 {
		selfRec, ok, err := o.store.Get(store.BackendSelf, "self")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &coreerr.RecipientNotFoundError{Identifier: "self"}
		}
		publicPath = selfRec.PublicPath
		recipientMeta = envelope.RecipientMeta{Type: "self", Name: "self", Fingerprint: selfRec.Fingerprint}
	} else {
		recipient := resolved[0]
		if len(resolved) > 1 {
			o.opLog.Warn().Int("recipient_count", len(resolved)).Msg("hybrid path only supports one recipient; using the first and ignoring the rest")
		}
		publicPath = recipient.Record.PublicPath
		recipientMeta = envelope.RecipientMeta{
			Type:        string(recipient.Backend),
			Name:        recipient.Record.Name,
			Email:       recipient.Record.Email,
			Username:    recipient.Record.Username,
			Fingerprint: recipient.Record.Fingerprint,
		}
	}

	rsaPublicPem, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	fields, err := cipher.HybridEncrypt(plaintext, rsaPublicPem)
	if err != nil {
		return nil, err
	}

	env := envelope.V2{
		Metadata: envelope.Metadata{
			Sender:    "self",
			Recipient: recipientMeta,
			Timestamp: time.Now().UTC(),
		},
		EncryptedKey:     envelope.EncodeB64(fields.EncryptedKey),
		IV:               envelope.EncodeB64(fields.IV),
		AuthTag:          envelope.EncodeB64(fields.AuthTag),
		EncryptedContent: envelope.EncodeB64(fields.EncryptedContent),
	}
	return envelope.EncodeV2(env)
}
