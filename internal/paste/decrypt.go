package paste

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dedpaste/dedpaste/internal/cipher"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/envelope"
	"github.com/dedpaste/dedpaste/internal/store"
)

// DecryptOpts carries the caller-supplied material the V3 fallback
// chain needs: an optional OpenPGP private key file and passphrase, per
// spec.md §4.6.
type DecryptOpts struct {
	PrivateKeyPath string
	Passphrase     string
}

// Decrypt implements spec.md §4.6's decrypt operation: parse via C4,
// route by version, and for V3 run the host-agent/private-key fallback
// chain.
func (o *Orchestrator) Decrypt(ctx context.Context, envelopeBytes []byte, opts DecryptOpts) ([]byte, *SenderInfo, error) {
	o.startOperation("decrypt")
	version, err := envelope.Sniff(envelopeBytes)
	if err != nil {
		return nil, nil, err
	}

	switch version {
	case 1:
		return o.decryptV1(envelopeBytes)
	case 2:
		return o.decryptV2(envelopeBytes)
	case 3:
		return o.decryptV3(ctx, envelopeBytes, opts)
	default:
		return nil, nil, &coreerr.UnsupportedVersionError{Version: version}
	}
}

func (o *Orchestrator) decryptV1(envelopeBytes []byte) ([]byte, *SenderInfo, error) {
	env, err := envelope.DecodeV1(envelopeBytes)
	if err != nil {
		return nil, nil, err
	}
	fields, err := decodeHybridFields(env.EncryptedKey, env.IV, env.AuthTag, env.EncryptedContent)
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := o.hybridDecryptSelf(*fields)
	if err != nil {
		return nil, nil, err
	}
	if err := o.store.UpdateLastUsed(store.BackendSelf, "self"); err != nil {
		o.opLog.Warn().Err(err).Msg("failed to update last_used_at for self")
	}
	return plaintext, &SenderInfo{}, nil
}

func (o *Orchestrator) decryptV2(envelopeBytes []byte) ([]byte, *SenderInfo, error) {
	env, err := envelope.DecodeV2(envelopeBytes)
	if err != nil {
		return nil, nil, err
	}

	selfRec, ok, err := o.store.Get(store.BackendSelf, "self")
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &coreerr.RecipientNotFoundError{Identifier: "self"}
	}

	recipient := env.Metadata.Recipient
	isForSelf := recipient.Type == "self" || recipient.Name == "self" || recipient.Fingerprint == selfRec.Fingerprint
	if !isForSelf {
		return nil, nil, &coreerr.NotForYouError{RecipientName: recipient.Name}
	}

	fields, err := decodeHybridFields(env.EncryptedKey, env.IV, env.AuthTag, env.EncryptedContent)
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := o.hybridDecryptSelf(*fields)
	if err != nil {
		return nil, nil, err
	}
	if err := o.store.UpdateLastUsed(store.BackendSelf, "self"); err != nil {
		o.opLog.Warn().Err(err).Msg("failed to update last_used_at for self")
	}
	return plaintext, &SenderInfo{Sender: env.Metadata.Sender, Timestamp: env.Metadata.Timestamp}, nil
}

// decryptV3 runs the fallback chain of spec.md §4.5.2/§4.6: if
// useHostAgent is set, try the host agent first; on failure, fall back
// to a provided private key file; if both fail, the first failure's
// diagnostic (enriched with recipient key-IDs) is returned.
//
// spec.md §4.6 also describes falling back to "a self OpenPGP private
// key" held by the store when neither a private key path nor the host
// agent is configured. This store's put_self (spec.md §4.1) always
// generates an RSA keypair under the "self" backend, so no such record
// can ever exist; that branch is therefore unreachable by construction
// and is not implemented (see DESIGN.md).
func (o *Orchestrator) decryptV3(ctx context.Context, envelopeBytes []byte, opts DecryptOpts) ([]byte, *SenderInfo, error) {
	env, err := envelope.DecodeV3(envelopeBytes)
	if err != nil {
		return nil, nil, err
	}
	armoredCiphertext, err := envelope.DecodeB64(env.PgpEncrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}

	var firstErr error

	if o.ctx.UseHostAgent {
		plaintext, err := cipher.HostAgentDecrypt(ctx, o.ctx, armoredCiphertext)
		if err == nil {
			return plaintext, senderInfoFromV3(env), nil
		}
		firstErr = err
		o.opLog.Warn().Err(err).Msg("host agent decrypt failed; falling back to provided private key if any")
	}

	if opts.PrivateKeyPath == "" {
		if firstErr != nil {
			return nil, nil, firstErr
		}
		return nil, nil, fmt.Errorf("%w: no host agent configured and no private key provided", coreerr.ErrBadPrivateKey)
	}

	armoredPrivateKey, err := os.ReadFile(opts.PrivateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	passphrase, fingerprint, recalled := o.resolvePassphrase(armoredPrivateKey, opts.Passphrase)

	plaintext, err := cipher.OpenPGPDecryptWithPrivateKey(ctx, armoredCiphertext, armoredPrivateKey, passphrase)
	if err != nil {
		if recalled && errors.Is(err, coreerr.ErrBadPassphrase) {
			cipher.ForgetPassphrase(fingerprint)
		}
		if firstErr != nil {
			return nil, nil, enrichWithKeyIDs(firstErr, err)
		}
		return nil, nil, err
	}

	if o.ctx.RememberPassphrase && fingerprint != "" && passphrase != "" {
		cipher.RememberPassphrase(fingerprint, passphrase)
	}

	return plaintext, senderInfoFromV3(env), nil
}

// resolvePassphrase implements spec.md §6's optional passphrase cache:
// if the caller gave no passphrase and caching is enabled, it recalls
// one from the OS keyring keyed by the private key's fingerprint.
// recalled reports whether the returned passphrase came from the
// cache, so the caller can evict it on a bad-passphrase failure.
func (o *Orchestrator) resolvePassphrase(armoredPrivateKey []byte, given string) (passphrase, fingerprint string, recalled bool) {
	fingerprint, fpErr := cipher.PrivateKeyFingerprint(armoredPrivateKey)
	if fpErr != nil {
		o.opLog.Debug().Err(fpErr).Msg("could not fingerprint private key for passphrase cache")
		return given, "", false
	}
	if given != "" || !o.ctx.RememberPassphrase {
		return given, fingerprint, false
	}
	if cached, ok := cipher.RecallPassphrase(fingerprint); ok {
		return cached, fingerprint, true
	}
	return given, fingerprint, false
}

func senderInfoFromV3(env *envelope.V3) *SenderInfo {
	return &SenderInfo{Sender: env.Metadata.Sender, Timestamp: env.Metadata.Timestamp}
}

// enrichWithKeyIDs merges the recipient key-IDs C5 attached to either
// failure into a single NoMatchingKeyError, preferring the detail
// already captured by the host-agent attempt (the first branch tried),
// per spec.md §4.5.2's "surface the first's diagnostic enriched with
// key-IDs".
func enrichWithKeyIDs(first, second error) error {
	var firstNoMatch, secondNoMatch *coreerr.NoMatchingKeyError
	firstHasIDs := errorAsNoMatch(first, &firstNoMatch)
	secondHasIDs := errorAsNoMatch(second, &secondNoMatch)

	switch {
	case firstHasIDs:
		return firstNoMatch
	case secondHasIDs:
		return secondNoMatch
	default:
		return fmt.Errorf("host agent decrypt failed (%v), private key decrypt failed (%v)", first, second)
	}
}

func errorAsNoMatch(err error, target **coreerr.NoMatchingKeyError) bool {
	if nm, ok := err.(*coreerr.NoMatchingKeyError); ok {
		*target = nm
		return true
	}
	return false
}

func decodeHybridFields(encryptedKey, iv, authTag, encryptedContent string) (*cipher.HybridFields, error) {
	key, err := envelope.DecodeB64(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding encryptedKey: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	ivBytes, err := envelope.DecodeB64(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding iv: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if err := envelope.ValidateIV(ivBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	tag, err := envelope.DecodeB64(authTag)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding authTag: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	if err := envelope.ValidateAuthTag(tag); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}
	content, err := envelope.DecodeB64(encryptedContent)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding encryptedContent: %v", coreerr.ErrWrongEnvelopeFormat, err)
	}

	return &cipher.HybridFields{
		EncryptedKey:     key,
		IV:               ivBytes,
		AuthTag:          tag,
		EncryptedContent: content,
	}, nil
}

// hybridDecryptSelf decrypts hybrid fields against the store's "self"
// RSA private key, the only private key V1/V2 envelopes are ever
// addressed to.
func (o *Orchestrator) hybridDecryptSelf(fields cipher.HybridFields) ([]byte, error) {
	selfRec, ok, err := o.store.Get(store.BackendSelf, "self")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &coreerr.RecipientNotFoundError{Identifier: "self"}
	}
	rsaPrivatePem, err := os.ReadFile(selfRec.PrivatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}
	return cipher.HybridDecrypt(fields, rsaPrivatePem)
}
