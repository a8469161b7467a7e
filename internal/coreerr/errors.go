// Package coreerr declares the typed error taxonomy shared by every
// layer of the secure-messaging core, so callers can branch on
// errors.Is/errors.As instead of matching diagnostic strings.
package coreerr

import (
	"errors"
	"fmt"
)

var (
	ErrStoreIO              = errors.New("key store I/O error")
	ErrKeyserverUnavailable = errors.New("all keyservers unavailable")
	ErrGithubKeyNotFound    = errors.New("github key not found")
	ErrUnverifiedKeybase    = errors.New("keybase user has no verified proof")
	ErrBadPassphrase        = errors.New("bad passphrase")
	ErrBadPrivateKey        = errors.New("bad private key")
	ErrIntegrityFailure     = errors.New("ciphertext integrity check failed")
	ErrWrongEnvelopeFormat  = errors.New("unrecognized openpgp message format")
	ErrSelfPgpNotSupported  = errors.New("self-encryption is not supported for the openpgp path")
	ErrCryptoTimeout        = errors.New("crypto operation timed out")
	ErrUserCancelled        = errors.New("operation cancelled by user")
	ErrHostAgentUnavailable = errors.New("host openpgp agent not available")
)

// WrongKeyKindError reports that a key of `Actual` kind was handed to an
// engine expecting the other kind (RSA vs OpenPGP).
type WrongKeyKindError struct {
	Actual string
}

func (e *WrongKeyKindError) Error() string {
	return fmt.Sprintf("wrong key kind: %s", e.Actual)
}

// RecipientNotFoundError reports that C3 exhausted the store and every
// configured fetcher for the given identifier.
type RecipientNotFoundError struct {
	Identifier string
}

func (e *RecipientNotFoundError) Error() string {
	return fmt.Sprintf("recipient not found: %s", e.Identifier)
}

// NoMatchingKeyError reports an OpenPGP decrypt failure because none of
// the locally available private keys match the message's recipients.
// KeyIDs carries the recipient key-IDs parsed from the message for user
// diagnosis, per spec.
type NoMatchingKeyError struct {
	KeyIDs []KeyRef
}

type KeyRef struct {
	Type string
	ID   string
}

func (e *NoMatchingKeyError) Error() string {
	return fmt.Sprintf("no matching private key for recipients: %v", e.KeyIDs)
}

// NotForYouError reports a V2 envelope whose recipient metadata does not
// match the caller's self key.
type NotForYouError struct {
	RecipientName string
}

func (e *NotForYouError) Error() string {
	return fmt.Sprintf("envelope is not addressed to you (recorded recipient: %s)", e.RecipientName)
}

// UnsupportedVersionError reports an envelope whose version tag is not
// one of {1,2,3}.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported envelope version: %d", e.Version)
}
