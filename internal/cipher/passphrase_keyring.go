package cipher

import (
	gokeyring "github.com/zalando/go-keyring"
)

// keyringService is the zalando/go-keyring service namespace this
// package stores under, mirroring aerion's internal/credentials.Store
// serviceName convention.
const keyringService = "dedpaste"

// RememberPassphrase opts an unlocked OpenPGP private-key passphrase
// into the OS keyring, keyed by the key's fingerprint. Never called
// unless appconfig.Context.RememberPassphrase is set; failure is
// non-fatal since the passphrase was already used successfully.
func RememberPassphrase(fingerprint, passphrase string) {
	if err := gokeyring.Set(keyringService, fingerprint, passphrase); err != nil {
		log.Debug().Err(err).Msg("could not cache passphrase in os keyring")
	}
}

// RecallPassphrase retrieves a previously cached passphrase, if any.
// A recalled passphrase that no longer unlocks the key fails like any
// other wrong passphrase, with coreerr.ErrBadPassphrase.
func RecallPassphrase(fingerprint string) (string, bool) {
	pass, err := gokeyring.Get(keyringService, fingerprint)
	if err != nil {
		return "", false
	}
	return pass, true
}

// ForgetPassphrase removes a cached passphrase, used by the V3 decrypt
// path when a recalled passphrase fails with coreerr.ErrBadPassphrase.
func ForgetPassphrase(fingerprint string) {
	_ = gokeyring.Delete(keyringService, fingerprint)
}
