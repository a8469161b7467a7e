package keyfetch

import "fmt"

// FetchResult is the common shape every fetcher returns: the armored
// public key plus enough identity metadata for the caller (C3) to build
// a KeyRecord, and SourceURLOrOrigin recording which server/endpoint it
// actually came from (spec.md §3's "source_url_or_origin").
type FetchResult struct {
	Armored     []byte
	Fingerprint string
	KeyID       string
	Email       string
	Username    string
	Name        string
	Origin      string
}

// TimeoutError distinguishes a fetch that exceeded its wall-clock
// budget from an ordinary network failure, per spec.md §4.2.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Operation)
}
