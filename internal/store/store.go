// Package store implements C1, the persistent key database of
// spec.md §4.1: a JSON metadata file at <HOME>/.dedpaste/keydb.json
// plus five on-disk subtrees holding the actual key material. The
// database file is guarded by an advisory file lock (spec.md §5) so
// concurrent processes serialize rather than corrupt each other's
// writes, generalized from the teacher's internal/config.LoadVault /
// Vault.Save read-modify-write shape (internal/config/vault.go) from
// one YAML vault file to a JSON keydb spanning five backends.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/coreerr"
	"github.com/dedpaste/dedpaste/internal/logging"
	"github.com/gofrs/flock"
)

const (
	dirPerms  = 0o700
	filePerms = 0o600
)

var log = logging.New("store")

// database is the on-disk shape of keydb.json.
type database struct {
	Keys []KeyRecord `json:"keys"`
}

// Store is the C1 Key Store. It is safe to share across goroutines
// within one process; across processes the advisory lock on keydb.json
// serializes load/mutate/save cycles (spec.md §5).
type Store struct {
	ctx *appconfig.Context
}

// New builds a Store rooted at ctx.HomeDir, creating the directory
// tree spec.md §6 names if it does not already exist.
func New(ctx *appconfig.Context) (*Store, error) {
	dirs := []string{
		ctx.HomeDir,
		ctx.KeysPath(),
		ctx.FriendsPath(),
		ctx.PgpPath(),
		ctx.KeybasePath(),
		ctx.GithubPath(),
		filepath.Dir(ctx.LogsPath()),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, dirPerms); err != nil {
			return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
		}
	}
	return &Store{ctx: ctx}, nil
}

func (s *Store) lockPath() string {
	return s.ctx.KeydbPath() + ".lock"
}

// withLock runs fn while holding an exclusive advisory lock on the
// keydb file, guaranteeing the load-mutate-save cycle of a single
// public operation is serialized against other processes.
func (s *Store) withLock(fn func() error) error {
	fl := flock.New(s.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("%w: acquiring keydb lock: %v", coreerr.ErrStoreIO, err)
	}
	defer fl.Unlock()
	return fn()
}

// load reads keydb.json. A missing file is treated as an empty
// database. A corrupt file is treated as empty with a warning logged —
// the store never silently deletes entries, so the caller must
// explicitly save() to actually overwrite a corrupt file on disk.
func (s *Store) load() (*database, error) {
	data, err := os.ReadFile(s.ctx.KeydbPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &database{}, nil
		}
		return nil, fmt.Errorf("%w: reading keydb: %v", coreerr.ErrStoreIO, err)
	}

	var db database
	if err := json.Unmarshal(data, &db); err != nil {
		log.Warn().Err(err).Msg("keydb.json is corrupt; treating as empty")
		return &database{}, nil
	}
	return &db, nil
}

func (s *Store) save(db *database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding keydb: %v", coreerr.ErrStoreIO, err)
	}
	if err := os.WriteFile(s.ctx.KeydbPath(), data, filePerms); err != nil {
		return fmt.Errorf("%w: writing keydb: %v", coreerr.ErrStoreIO, err)
	}
	return nil
}

// Get returns the KeyRecord for (backend, id). backend=BackendAny
// searches every backend in the fixed precedence order.
func (s *Store) Get(backend Backend, id string) (*KeyRecord, bool, error) {
	var found *KeyRecord
	err := s.withLock(func() error {
		db, err := s.load()
		if err != nil {
			return err
		}
		found = lookup(db, backend, id)
		return nil
	})
	return found, found != nil, err
}

func lookup(db *database, backend Backend, id string) *KeyRecord {
	backends := []Backend{backend}
	if backend == BackendAny {
		backends = precedence
	}
	for _, b := range backends {
		for i := range db.Keys {
			if db.Keys[i].Backend == b && db.Keys[i].ID == id {
				rec := db.Keys[i]
				return &rec
			}
		}
	}
	return nil
}

// List returns every record for a single real backend (BackendAny is
// not accepted — callers wanting everything should loop precedence
// themselves, matching the diagnostic-report read path spec.md leaves
// to its excluded UI).
func (s *Store) List(backend Backend) ([]KeyRecord, error) {
	if backend == BackendAny {
		return nil, fmt.Errorf("List does not accept BackendAny")
	}
	var out []KeyRecord
	err := s.withLock(func() error {
		db, err := s.load()
		if err != nil {
			return err
		}
		for _, rec := range db.Keys {
			if rec.Backend == backend {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

// upsert inserts or replaces the record uniquely identified by
// (backend, id), enforcing the uniqueness invariants of spec.md §3:
// fingerprint unique within backend, (backend,id) globally unique, and
// at most one "self" record.
func (s *Store) upsert(rec KeyRecord) error {
	return s.withLock(func() error {
		db, err := s.load()
		if err != nil {
			return err
		}

		if rec.Backend == BackendSelf {
			db.Keys = filterOut(db.Keys, func(k KeyRecord) bool { return k.Backend == BackendSelf })
		}

		replaced := false
		for i := range db.Keys {
			if db.Keys[i].Backend == rec.Backend && db.Keys[i].ID == rec.ID {
				db.Keys[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			db.Keys = append(db.Keys, rec)
		}

		return s.save(db)
	})
}

func filterOut(in []KeyRecord, match func(KeyRecord) bool) []KeyRecord {
	out := in[:0:0]
	for _, k := range in {
		if !match(k) {
			out = append(out, k)
		}
	}
	return out
}

// PutFriend normalizes line endings, validates the RSA PEM header, and
// upserts a "friend" KeyRecord, per spec.md §4.1.
func (s *Store) PutFriend(name string, pemBytes []byte) (*KeyRecord, error) {
	if err := validateID(name); err != nil {
		return nil, err
	}
	normalized := normalizeLineEndings(pemBytes)
	if err := ValidateRSAPem(normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", &coreerr.WrongKeyKindError{Actual: "unknown"}, err)
	}
	fingerprint, err := FingerprintRSA(normalized)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.ctx.FriendsPath(), name+".pem")
	if err := os.WriteFile(path, normalized, filePerms); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	rec := KeyRecord{
		ID:          name,
		Backend:     BackendFriend,
		KeyKind:     KeyKindRSAPem,
		Fingerprint: fingerprint,
		PublicPath:  path,
		Name:        name,
		AddedAt:     time.Now().UTC(),
	}
	if err := s.upsert(rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutOpenPGP upserts a KeyRecord for any of the three OpenPGP-natured
// backends (pgp, keybase, github), writing the armored key to
// <backend>/<id>.asc.
func (s *Store) PutOpenPGP(backend Backend, id, fingerprint string, armored []byte, attrs KeyAttrs) (*KeyRecord, error) {
	if backend != BackendPgp && backend != BackendKeybase && backend != BackendGithub {
		return nil, fmt.Errorf("PutOpenPGP does not accept backend %q", backend)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := ValidateOpenPGPArmor(armored); err != nil {
		return nil, err
	}

	dir := s.backendDir(backend)
	path := filepath.Join(dir, id+".asc")
	if err := os.WriteFile(path, armored, filePerms); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	rec := KeyRecord{
		ID:                id,
		Backend:           backend,
		KeyKind:           KeyKindOpenPGPArmored,
		Fingerprint:       fingerprint,
		PublicPath:        path,
		Email:             attrs.Email,
		Username:          attrs.Username,
		Name:              attrs.Name,
		AddedAt:           time.Now().UTC(),
		SourceURLOrOrigin: attrs.SourceURLOrOrigin,
	}
	if err := s.upsert(rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// KeyAttrs carries the optional descriptive attributes spec.md §3
// allows on a KeyRecord.
type KeyAttrs struct {
	Email             string
	Username          string
	Name              string
	SourceURLOrOrigin string
}

func (s *Store) backendDir(backend Backend) string {
	switch backend {
	case BackendPgp:
		return s.ctx.PgpPath()
	case BackendKeybase:
		return s.ctx.KeybasePath()
	case BackendGithub:
		return s.ctx.GithubPath()
	case BackendFriend:
		return s.ctx.FriendsPath()
	default:
		return s.ctx.KeysPath()
	}
}

// PutSelf writes the 4096-bit RSA keypair material already generated by
// the caller (internal/cipher owns key generation; the store only
// persists it) to keys/self.key (mode 0600) and keys/self.pub, then
// upserts the unique "self" KeyRecord.
func (s *Store) PutSelf(publicPem, privatePem []byte, fingerprint string) (*KeyRecord, error) {
	pubPath := filepath.Join(s.ctx.KeysPath(), "self.pub")
	privPath := filepath.Join(s.ctx.KeysPath(), "self.key")

	if err := os.WriteFile(pubPath, publicPem, filePerms); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}
	if err := os.WriteFile(privPath, privatePem, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	rec := KeyRecord{
		ID:          "self",
		Backend:     BackendSelf,
		KeyKind:     KeyKindRSAPem,
		Fingerprint: fingerprint,
		PublicPath:  pubPath,
		PrivatePath: privPath,
		Name:        "self",
		AddedAt:     time.Now().UTC(),
	}
	if err := s.upsert(rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Remove unlinks the key file(s) and deletes the record. Idempotent:
// returns removed=false (not an error) if nothing matched.
func (s *Store) Remove(backend Backend, id string) (removed bool, err error) {
	err = s.withLock(func() error {
		db, loadErr := s.load()
		if loadErr != nil {
			return loadErr
		}

		rec := lookup(db, backend, id)
		if rec == nil {
			return nil
		}
		removed = true

		if rec.PublicPath != "" {
			_ = os.Remove(rec.PublicPath)
		}
		if rec.PrivatePath != "" {
			_ = os.Remove(rec.PrivatePath)
		}

		db.Keys = filterOut(db.Keys, func(k KeyRecord) bool {
			return k.Backend == rec.Backend && k.ID == rec.ID
		})
		return s.save(db)
	})
	return removed, err
}

// UpdateLastUsed sets last_used_at to now for the record (backend, id);
// with backend=BackendAny, for the first record matching id across the
// fixed backend precedence. Resolving does not call it: C6 calls it
// (directly, or through Resolver.MarkUsed) only after a successful
// encrypt/decrypt (spec.md §5, §9: "only on success").
func (s *Store) UpdateLastUsed(backend Backend, id string) error {
	return s.withLock(func() error {
		db, err := s.load()
		if err != nil {
			return err
		}
		backends := []Backend{backend}
		if backend == BackendAny {
			backends = precedence
		}
		for _, b := range backends {
			for i := range db.Keys {
				if db.Keys[i].Backend == b && db.Keys[i].ID == id {
					db.Keys[i].LastUsedAt = time.Now().UTC()
					return s.save(db)
				}
			}
		}
		return nil
	})
}

// SearchResult is one hit from Search, carrying which backend it came
// from so callers can disambiguate same-named records.
type SearchResult struct {
	Record KeyRecord
}

// Search performs a case-insensitive substring match of the whole query
// against each of {id, name, email, username, fingerprint} across all
// backends. The query is not split into words: a record matches only if
// one field contains the complete query. Keys held by the host agent are
// not searched; keyfetch.Client.ListHostAgentKeys lists those separately.
func (s *Store) Search(query string) ([]SearchResult, error) {
	q := strings.ToLower(query)
	var results []SearchResult
	err := s.withLock(func() error {
		db, err := s.load()
		if err != nil {
			return err
		}
		for _, rec := range db.Keys {
			if matchesQuery(rec, q) {
				results = append(results, SearchResult{Record: rec})
			}
		}
		return nil
	})
	return results, err
}

func matchesQuery(rec KeyRecord, q string) bool {
	fields := []string{rec.ID, rec.Name, rec.Email, rec.Username, rec.Fingerprint}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func normalizeLineEndings(b []byte) []byte {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
