// Package appconfig holds the process-wide configuration values
// spec.md §9 says to thread through a context struct rather than keep
// as mutable statics: the key database root, the HKP keyserver
// precedence list, fetch/host-agent behavior flags, and timeouts.
package appconfig

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultListTimeout   = 8 * time.Second
	DefaultExportTimeout = 12 * time.Second
	DefaultAgentTimeout  = 30 * time.Second
)

// DefaultKeyservers is the HKP precedence order spec.md §4.2 names.
var DefaultKeyservers = []string{
	"keys.openpgp.org",
	"keyserver.ubuntu.com",
	"pgp.mit.edu",
}

// Context is threaded through C1-C6 instead of relying on package
// globals (spec.md §9 "Globals").
type Context struct {
	// HomeDir is "<HOME>/.dedpaste" from spec.md §6's on-disk layout.
	HomeDir string

	Keyservers []string

	UseHostAgent        bool
	AutoFetch           bool
	RefreshGithubKeys   bool
	VerifyKeybaseProofs bool
	ForcePgp            bool

	HostAgentExec string

	ListTimeout   time.Duration
	ExportTimeout time.Duration
	AgentTimeout  time.Duration

	// RememberPassphrase opts into caching an unlocked OpenPGP private
	// key passphrase in the OS keyring (internal/cipher), never
	// required and off by default.
	RememberPassphrase bool
}

// Default returns a Context with the documented defaults and
// ~/.dedpaste as the home directory.
func Default() (*Context, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Context{
		HomeDir:             filepath.Join(home, ".dedpaste"),
		Keyservers:          append([]string(nil), DefaultKeyservers...),
		UseHostAgent:        false,
		AutoFetch:           true,
		RefreshGithubKeys:   false,
		VerifyKeybaseProofs: false,
		ForcePgp:            false,
		HostAgentExec:       "gpg",
		ListTimeout:         DefaultListTimeout,
		ExportTimeout:       DefaultExportTimeout,
		AgentTimeout:        DefaultAgentTimeout,
		RememberPassphrase:  false,
	}, nil
}

func (c *Context) KeysPath() string    { return filepath.Join(c.HomeDir, "keys") }
func (c *Context) FriendsPath() string { return filepath.Join(c.HomeDir, "friends") }
func (c *Context) PgpPath() string     { return filepath.Join(c.HomeDir, "pgp") }
func (c *Context) KeybasePath() string { return filepath.Join(c.HomeDir, "keybase") }
func (c *Context) GithubPath() string  { return filepath.Join(c.HomeDir, "github") }
func (c *Context) KeydbPath() string   { return filepath.Join(c.HomeDir, "keydb.json") }
func (c *Context) GroupsPath() string  { return filepath.Join(c.HomeDir, "groups.json") }
func (c *Context) LogsPath() string    { return filepath.Join(c.HomeDir, "logs", "dedpaste.log") }
