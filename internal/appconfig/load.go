package appconfig

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of ~/.dedpaste/config.yaml, persisted
// the way the teacher's internal/config.Config saves its CLI settings:
// YAML via gopkg.in/yaml.v3, read-modify-write, missing file treated as
// defaults.
type fileConfig struct {
	UseHostAgent        bool   `yaml:"use_host_agent"`
	AutoFetch           bool   `yaml:"auto_fetch"`
	RefreshGithubKeys   bool   `yaml:"refresh_github_keys"`
	VerifyKeybaseProofs bool   `yaml:"verify_keybase_proofs"`
	ForcePgp            bool   `yaml:"force_pgp"`
	HostAgentExec       string `yaml:"host_agent_exec"`
	RememberPassphrase  bool   `yaml:"remember_passphrase"`
}

// configPath returns HomeDir/config.yaml.
func (c *Context) configPath() string {
	return c.HomeDir + string(os.PathSeparator) + "config.yaml"
}

// LoadFile overlays ~/.dedpaste/config.yaml onto the receiver. A missing
// file is not an error — the Context keeps its Default() values.
func (c *Context) LoadFile() error {
	data, err := os.ReadFile(c.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	c.UseHostAgent = fc.UseHostAgent
	c.AutoFetch = fc.AutoFetch
	c.RefreshGithubKeys = fc.RefreshGithubKeys
	c.VerifyKeybaseProofs = fc.VerifyKeybaseProofs
	c.ForcePgp = fc.ForcePgp
	c.RememberPassphrase = fc.RememberPassphrase
	if fc.HostAgentExec != "" {
		c.HostAgentExec = fc.HostAgentExec
	}
	return nil
}

// SaveFile writes the current Context's CLI-facing settings back to
// ~/.dedpaste/config.yaml, mirroring the teacher's Config.Save.
func (c *Context) SaveFile() error {
	fc := fileConfig{
		UseHostAgent:        c.UseHostAgent,
		AutoFetch:           c.AutoFetch,
		RefreshGithubKeys:   c.RefreshGithubKeys,
		VerifyKeybaseProofs: c.VerifyKeybaseProofs,
		ForcePgp:            c.ForcePgp,
		HostAgentExec:       c.HostAgentExec,
		RememberPassphrase:  c.RememberPassphrase,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&fc); err != nil {
		return err
	}
	enc.Close()

	if err := os.MkdirAll(c.HomeDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.configPath(), buf.Bytes(), 0o600)
}
