package appconfig

import (
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// LoadKeyserverOverride reads an optional ~/.dedpaste/keyservers.ini
// overriding the HKP precedence order without touching config.yaml,
// parsed with gopkg.in/ini.v1 (carried from the teacher's INI secret-file
// parser, repurposed here for an ad hoc key=value override file since
// the paste core has no INI-formatted secrets of its own).
//
// Expected shape:
//
//	[keyservers]
//	order = keys.openpgp.org,keyserver.ubuntu.com,pgp.mit.edu
func (c *Context) LoadKeyserverOverride() error {
	path := c.HomeDir + string(os.PathSeparator) + "keyservers.ini"
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}

	raw := cfg.Section("keyservers").Key("order").String()
	if raw == "" {
		return nil
	}

	var servers []string
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			servers = append(servers, field)
		}
	}
	if len(servers) > 0 {
		c.Keyservers = servers
	}
	return nil
}
