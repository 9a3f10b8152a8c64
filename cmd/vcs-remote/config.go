package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the optional ~/.vcs-remote.yaml file.
type Config struct {
	// IdentityFile is a private key used for SSH public-key auth. When set,
	// it is preferred over password prompting.
	IdentityFile string `yaml:"identity_file"`

	// Passphrase decrypts IdentityFile if the key is encrypted.
	Passphrase string `yaml:"passphrase"`

	// KnownHosts is an OpenSSH known_hosts file used to verify remote host
	// keys. Empty accepts any host key.
	KnownHosts string `yaml:"known_hosts"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// loadConfig reads path, or ~/.vcs-remote.yaml when path is empty. A missing
// default file yields a zero config; a missing explicit file is an error.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".vcs-remote.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
