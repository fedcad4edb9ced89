package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to keep the
// TOML friendly.
type FileConfig struct {
	Hostname       string `toml:"hostname"`
	Port           int    `toml:"port"`
	ListenAddr     string `toml:"listen_addr"`
	Adapter        string `toml:"adapter"`
	Encoder        string `toml:"encoder"`
	BundleEvery    string `toml:"bundle_every"`
	BundleMaxBytes int    `toml:"bundle_max_bytes"`
	TickEvery      string `toml:"tick_every"`
	SocketTimeout  string `toml:"socket_timeout"`
	Stats          *bool  `toml:"stats"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.wirebus/config.toml when the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wirebus", "config.toml")
	}
	return ""
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ApplyFileConfig applies configuration from a file to the Config,
// respecting flags that were explicitly set.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("hostname", fc.Hostname, &cfg.Hostname)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("adapter", fc.Adapter, &cfg.Adapter)
	s.setString("encoder", fc.Encoder, &cfg.Encoder)
	s.setInt("bundle-max-bytes", fc.BundleMaxBytes, &cfg.BundleMaxBytes)
	s.setBool("stats", fc.Stats, &cfg.Stats)

	if err := s.setDuration("bundle-every", fc.BundleEvery, &cfg.BundleEvery); err != nil {
		return err
	}
	if err := s.setDuration("tick-every", fc.TickEvery, &cfg.TickEvery); err != nil {
		return err
	}
	return s.setDuration("timeout", fc.SocketTimeout, &cfg.SocketTimeout)
}
