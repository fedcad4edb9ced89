package cliconfig

import "os"

// ApplyEnvConfig applies configuration from WIREBUS_* environment
// variables, respecting flags that were explicitly set. Returns an
// error when a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("hostname", os.Getenv("WIREBUS_HOSTNAME"), &cfg.Hostname)
	s.setString("listen", os.Getenv("WIREBUS_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("adapter", os.Getenv("WIREBUS_ADAPTER"), &cfg.Adapter)
	s.setString("encoder", os.Getenv("WIREBUS_ENCODER"), &cfg.Encoder)

	if err := s.setIntFromString("port", os.Getenv("WIREBUS_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("bundle-max-bytes", os.Getenv("WIREBUS_BUNDLE_MAX_BYTES"), &cfg.BundleMaxBytes); err != nil {
		return err
	}

	if err := s.setDuration("bundle-every", os.Getenv("WIREBUS_BUNDLE_EVERY"), &cfg.BundleEvery); err != nil {
		return err
	}
	if err := s.setDuration("tick-every", os.Getenv("WIREBUS_TICK_EVERY"), &cfg.TickEvery); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("WIREBUS_SOCKET_TIMEOUT"), &cfg.SocketTimeout); err != nil {
		return err
	}

	s.setBoolFromString("stats", os.Getenv("WIREBUS_STATS"), &cfg.Stats)
	return nil
}
