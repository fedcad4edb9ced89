// Package cliconfig holds the layered configuration of the wirebus CLI:
// built-in defaults, overridden by a TOML config file, overridden by
// WIREBUS_* environment variables, overridden by explicitly set flags.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds CLI configuration for wirebus.
type Config struct {
	// Hostname and Port are the remote endpoint for client commands,
	// ListenAddr the bind address for the serve command.
	Hostname   string
	Port       int
	ListenAddr string

	Adapter string
	Encoder string

	BundleEvery    time.Duration
	BundleMaxBytes int
	TickEvery      time.Duration

	SocketTimeout time.Duration
	Stats         bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Hostname:      "localhost",
		Port:          7341,
		ListenAddr:    ":7341",
		Adapter:       "tcp",
		Encoder:       "json",
		BundleEvery:   50 * time.Millisecond,
		TickEvery:     50 * time.Millisecond,
		SocketTimeout: 15 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Adapter == "" {
		return fmt.Errorf("adapter is required")
	}
	if c.Encoder == "" {
		return fmt.Errorf("encoder is required")
	}
	if c.BundleEvery <= 0 {
		return fmt.Errorf("bundle interval must be positive")
	}
	if c.TickEvery <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	return nil
}

// Logger returns the zerolog logger used by the CLI before the library
// logger is constructed.
func Logger() zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
}

// configSetter applies configuration values while respecting flag
// precedence: a value is skipped when its flag was explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int, for environment variables.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool, for environment variables.
// Accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
