package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Hostname != "localhost" {
		t.Errorf("Hostname = %v, want localhost", cfg.Hostname)
	}
	if cfg.Port != 7341 {
		t.Errorf("Port = %v, want 7341", cfg.Port)
	}
	if cfg.Adapter != "tcp" {
		t.Errorf("Adapter = %v, want tcp", cfg.Adapter)
	}
	if cfg.Encoder != "json" {
		t.Errorf("Encoder = %v, want json", cfg.Encoder)
	}
	if cfg.BundleEvery != 50*time.Millisecond {
		t.Errorf("BundleEvery = %v, want 50ms", cfg.BundleEvery)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing hostname", func(c *Config) { c.Hostname = "" }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"missing adapter", func(c *Config) { c.Adapter = "" }, true},
		{"missing encoder", func(c *Config) { c.Encoder = "" }, true},
		{"zero bundle interval", func(c *Config) { c.BundleEvery = 0 }, true},
		{"zero tick interval", func(c *Config) { c.TickEvery = 0 }, true},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestConfigSetterRespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	s := newConfigSetter(map[string]bool{"hostname": true})

	s.setString("hostname", "ignored.example.com", &cfg.Hostname)
	if cfg.Hostname != "localhost" {
		t.Errorf("Hostname = %v, changed flag was not respected", cfg.Hostname)
	}

	s.setString("adapter", "ws", &cfg.Adapter)
	if cfg.Adapter != "ws" {
		t.Errorf("Adapter = %v, want ws", cfg.Adapter)
	}
}

func TestConfigSetterParsing(t *testing.T) {
	s := newConfigSetter(nil)

	var d time.Duration
	if err := s.setDuration("x", "250ms", &d); err != nil || d != 250*time.Millisecond {
		t.Errorf("setDuration = %v, %v", d, err)
	}
	if err := s.setDuration("x", "junk", &d); err == nil {
		t.Error("setDuration accepted junk")
	}

	var i int
	if err := s.setIntFromString("x", "42", &i); err != nil || i != 42 {
		t.Errorf("setIntFromString = %v, %v", i, err)
	}
	if err := s.setIntFromString("x", "junk", &i); err == nil {
		t.Error("setIntFromString accepted junk")
	}
	if err := s.setIntFromString("x", "-5", &i); err != nil || i != 42 {
		t.Errorf("non-positive value applied: %v, %v", i, err)
	}

	var b bool
	s.setBoolFromString("x", "true", &b)
	if !b {
		t.Error("setBoolFromString did not apply true")
	}
	s.setBoolFromString("x", "0", &b)
	if b {
		t.Error("setBoolFromString did not apply false")
	}
}
