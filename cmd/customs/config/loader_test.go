// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Reload Tests
// =============================================================================

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customs.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestReload_ValidConfig(t *testing.T) {
	orig := Global
	defer func() { Global = orig }()

	path := writeConfig(t, `
backend:
  base_url: http://analysis.local:9000
  timeout_seconds: 30
ux:
  personality: machine
logging:
  level: debug
metrics:
  addr: localhost:9464
`)
	if err := Reload(path); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if Global.Backend.BaseURL != "http://analysis.local:9000" {
		t.Errorf("BaseURL = %q", Global.Backend.BaseURL)
	}
	if Global.Backend.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", Global.Backend.TimeoutSeconds)
	}
	if Global.UX.Personality != "machine" {
		t.Errorf("Personality = %q", Global.UX.Personality)
	}
	if Global.Metrics.Addr != "localhost:9464" {
		t.Errorf("Metrics.Addr = %q", Global.Metrics.Addr)
	}
}

func TestReload_MissingFile(t *testing.T) {
	orig := Global
	defer func() { Global = orig }()

	err := Reload(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReload_InvalidYAML(t *testing.T) {
	orig := Global
	defer func() { Global = orig }()

	path := writeConfig(t, "backend: [this is not\n  a mapping")
	if err := Reload(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestReload_ValidationFailure_KeepsPrevious(t *testing.T) {
	orig := Global
	defer func() { Global = orig }()

	Global = DefaultConfig()
	path := writeConfig(t, `
backend:
  base_url: "not a url"
`)
	err := Reload(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation") {
		t.Errorf("error should mention validation, got: %v", err)
	}
	if Global.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("Global should be untouched on failure, BaseURL = %q", Global.Backend.BaseURL)
	}
}

func TestReload_BadPersonality(t *testing.T) {
	orig := Global
	defer func() { Global = orig }()

	path := writeConfig(t, `
backend:
  base_url: http://localhost:8000
ux:
  personality: sarcastic
`)
	if err := Reload(path); err == nil {
		t.Fatal("expected validation error for unknown personality")
	}
}

// =============================================================================
// DefaultConfig Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("default BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutSeconds != 0 {
		t.Errorf("default TimeoutSeconds = %d, want 0", cfg.Backend.TimeoutSeconds)
	}
	if cfg.UX.Personality != "full" {
		t.Errorf("default Personality = %q", cfg.UX.Personality)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q", cfg.Logging.Level)
	}
	if err := validate.Struct(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
