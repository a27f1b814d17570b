// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type CustomsConfig struct {
	// Backend: where the analysis server lives and how long we wait for it
	Backend BackendConfig `yaml:"backend" validate:"required"`

	// UX: terminal output style
	UX UXConfig `yaml:"ux"`

	// Logging: level and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// Metrics: optional local prometheus listener
	Metrics MetricsConfig `yaml:"metrics"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`          // e.g. http://localhost:8000
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0,lte=3600"` // 0 means no timeout (streams)
}

type UXConfig struct {
	// Personality can be "full", "standard", "minimal", or "machine".
	Personality string `yaml:"personality" validate:"omitempty,oneof=full standard minimal machine"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	LogDir string `yaml:"log_dir"`
	JSON   bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. localhost:9464, empty disables the listener
}

func DefaultConfig() CustomsConfig {
	return CustomsConfig{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 0,
		},
		UX: UXConfig{
			Personality: "full",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{},
	}
}
