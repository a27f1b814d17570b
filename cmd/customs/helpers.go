// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/HighNCode/Customs-Analyzer/cmd/customs/config"
)

// Constants for default connection settings
const (
	DefaultBackendPort = 8000
	DefaultBackendHost = "localhost"
)

// getBackendBaseURL returns the address of the analysis backend.
func getBackendBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & Docker overrides)
	if url := os.Getenv("CUSTOMS_BACKEND_URL"); url != "" {
		return url
	}
	// 2. Config file
	if config.Global.Backend.BaseURL != "" {
		return config.Global.Backend.BaseURL
	}
	// 3. Default: Standard Host/Port
	return fmt.Sprintf("http://%s:%d", DefaultBackendHost, DefaultBackendPort)
}

// backendTimeout returns the configured request timeout. Zero disables
// the deadline, which streaming responses require.
func backendTimeout() time.Duration {
	return time.Duration(config.Global.Backend.TimeoutSeconds) * time.Second
}
