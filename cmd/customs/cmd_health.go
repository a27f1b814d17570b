// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// healthReport is the probe result for --json output.
type healthReport struct {
	BaseURL   string `json:"base_url"`
	Healthy   bool   `json:"healthy"`
	Status    string `json:"status,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// runHealthCommand probes GET /health and reports reachability plus
// round-trip latency.
func runHealthCommand(cmd *cobra.Command, args []string) {
	baseURL := getBackendBaseURL()
	asJSON, _ := cmd.Flags().GetBool("json")

	report := probeHealth(cmd.Context(), newHTTPClient(10*time.Second), baseURL)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			ux.Error(err.Error())
			os.Exit(1)
		}
		if !report.Healthy {
			os.Exit(1)
		}
		return
	}

	if !report.Healthy {
		ux.Error(fmt.Sprintf("Backend unreachable at %s: %s", baseURL, report.Error))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Backend healthy at %s (%dms)", baseURL, report.LatencyMs))
	if report.Status != "" {
		ux.Muted("Status: " + report.Status)
	}
}

// probeHealth measures a single GET /health round trip.
func probeHealth(ctx context.Context, client HTTPClient, baseURL string) healthReport {
	report := healthReport{BaseURL: baseURL}

	start := time.Now()
	resp, err := client.Get(ctx, fmt.Sprintf("%s/health", baseURL))
	report.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		report.Error = responseError("/health", resp).Error()
		return report
	}

	report.Healthy = true

	// The body is informational ({"status": "ok"}); a bare 200 with an
	// unparseable body still counts as healthy.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return report
	}
	var wire struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		report.Status = wire.Status
	}

	return report
}
