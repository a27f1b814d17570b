// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
)

func testSummary() dataset.Summary {
	return dataset.Summary{
		TotalRows:       15000,
		UniqueImporters: 480,
		UniqueHSCodes:   210,
		UniqueCountries: 34,
		TotalValue:      12345678.90,
		TotalDutyPaid:   987654.32,
		TotalTaxPaid:    456789.10,
	}
}

// =============================================================================
// Header Tests
// =============================================================================

func TestChatUI_Header_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Header("http://localhost:8000", "sess-123")

	out := buf.String()
	if !strings.Contains(out, "CHAT_START:") {
		t.Errorf("expected CHAT_START line, got %q", out)
	}
	if !strings.Contains(out, "backend=http://localhost:8000") {
		t.Errorf("expected backend field, got %q", out)
	}
	if !strings.Contains(out, "session=sess-123") {
		t.Errorf("expected session field, got %q", out)
	}
}

func TestChatUI_HeaderWithConfig_MachineMode_Dataset(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	s := testSummary()
	ui.HeaderWithConfig(HeaderConfig{
		BaseURL:     "http://localhost:8000",
		SessionID:   "sess-123",
		DatasetFile: "imports.csv",
		Summary:     &s,
	})

	out := buf.String()
	if !strings.Contains(out, "dataset=imports.csv") {
		t.Errorf("expected dataset field, got %q", out)
	}
	if !strings.Contains(out, "rows=15000") {
		t.Errorf("expected rows field, got %q", out)
	}
}

func TestChatUI_HeaderWithConfig_MinimalMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMinimal)

	s := testSummary()
	ui.HeaderWithConfig(HeaderConfig{
		BaseURL:     "http://localhost:8000",
		DatasetFile: "imports.csv",
		Summary:     &s,
	})

	out := buf.String()
	if !strings.Contains(out, "imports.csv") {
		t.Errorf("expected dataset file name, got %q", out)
	}
	if !strings.Contains(out, "15,000 rows") {
		t.Errorf("expected formatted row count, got %q", out)
	}
}

func TestChatUI_HeaderWithConfig_FullMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityFull)

	ui.HeaderWithConfig(HeaderConfig{
		BaseURL:   "http://localhost:8000",
		SessionID: "sess-123",
	})

	out := buf.String()
	if !strings.Contains(out, "AI-Powered Customs Analyzer") {
		t.Errorf("expected title in header, got %q", out)
	}
	if !strings.Contains(out, "sess-123") {
		t.Errorf("expected session id in header, got %q", out)
	}
}

// =============================================================================
// Prompt / Response Tests
// =============================================================================

func TestChatUI_Prompt_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	if got := ui.Prompt(); got != "> " {
		t.Errorf("expected plain prompt, got %q", got)
	}
}

func TestChatUI_Response_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Response("Top importer is ACME Corp.")

	if !strings.Contains(buf.String(), "RESPONSE: Top importer is ACME Corp.") {
		t.Errorf("expected RESPONSE line, got %q", buf.String())
	}
}

// =============================================================================
// DatasetSummary Tests
// =============================================================================

func TestChatUI_DatasetSummary_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.DatasetSummary(testSummary())

	out := buf.String()
	if !strings.Contains(out, "DATASET: rows=15000") {
		t.Errorf("expected DATASET line, got %q", out)
	}
	if !strings.Contains(out, "importers=480") {
		t.Errorf("expected importer count, got %q", out)
	}
}

func TestChatUI_DatasetSummary_FullMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityFull)

	ui.DatasetSummary(testSummary())

	out := buf.String()
	if !strings.Contains(out, "Dataset Summary") {
		t.Errorf("expected summary title, got %q", out)
	}
	if !strings.Contains(out, "15,000") {
		t.Errorf("expected formatted row count, got %q", out)
	}
}

func TestChatUI_NoDataset_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.NoDataset()

	if !strings.Contains(buf.String(), "DATASET: none") {
		t.Errorf("expected DATASET: none, got %q", buf.String())
	}
}

// =============================================================================
// VisualizationReady / Error Tests
// =============================================================================

func TestChatUI_VisualizationReady_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.VisualizationReady("res-42")

	if !strings.Contains(buf.String(), "VIZ_READY: result=res-42") {
		t.Errorf("expected VIZ_READY line, got %q", buf.String())
	}
}

func TestChatUI_VisualizationReady_FullMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityFull)

	ui.VisualizationReady("res-42")

	out := buf.String()
	if !strings.Contains(out, "customs viz res-42") {
		t.Errorf("expected viz command hint, got %q", out)
	}
}

func TestChatUI_Error_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Error(errors.New("backend unreachable"))

	if !strings.Contains(buf.String(), "CHAT_ERROR: backend unreachable") {
		t.Errorf("expected CHAT_ERROR line, got %q", buf.String())
	}
}

// =============================================================================
// SessionEnd Tests
// =============================================================================

func TestChatUI_SessionEnd_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEnd("sess-123")

	if !strings.Contains(buf.String(), "CHAT_END: session=sess-123") {
		t.Errorf("expected CHAT_END line, got %q", buf.String())
	}
}

func TestChatUI_SessionEndRich_NilStats_FallsBack(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEndRich("sess-123", nil)

	if !strings.Contains(buf.String(), "CHAT_END: session=sess-123") {
		t.Errorf("expected fallback to SessionEnd, got %q", buf.String())
	}
}

func TestChatUI_SessionEndRich_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEndRich("sess-123", &SessionStats{
		QueryCount:     4,
		TotalTokens:    512,
		ResultsTracked: 2,
		Duration:       90 * time.Second,
	})

	out := buf.String()
	if !strings.Contains(out, "queries=4") || !strings.Contains(out, "tokens=512") {
		t.Errorf("expected stats fields, got %q", out)
	}
}

func TestChatUI_SessionEndRich_FullMode_Results(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityFull)

	ui.SessionEndRich("sess-123", &SessionStats{
		QueryCount:     4,
		TotalTokens:    512,
		ResultsTracked: 2,
		Duration:       90 * time.Second,
	})

	out := buf.String()
	if !strings.Contains(out, "Session Summary") {
		t.Errorf("expected summary title, got %q", out)
	}
	if !strings.Contains(out, "customs download <result-id> --format csv") {
		t.Errorf("expected download hint, got %q", out)
	}
}

// =============================================================================
// formatDuration / formatRelativeTime Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5.0s"},
		{90 * time.Second, "1m 30s"},
		{3 * time.Minute, "3m"},
		{2 * time.Hour, "2h 0m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		ts       int64
		expected string
	}{
		{"zero", 0, "unknown"},
		{"just now", now.Add(-30 * time.Second).UnixMilli(), "just now"},
		{"minutes", now.Add(-5 * time.Minute).UnixMilli(), "5 mins ago"},
		{"hours", now.Add(-3 * time.Hour).UnixMilli(), "3h ago"},
		{"days", now.Add(-2 * 24 * time.Hour).UnixMilli(), "2 days ago"},
	}

	for _, tt := range tests {
		if got := formatRelativeTime(tt.ts); got != tt.expected {
			t.Errorf("%s: formatRelativeTime = %q, want %q", tt.name, got, tt.expected)
		}
	}
}
