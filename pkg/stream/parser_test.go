// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"errors"
	"testing"
)

// =============================================================================
// ParseLine Tests - Line Handling
// =============================================================================

func TestParseLine_EmptyLine(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event != nil {
		t.Errorf("expected nil event for empty line, got %+v", event)
	}
}

func TestParseLine_CommentLine(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(": keep-alive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event != nil {
		t.Errorf("expected nil event for comment, got %+v", event)
	}
}

func TestParseLine_DataPrefixNoSpace(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data:{"type":"done"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil || event.Type != EventDone {
		t.Errorf("expected done event, got %+v", event)
	}
}

func TestParseLine_NonDataLinesIgnored(t *testing.T) {
	p := NewParser()

	// Framing lines the backend never uses for content must not leak
	// into the narration.
	for _, line := range []string{
		"event: keepalive",
		"id: 42",
		"retry: 3000",
		"some narration without prefix",
	} {
		event, err := p.ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): unexpected error: %v", line, err)
		}
		if event != nil {
			t.Errorf("ParseLine(%q): expected nil event, got %+v", line, event)
		}
	}
}

// =============================================================================
// ParseLine Tests - Structured Generation
// =============================================================================

func TestParseLine_StructuredMetadata(t *testing.T) {
	p := NewParser()

	line := `data: {"type":"metadata","sql":"SELECT * FROM imports","rows":42,"result_id":"res-1","columns":["importer","total"],"wants_data":true,"has_visualization":true}`
	event, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventMetadata {
		t.Errorf("expected metadata type, got %q", event.Type)
	}
	if event.SQL != "SELECT * FROM imports" {
		t.Errorf("unexpected SQL %q", event.SQL)
	}
	if event.Rows != 42 || !event.HasRows {
		t.Errorf("expected 42 rows with count present, got %d (%v)", event.Rows, event.HasRows)
	}
	if event.ResultID != "res-1" {
		t.Errorf("unexpected result id %q", event.ResultID)
	}
	if len(event.Columns) != 2 {
		t.Errorf("expected 2 columns, got %v", event.Columns)
	}
	if !event.WantsData || !event.HasVisualization {
		t.Error("expected wants_data and has_visualization set")
	}
	if event.Legacy {
		t.Error("structured event must not be marked legacy")
	}
}

func TestParseLine_StructuredMetadata_ZeroRows(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"metadata","sql":"SELECT 1","rows":0}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !event.HasRows {
		t.Error("expected an explicit zero count to be marked present")
	}
	if event.Rows != 0 {
		t.Errorf("expected 0 rows, got %d", event.Rows)
	}
}

func TestParseLine_StructuredMetadata_NoRowsField(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"metadata","sql":"SELECT 1"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.HasRows {
		t.Error("expected absent rows field to leave the count unset")
	}
}

func TestParseLine_StructuredToken(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"token","content":"The top importer is "}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventToken {
		t.Errorf("expected token type, got %q", event.Type)
	}
	if event.Content != "The top importer is " {
		t.Errorf("unexpected content %q", event.Content)
	}
}

func TestParseLine_StructuredVisualizationReady(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"visualization_ready","result_id":"res-1"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventVisualizationReady {
		t.Errorf("expected visualization_ready, got %q", event.Type)
	}
	if event.ResultID != "res-1" {
		t.Errorf("unexpected result id %q", event.ResultID)
	}
}

func TestParseLine_StructuredDone(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"done"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !event.IsTerminal() {
		t.Error("expected done to be terminal")
	}
}

func TestParseLine_StructuredError(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"error","error":"query timed out"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventError {
		t.Errorf("expected error type, got %q", event.Type)
	}
	if event.Error != "query timed out" {
		t.Errorf("unexpected error text %q", event.Error)
	}
	if !event.IsTerminal() {
		t.Error("expected error event to be terminal")
	}
}

func TestParseLine_UnknownEventType(t *testing.T) {
	p := NewParser()

	_, err := p.ParseLine(`data: {"type":"heartbeat"}`)
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}

	var unknownErr *UnknownEventTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownEventTypeError, got %T", err)
	}
	if unknownErr.TypeName != "heartbeat" {
		t.Errorf("expected type name 'heartbeat', got %q", unknownErr.TypeName)
	}
}

func TestParseLine_MalformedJSON(t *testing.T) {
	p := NewParser()

	_, err := p.ParseLine(`data: {"type":"token","content":`)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}

	var malformedErr *MalformedFrameError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected MalformedFrameError, got %T", err)
	}
}

// =============================================================================
// ParseLine Tests - Legacy Generation
// =============================================================================

func TestParseLine_LegacySQL(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine("data: SQL: SELECT importer FROM imports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventMetadata {
		t.Errorf("expected metadata type, got %q", event.Type)
	}
	if event.SQL != "SELECT importer FROM imports" {
		t.Errorf("unexpected SQL %q", event.SQL)
	}
	if !event.Legacy {
		t.Error("expected legacy flag")
	}
}

func TestParseLine_LegacyRows(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine("data: Rows: 128")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventMetadata {
		t.Errorf("expected metadata type, got %q", event.Type)
	}
	if event.Rows != 128 || !event.HasRows {
		t.Errorf("expected 128 rows with count present, got %d (%v)", event.Rows, event.HasRows)
	}
}

func TestParseLine_LegacyRows_NotANumber(t *testing.T) {
	p := NewParser()

	_, err := p.ParseLine("data: Rows: lots")
	if err == nil {
		t.Fatal("expected error for non-numeric row count")
	}

	var malformedErr *MalformedFrameError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected MalformedFrameError, got %T", err)
	}
}

func TestParseLine_LegacyData(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: Data: [{"importer":"ACME"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventData {
		t.Errorf("expected data type, got %q", event.Type)
	}
	if event.Content != `[{"importer":"ACME"}]` {
		t.Errorf("unexpected content %q", event.Content)
	}
}

func TestParseLine_LegacyDone(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine("data: [DONE]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventDone {
		t.Errorf("expected done type, got %q", event.Type)
	}
	if !event.Legacy {
		t.Error("expected legacy flag on [DONE]")
	}
}

func TestParseLine_LegacyNarration(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine("data: The top importer is ACME Corp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventToken {
		t.Errorf("expected token type, got %q", event.Type)
	}
	if event.Content != "The top importer is ACME Corp" {
		t.Errorf("unexpected content %q", event.Content)
	}
}

// =============================================================================
// Event Identity Tests
// =============================================================================

func TestParseLine_AssignsIdAndTimestamp(t *testing.T) {
	p := NewParser()

	event, err := p.ParseLine(`data: {"type":"done"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Id == "" {
		t.Error("expected generated event id")
	}
	if event.CreatedAt == 0 {
		t.Error("expected CreatedAt timestamp")
	}
}

func TestParseLine_UniqueIds(t *testing.T) {
	p := NewParser()

	a, _ := p.ParseLine(`data: {"type":"done"}`)
	b, _ := p.ParseLine(`data: {"type":"done"}`)
	if a.Id == b.Id {
		t.Error("expected unique ids per event")
	}
}

// =============================================================================
// ParseRawJSON Tests
// =============================================================================

func TestParseRawJSON_Direct(t *testing.T) {
	p := NewParser()

	event, err := p.ParseRawJSON([]byte(`{"type":"metadata","sql":"SELECT 1","rows":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventMetadata || event.SQL != "SELECT 1" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestParseRawJSON_TruncatesLongFrameInError(t *testing.T) {
	p := NewParser()

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	_, err := p.ParseRawJSON(long)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 200 {
		t.Errorf("expected truncated frame in error, got %d chars", len(err.Error()))
	}
}
