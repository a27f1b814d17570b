// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Event Parser Interface
// =============================================================================

// Parser converts decoded frames into Event structs.
//
// Two protocol generations share this parser. The current generation sends
// structured JSON payloads:
//
//	data: {"type":"metadata","sql":"SELECT ...","rows":42,"result_id":"r1"}
//	data: {"type":"token","content":"The top importer"}
//	data: {"type":"visualization_ready","result_id":"r1"}
//	data: {"type":"done"}
//
// The legacy generation sends prefixed plain text:
//
//	data: SQL: SELECT ...
//	data: Rows: 42
//	data: Data: [{"importer":"..."}]
//	data: free narration text
//	data: [DONE]
//
// A payload that is not a JSON object falls through to the legacy rules, so
// mixed streams parse correctly without any negotiation.
//
// Thread Safety:
//
//	Parser implementations must be safe for concurrent use.
//	The default implementation is stateless and inherently thread-safe.
type Parser interface {
	// ParseLine parses a single decoded frame.
	//
	// Returns:
	//   - *Event: The parsed event, or nil for empty/comment lines
	//   - error: Non-nil for malformed payloads or unknown event types
	//
	// Line handling:
	//   - Empty lines: Returns nil, nil (frame delimiter)
	//   - Comment lines (":"): Returns nil, nil (ignored)
	//   - Data lines ("data: "): Parses the payload
	//   - Other lines (event:, id:, keep-alives): Returns nil, nil (ignored)
	ParseLine(line string) (*Event, error)

	// ParseRawJSON parses a structured JSON payload into an Event.
	//
	// Use this when you have JSON without the "data: " prefix.
	// Automatically generates Id and sets CreatedAt.
	ParseRawJSON(jsonData []byte) (*Event, error)
}

// MalformedFrameError reports a data frame whose payload could not be
// parsed under either protocol generation.
type MalformedFrameError struct {
	// Frame is the offending payload, truncated for logging.
	Frame string

	// Err is the underlying parse error.
	Err error
}

// Error returns a formatted error message.
func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Frame, e.Err)
}

// Unwrap returns the underlying error.
func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Event Parser Implementation
// =============================================================================

// Legacy payload prefixes.
const (
	legacySQLPrefix  = "SQL: "
	legacyRowsPrefix = "Rows: "
	legacyDataPrefix = "Data: "
	legacyDone       = "[DONE]"
)

// maxFrameInError caps how much of a bad payload ends up in error text.
// Low enough that the quoted frame plus the json error stays well under
// a single log line.
const maxFrameInError = 80

// eventParser implements Parser for both protocol generations.
//
// This implementation is stateless and safe for concurrent use.
// All parsed events are assigned fresh Id and CreatedAt values.
type eventParser struct{}

// NewParser creates a new event parser.
//
// The returned parser is stateless and can be safely shared across
// goroutines.
func NewParser() Parser {
	return &eventParser{}
}

// ParseLine parses a single decoded frame.
func (p *eventParser) ParseLine(line string) (*Event, error) {
	line = strings.TrimSpace(line)

	// Empty lines are frame delimiters
	if line == "" {
		return nil, nil
	}

	// Comments start with ":"
	if strings.HasPrefix(line, ":") {
		return nil, nil
	}

	// Data lines start with "data: "
	if strings.HasPrefix(line, "data: ") {
		return p.parsePayload(strings.TrimPrefix(line, "data: "))
	}

	// Also handle "data:" without space (some servers do this)
	if strings.HasPrefix(line, "data:") {
		return p.parsePayload(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	}

	// Anything else (event:, id:, keep-alives) is protocol framing the
	// backend does not use for content. Ignore it.
	return nil, nil
}

// ParseRawJSON parses a structured JSON payload into an Event.
//
// The JSON must carry a "type" field naming one of the known event types.
// Missing fields are handled gracefully with zero values.
func (p *eventParser) ParseRawJSON(jsonData []byte) (*Event, error) {
	// Parse into a temporary struct that matches the server format
	var raw struct {
		Type             string           `json:"type"`
		Content          string           `json:"content"`
		SQL              string           `json:"sql"`
		Rows             *int             `json:"rows"`
		ResultID         string           `json:"result_id"`
		Columns          []string         `json:"columns"`
		DataPreview      []map[string]any `json:"data_preview"`
		WantsData        bool             `json:"wants_data"`
		HasVisualization bool             `json:"has_visualization"`
		Error            string           `json:"error"`
	}

	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, &MalformedFrameError{Frame: truncate(string(jsonData)), Err: err}
	}

	switch EventType(raw.Type) {
	case EventMetadata, EventToken, EventVisualizationReady, EventDone, EventError:
	default:
		return nil, &UnknownEventTypeError{TypeName: raw.Type}
	}

	event := newEvent(EventType(raw.Type), raw.Content, false)
	event.SQL = raw.SQL
	// A pointer distinguishes a zero-row result from an absent field.
	if raw.Rows != nil {
		event.Rows = *raw.Rows
		event.HasRows = true
	}
	event.ResultID = raw.ResultID
	event.Columns = raw.Columns
	event.DataPreview = raw.DataPreview
	event.WantsData = raw.WantsData
	event.HasVisualization = raw.HasVisualization
	event.Error = raw.Error

	return event, nil
}

// parsePayload dispatches a data frame payload to the structured or
// legacy rules.
func (p *eventParser) parsePayload(payload string) (*Event, error) {
	if payload == "" {
		return nil, nil
	}

	if payload == legacyDone {
		return newEvent(EventDone, "", true), nil
	}

	// The current generation always sends a JSON object
	if strings.HasPrefix(payload, "{") {
		return p.ParseRawJSON([]byte(payload))
	}

	return p.parseLegacy(payload)
}

// parseLegacy parses a first-generation prefixed payload.
func (p *eventParser) parseLegacy(payload string) (*Event, error) {
	switch {
	case strings.HasPrefix(payload, legacySQLPrefix):
		event := newEvent(EventMetadata, "", true)
		event.SQL = strings.TrimPrefix(payload, legacySQLPrefix)
		return event, nil

	case strings.HasPrefix(payload, legacyRowsPrefix):
		rows, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(payload, legacyRowsPrefix)))
		if err != nil {
			return nil, &MalformedFrameError{Frame: truncate(payload), Err: err}
		}
		event := newEvent(EventMetadata, "", true)
		event.Rows = rows
		event.HasRows = true
		return event, nil

	case strings.HasPrefix(payload, legacyDataPrefix):
		event := newEvent(EventData, strings.TrimPrefix(payload, legacyDataPrefix), true)
		return event, nil

	default:
		// Free narration text
		return newEvent(EventToken, payload, true), nil
	}
}

// newEvent builds an event with a generated Id and timestamp.
func newEvent(t EventType, content string, legacy bool) *Event {
	return &Event{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      t,
		Content:   content,
		Legacy:    legacy,
	}
}

func truncate(s string) string {
	if len(s) > maxFrameInError {
		return s[:maxFrameInError] + "..."
	}
	return s
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ Parser = (*eventParser)(nil)
