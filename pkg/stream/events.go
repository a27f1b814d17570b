// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream decodes and parses the query session wire protocol.
//
// The backend streams query results as Server-Sent Events. Each frame is a
// "data: " line whose payload is either a structured JSON event (the current
// protocol generation) or a legacy prefixed line such as "SQL: ..." or the
// bare "[DONE]" sentinel (the first generation). Both generations are parsed
// into the same Event type so downstream consumers never branch on wire
// format.
package stream

import "fmt"

// EventType identifies the kind of stream event.
type EventType string

const (
	// EventMetadata announces the generated SQL, row count, and result
	// artifact details before narration begins.
	EventMetadata EventType = "metadata"

	// EventToken carries an incremental chunk of narration text.
	EventToken EventType = "token"

	// EventVisualizationReady signals that a chart for a result artifact
	// can now be fetched.
	EventVisualizationReady EventType = "visualization_ready"

	// EventDone marks the end of the stream.
	EventDone EventType = "done"

	// EventData carries a legacy "Data: " payload. It is recorded but
	// never rendered.
	EventData EventType = "data"

	// EventError carries a stream-level error from the backend.
	EventError EventType = "error"
)

// Event is a single parsed stream event.
//
// # Description
//
// Events are produced by Parser from decoded frames and dispatched by
// Reader. Every event gets a generated Id and a CreatedAt timestamp at
// parse time, and a monotonically increasing Index assigned by the reader.
//
// # Fields
//
//   - Id: Unique event ID (UUID)
//   - Type: Event type discriminator
//   - Content: Narration text (token events)
//   - SQL: Generated SQL query (metadata events)
//   - Rows: Number of rows the query matched (metadata events)
//   - HasRows: True when the frame carried a row count, even zero
//   - ResultID: Result artifact identifier (metadata, visualization_ready)
//   - Columns: Result column names (metadata events)
//   - DataPreview: First rows of the result set (metadata events)
//   - WantsData: Backend suggests fetching the full result set
//   - HasVisualization: Backend can chart this result
//   - Error: Error message (error events)
//   - Legacy: True when parsed from the prefix protocol
//   - Index: Position in the stream, assigned by the reader
//   - CreatedAt: Unix milliseconds when the event was parsed
type Event struct {
	Id               string           `json:"id"`
	Type             EventType        `json:"type"`
	Content          string           `json:"content,omitempty"`
	SQL              string           `json:"sql,omitempty"`
	Rows             int              `json:"rows,omitempty"`
	HasRows          bool             `json:"has_rows,omitempty"`
	ResultID         string           `json:"result_id,omitempty"`
	Columns          []string         `json:"columns,omitempty"`
	DataPreview      []map[string]any `json:"data_preview,omitempty"`
	WantsData        bool             `json:"wants_data,omitempty"`
	HasVisualization bool             `json:"has_visualization,omitempty"`
	Error            string           `json:"error,omitempty"`
	Legacy           bool             `json:"legacy,omitempty"`
	Index            int              `json:"index"`
	CreatedAt        int64            `json:"created_at"`
}

// IsTerminal returns true if this event ends the stream.
func (e *Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// UnknownEventTypeError reports a structured frame whose type discriminator
// is not part of either protocol generation.
//
// Unknown types are surfaced to the caller but are not fatal: the reader
// skips them and keeps consuming the stream.
type UnknownEventTypeError struct {
	// TypeName is the unrecognized discriminator value.
	TypeName string
}

// Error returns a formatted error message.
func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown stream event type %q", e.TypeName)
}
