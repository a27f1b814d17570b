// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the stream reader that consumes io.Reader sources
// and emits parsed events via callbacks.
//
// Single Responsibility:
//
//	The reader handles I/O and event sequencing. It uses a FrameDecoder
//	to reassemble frames and a Parser to convert them to events, but does
//	not render output or hold session state.
//
// Context Support:
//
//	Read accepts context.Context for cancellation and timeout. When the
//	context is cancelled, reading stops and the error is returned.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HighNCode/Customs-Analyzer/pkg/metrics"
)

// Callback is invoked for each parsed event. Returning an error stops
// the read.
type Callback func(Event) error

// =============================================================================
// Stream Reader Interface
// =============================================================================

// Reader reads a query result stream and invokes callbacks.
//
// Thread Safety:
//
//	Reader implementations must be safe for concurrent use. However, a
//	single Read/ReadAll operation should not be called concurrently on
//	the same reader instance.
//
// Example:
//
//	reader := NewReader(NewParser())
//
//	err := reader.Read(ctx, httpResp.Body, func(event stream.Event) error {
//	    if event.Type == stream.EventToken {
//	        fmt.Print(event.Content)
//	    }
//	    return nil
//	})
type Reader interface {
	// Read processes a stream, invoking callback for each event.
	//
	// Parameters:
	//   - ctx: Context for cancellation. When cancelled, stops reading.
	//   - r: The source to read from. Caller is responsible for closing.
	//   - callback: Invoked for each parsed event. Return error to stop.
	//
	// Returns:
	//   - error: nil on successful completion, otherwise the error that
	//     stopped reading (context cancellation, transport error, decode
	//     error, or callback error)
	//
	// The stream is considered complete when:
	//   - EOF is reached
	//   - A terminal event (done/error) is received
	//   - Context is cancelled
	//   - Callback returns an error
	//
	// Malformed payloads and frames with an unknown event type are
	// counted and skipped, never fatal.
	Read(ctx context.Context, r io.Reader, callback Callback) error

	// ReadAll reads the entire stream and returns an aggregated result.
	//
	// This is a convenience method that collects all events into a
	// Result. Use Read() when you need real-time event processing.
	//
	// Note: If the stream ends with an error event, the message is
	// captured in Result.Error and this method returns nil (not an
	// error).
	ReadAll(ctx context.Context, r io.Reader) (*Result, error)
}

// Result aggregates a fully consumed stream.
type Result struct {
	// Id uniquely identifies this read.
	Id string `json:"id"`

	// Answer is the concatenated narration text.
	Answer string `json:"answer"`

	// SQL is the generated query from the last metadata event.
	SQL string `json:"sql,omitempty"`

	// Rows is the row count from the last metadata event.
	Rows int `json:"rows,omitempty"`

	// ResultID identifies the result artifact, when announced.
	ResultID string `json:"result_id,omitempty"`

	// Error holds a stream-level error message, if one was received.
	Error string `json:"error,omitempty"`

	// TotalEvents counts every dispatched event.
	TotalEvents int `json:"total_events"`

	// TotalTokens counts token events.
	TotalTokens int `json:"total_tokens"`

	// SkippedFrames counts frames dropped as malformed or carrying an
	// unknown event type.
	SkippedFrames int `json:"skipped_frames,omitempty"`

	// CreatedAt/FirstTokenAt/CompletedAt are Unix milliseconds.
	CreatedAt    int64 `json:"created_at"`
	FirstTokenAt int64 `json:"first_token_at,omitempty"`
	CompletedAt  int64 `json:"completed_at"`
}

// =============================================================================
// Stream Reader Implementation
// =============================================================================

// readChunkSize is the transport read buffer size.
const readChunkSize = 4096

// streamReader implements Reader over a FrameDecoder and Parser.
type streamReader struct {
	parser Parser
}

// NewReader creates a stream reader backed by the given parser.
func NewReader(parser Parser) Reader {
	return &streamReader{
		parser: parser,
	}
}

// Read processes a stream, invoking callback for each event.
//
// Bytes are pulled in fixed-size chunks and fed through a fresh
// FrameDecoder, so frames split across reads are reassembled and a
// trailing partial frame at EOF is dropped rather than dispatched.
func (r *streamReader) Read(ctx context.Context, reader io.Reader, callback Callback) error {
	_, err := r.read(ctx, reader, callback)
	return err
}

// read drives the decode/parse/dispatch loop and reports how many frames
// were skipped as unparseable.
func (r *streamReader) read(ctx context.Context, reader io.Reader, callback Callback) (int, error) {
	decoder := NewFrameDecoder()
	buf := make([]byte, readChunkSize)
	eventIndex := 0
	skipped := 0

	for {
		// Check for context cancellation between reads
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		default:
		}

		n, readErr := reader.Read(buf)
		if n > 0 {
			done, err := r.dispatch(ctx, decoder.Feed(buf[:n]), &eventIndex, &skipped, callback)
			if err != nil {
				return skipped, err
			}
			if done {
				return skipped, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// A frame without its terminator was cut off mid-write
				if dropped := decoder.Flush(); dropped > 0 {
					metrics.FramesDiscarded.Add(float64(dropped))
				}
				return skipped, nil
			}
			return skipped, fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// dispatch parses and delivers a batch of frames. Returns done=true when
// a terminal event was dispatched.
func (r *streamReader) dispatch(ctx context.Context, frames []string, eventIndex, skipped *int, callback Callback) (bool, error) {
	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		event, err := r.parser.ParseLine(frame)
		if err != nil {
			// Bad payloads and unknown event types are counted and
			// skipped. A single garbled frame must not kill the session.
			metrics.FramesMalformed.Inc()
			*skipped++
			continue
		}

		// Skip nil events (empty lines, comments)
		if event == nil {
			continue
		}

		metrics.FramesDecoded.Inc()
		if event.Legacy {
			metrics.FramesLegacy.Inc()
		}

		event.Index = *eventIndex
		*eventIndex++

		if err := callback(*event); err != nil {
			return false, err
		}

		if event.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

// ReadAll reads the entire stream and returns an aggregated result.
func (r *streamReader) ReadAll(ctx context.Context, reader io.Reader) (*Result, error) {
	result := &Result{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
	}

	var answerBuilder strings.Builder

	skipped, err := r.read(ctx, reader, func(event Event) error {
		result.TotalEvents++

		switch event.Type {
		case EventToken:
			if result.FirstTokenAt == 0 {
				result.FirstTokenAt = time.Now().UnixMilli()
			}
			answerBuilder.WriteString(event.Content)
			result.TotalTokens++

		case EventMetadata:
			// Last write wins on duplicate metadata
			if event.SQL != "" {
				result.SQL = event.SQL
			}
			if event.HasRows {
				result.Rows = event.Rows
			}
			if event.ResultID != "" {
				result.ResultID = event.ResultID
			}

		case EventDone:
			result.CompletedAt = time.Now().UnixMilli()

		case EventError:
			result.Error = event.Error
			result.CompletedAt = time.Now().UnixMilli()
		}

		return nil
	})

	result.Answer = answerBuilder.String()
	result.SkippedFrames = skipped

	// Ensure CompletedAt is set even if no terminal event
	if result.CompletedAt == 0 {
		result.CompletedAt = time.Now().UnixMilli()
	}

	return result, err
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ Reader = (*streamReader)(nil)
