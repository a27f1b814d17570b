// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the customs CLI session control implementations.
//
// This file defines the QuerySessionController interface and its
// implementation for communicating with the backend's streaming query
// endpoint. It follows the layered streaming architecture:
//
//	HTTP Response Body → stream.FrameDecoder → stream.Parser → stream.Reader
//	                                                               ↓
//	                                   transcript / results / ux.StreamRenderer
//
// # File Organization
//
//  1. Interfaces (contracts first)
//  2. Configuration structs
//  3. Implementation structs
//  4. Constructor functions
//  5. Methods on structs
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HighNCode/Customs-Analyzer/pkg/metrics"
	"github.com/HighNCode/Customs-Analyzer/pkg/results"
	"github.com/HighNCode/Customs-Analyzer/pkg/stream"
	"github.com/HighNCode/Customs-Analyzer/pkg/transcript"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// =============================================================================
// INTERFACES
// =============================================================================

// SessionState is the query session lifecycle state.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateSubmitting SessionState = "submitting"
	StateStreaming  SessionState = "streaming"
	StateCompleted  SessionState = "completed"
	StateFailed     SessionState = "failed"
)

// ErrQueryInFlight is returned when Submit is called while a previous
// query is still being submitted or streamed.
var ErrQueryInFlight = errors.New("a query is already in flight")

// ErrNoDatasetSession is returned when Submit is called before any
// dataset has been uploaded.
var ErrNoDatasetSession = errors.New("no dataset session: upload a file first")

// QuerySessionController drives the ask/stream/render cycle for a chat
// session against the analysis backend.
//
// # Description
//
// The controller owns the conversation state: it appends the user's
// question to the transcript, opens an assistant placeholder, streams
// the backend's response through pkg/stream, and routes each event to
// the transcript, the result registry, and the renderer. Exactly one
// query can be in flight at a time.
//
// # State Machine
//
//	Idle → Submitting → Streaming → Completed
//	                        ↓
//	                      Failed
//
// Completed and Failed both accept the next Submit. ClearSession from
// any state cancels an active stream and returns to Idle.
//
// # Thread Safety
//
// All public methods are protected by mutex. A single Submit should not
// be called concurrently; concurrent callers get ErrQueryInFlight.
//
// # Example
//
//	controller := NewQuerySessionController(QuerySessionControllerConfig{
//	    BaseURL: "http://localhost:8000",
//	    Uploads: uploads,
//	})
//	defer controller.Close()
//
//	result, err := controller.Submit(ctx, "Who are the top importers?")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Tokens: %d\n", result.TotalTokens)
type QuerySessionController interface {
	// Submit sends a question and streams the assistant's response.
	//
	// Returns ErrQueryInFlight when a query is active and
	// ErrNoDatasetSession when no dataset has been uploaded. Transport
	// or decode errors mid-stream move the session to Failed; the
	// partial narration is preserved in the transcript.
	Submit(ctx context.Context, question string) (*stream.Result, error)

	// State returns the current lifecycle state.
	State() SessionState

	// MarkVisualizationReady applies a visualization_ready signal that
	// arrives outside an active stream. The matching result artifact is
	// marked ready and the last assistant message gets the chart
	// annotation. After ClearSession this is a no-op.
	MarkVisualizationReady(resultID string) bool

	// Transcript returns the render-ready conversation transcript.
	Transcript() *transcript.Transcript

	// Results returns the result artifact registry.
	Results() *results.Registry

	// ClearSession cancels any in-flight stream, then resets the
	// transcript, the registry, and the upload session.
	ClearSession()

	// Close releases any resources held by the controller.
	Close() error
}

// =============================================================================
// CONFIGURATION STRUCTS
// =============================================================================

// QuerySessionControllerConfig holds configuration for the controller.
//
// BaseURL and Uploads are required; all other fields have defaults.
type QuerySessionControllerConfig struct {
	BaseURL  string               // Base URL of the analysis backend (required)
	Uploads  UploadSessionManager // Active dataset session source (required)
	Renderer ux.StreamRenderer    // Output rendering (optional, defaults to terminal)
	Timeout  time.Duration        // HTTP timeout (optional, 0 means none)
}

// =============================================================================
// IMPLEMENTATION STRUCTS
// =============================================================================

type querySessionController struct {
	client     HTTPClient
	reader     stream.Reader
	uploads    UploadSessionManager
	transcript *transcript.Transcript
	registry   *results.Registry
	renderer   ux.StreamRenderer
	baseURL    string

	state        SessionState
	cancelStream context.CancelFunc
	mu           sync.Mutex
}

var _ QuerySessionController = (*querySessionController)(nil)

// =============================================================================
// CONSTRUCTOR FUNCTIONS
// =============================================================================

// NewQuerySessionController creates a controller with the production
// HTTP client. The client carries no timeout: streams are bounded by
// the caller's context, not a fixed deadline.
func NewQuerySessionController(config QuerySessionControllerConfig) QuerySessionController {
	return NewQuerySessionControllerWithClient(newHTTPClient(config.Timeout), config)
}

// NewQuerySessionControllerWithClient creates a controller with an
// injected HTTP client. Use this constructor for testing with mocks.
func NewQuerySessionControllerWithClient(client HTTPClient, config QuerySessionControllerConfig) QuerySessionController {
	renderer := config.Renderer
	if renderer == nil {
		renderer = ux.NewStreamRenderer(ux.GetPersonality())
	}

	return &querySessionController{
		client:     client,
		reader:     stream.NewReader(stream.NewParser()),
		uploads:    config.Uploads,
		transcript: transcript.New(),
		registry:   results.NewRegistry(config.BaseURL),
		renderer:   renderer,
		baseURL:    config.BaseURL,
		state:      StateIdle,
	}
}

// =============================================================================
// QUERY SESSION CONTROLLER METHODS
// =============================================================================

func (c *querySessionController) Submit(ctx context.Context, question string) (*stream.Result, error) {
	requestID := uuid.New().String()

	streamCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.endStream()

	sessionID := c.uploads.SessionID()

	slog.Debug("submitting query",
		"request_id", requestID,
		"session_id", sessionID,
		"question_length", len(question),
	)

	c.transcript.AppendUser(question)
	c.transcript.OpenAssistant()
	c.renderer.QueryStart(question)
	defer c.renderer.Finalize()

	resp, err := c.postQuery(streamCtx, requestID, question, sessionID)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		apiErr := responseError("/query", resp)
		slog.Error("query rejected by server",
			"request_id", requestID,
			"status_code", apiErr.StatusCode,
			"detail", apiErr.Detail,
		)
		c.fail(apiErr)
		return nil, apiErr
	}

	c.setState(StateStreaming)

	result, err := c.processStream(streamCtx, requestID, resp.Body)
	if err != nil {
		if streamCtx.Err() != nil && c.State() == StateIdle {
			// ClearSession cancelled the stream and already reset the
			// transcript. Whatever the abandoned transport reports after
			// that (canceled context, closed pipe) is discarded, not a
			// failure.
			return nil, streamCtx.Err()
		}
		c.fail(err)
		return nil, err
	}
	if result.Error != "" {
		c.fail(errors.New(result.Error))
		return result, nil
	}

	c.transcript.Finalize()
	c.renderer.Done()
	c.setState(StateCompleted)
	metrics.Queries.WithLabelValues(metrics.OutcomeCompleted).Inc()

	slog.Debug("query completed",
		"request_id", requestID,
		"total_tokens", result.TotalTokens,
		"rows", result.Rows,
	)

	return result, nil
}

// begin transitions Idle/Completed/Failed → Submitting and installs the
// cancellable stream context.
func (c *querySessionController) begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitting || c.state == StateStreaming {
		return nil, ErrQueryInFlight
	}
	if !c.uploads.HasSession() {
		return nil, ErrNoDatasetSession
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.state = StateSubmitting
	c.cancelStream = cancel
	return streamCtx, nil
}

// endStream releases the stream cancel func without touching the
// terminal state set by the submit path.
func (c *querySessionController) endStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelStream != nil {
		c.cancelStream()
		c.cancelStream = nil
	}
}

func (c *querySessionController) postQuery(ctx context.Context, requestID, question, sessionID string) (*http.Response, error) {
	reqBody := map[string]string{
		"question":   question,
		"session_id": sessionID,
	}
	postBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	targetURL := fmt.Sprintf("%s/query", c.baseURL)
	resp, err := c.client.PostWithHeaders(ctx, targetURL, "application/json", bytes.NewBuffer(postBody), map[string]string{
		"Accept": "text/event-stream",
	})
	if err != nil {
		slog.Error("query HTTP request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return nil, fmt.Errorf("http post: %w", err)
	}
	return resp, nil
}

// processStream reads the event stream and routes each event to the
// transcript, the registry, and the renderer.
func (c *querySessionController) processStream(ctx context.Context, requestID string, body io.Reader) (*stream.Result, error) {
	result := &stream.Result{Id: requestID, CreatedAt: time.Now().UnixMilli()}
	var answer bytes.Buffer

	err := c.reader.Read(ctx, body, func(event stream.Event) error {
		result.TotalEvents++
		switch event.Type {
		case stream.EventMetadata:
			// Legacy backends split SQL and row count across frames, so
			// only non-empty fields overwrite.
			if event.SQL != "" {
				result.SQL = event.SQL
			}
			if event.HasRows {
				result.Rows = event.Rows
			}
			if event.ResultID != "" {
				result.ResultID = event.ResultID
				c.registry.Announce(event.ResultID, results.Metadata{
					SQL:              event.SQL,
					Rows:             event.Rows,
					Columns:          event.Columns,
					Preview:          event.DataPreview,
					WantsData:        event.WantsData,
					HasVisualization: event.HasVisualization,
				})
			}
			if err := c.transcript.ApplyMetadata(event.SQL, event.Rows, event.HasRows, event.ResultID); err != nil {
				return err
			}
			c.renderer.Metadata(event.SQL, event.Rows, event.ResultID)
		case stream.EventToken:
			result.TotalTokens++
			if result.FirstTokenAt == 0 {
				result.FirstTokenAt = event.CreatedAt
			}
			answer.WriteString(event.Content)
			if err := c.transcript.AppendToken(event.Content); err != nil {
				return err
			}
			c.renderer.Token(event.Content)
		case stream.EventVisualizationReady:
			c.applyVisualizationReady(event.ResultID)
			c.renderer.VisualizationReady(event.ResultID)
		case stream.EventDone:
			// Terminal; the reader stops after this event.
		case stream.EventError:
			result.Error = event.Error
		case stream.EventData:
			// Legacy payload, recorded but never rendered.
		}
		return nil
	})
	if err != nil {
		// Transport errors arrive already wrapped by the reader.
		slog.Error("stream reading failed",
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}

	result.Answer = answer.String()
	result.CompletedAt = time.Now().UnixMilli()
	return result, nil
}

// fail moves the session to Failed. The transcript keeps any partial
// narration with the error and troubleshooting guidance written below
// it.
func (c *querySessionController) fail(err error) {
	c.transcript.Fail(transcript.FailureMessage(err))
	c.renderer.StreamError(err.Error())
	c.setState(StateFailed)
	metrics.Queries.WithLabelValues(metrics.OutcomeFailed).Inc()
}

func (c *querySessionController) setState(s SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *querySessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *querySessionController) MarkVisualizationReady(resultID string) bool {
	return c.applyVisualizationReady(resultID)
}

// applyVisualizationReady marks the artifact ready and annotates the
// transcript. Unknown result ids after a session reset drop silently.
func (c *querySessionController) applyVisualizationReady(resultID string) bool {
	marked := c.transcript.MarkVisualization(resultID)
	if err := c.registry.MarkReady(resultID); err != nil {
		if !errors.Is(err, results.ErrUnknownResult) {
			slog.Warn("could not mark result ready", "result_id", resultID, "error", err)
		}
		return marked
	}
	return true
}

func (c *querySessionController) Transcript() *transcript.Transcript {
	return c.transcript
}

func (c *querySessionController) Results() *results.Registry {
	return c.registry
}

func (c *querySessionController) ClearSession() {
	c.mu.Lock()
	if c.cancelStream != nil {
		// Cancel the active stream before dropping session state so the
		// in-flight reader never writes into a reset transcript.
		c.cancelStream()
		c.cancelStream = nil
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.uploads.ClearSession()
	c.transcript.Reset()
	c.registry.Reset()
}

func (c *querySessionController) Close() error {
	c.endStream()
	return nil
}
