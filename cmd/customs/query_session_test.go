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
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HighNCode/Customs-Analyzer/pkg/results"
	"github.com/HighNCode/Customs-Analyzer/pkg/transcript"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// =============================================================================
// Stub Upload Manager
// =============================================================================

// stubUploads implements UploadSessionManager with a fixed session id.
type stubUploads struct {
	mu        sync.Mutex
	sessionID string
}

func (s *stubUploads) Upload(ctx context.Context, path string) (*UploadResult, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUploads) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *stubUploads) HasSession() bool { return s.SessionID() != "" }

func (s *stubUploads) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
}

func (s *stubUploads) Close() error { return nil }

func newTestController(client HTTPClient, uploads UploadSessionManager) (QuerySessionController, *ux.BufferStreamRenderer) {
	renderer := &ux.BufferStreamRenderer{}
	controller := NewQuerySessionControllerWithClient(client, QuerySessionControllerConfig{
		BaseURL:  "http://localhost:8000",
		Uploads:  uploads,
		Renderer: renderer,
	})
	return controller, renderer
}

const structuredQueryStream = "data: {\"type\": \"metadata\", \"sql\": \"SELECT 1\", \"rows\": 42, \"result_id\": \"res-1\"}\n" +
	"data: {\"type\": \"token\", \"content\": \"ACME leads \"}\n" +
	"data: {\"type\": \"token\", \"content\": \"imports.\"}\n" +
	"data: {\"type\": \"visualization_ready\", \"result_id\": \"res-1\"}\n" +
	"data: {\"type\": \"done\"}\n"

// =============================================================================
// Submit Tests
// =============================================================================

func TestSubmit_Success(t *testing.T) {
	mock := &mockHTTPClient{response: sseResponse(structuredQueryStream)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, renderer := newTestController(mock, uploads)

	result, err := controller.Submit(context.Background(), "Who leads imports?")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if result.Answer != "ACME leads imports." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.SQL != "SELECT 1" {
		t.Errorf("SQL = %q", result.SQL)
	}
	if result.Rows != 42 {
		t.Errorf("Rows = %d", result.Rows)
	}
	if result.ResultID != "res-1" {
		t.Errorf("ResultID = %q", result.ResultID)
	}
	if result.TotalTokens != 2 {
		t.Errorf("TotalTokens = %d", result.TotalTokens)
	}
	if controller.State() != StateCompleted {
		t.Errorf("State = %q, want completed", controller.State())
	}
	if renderer.Answer.String() != "ACME leads imports." {
		t.Errorf("renderer answer = %q", renderer.Answer.String())
	}
}

func TestSubmit_RequestShape(t *testing.T) {
	mock := &mockHTTPClient{response: sseResponse(structuredQueryStream)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	if _, err := controller.Submit(context.Background(), "top importers"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if mock.lastPostURL != "http://localhost:8000/query" {
		t.Errorf("posted to %q", mock.lastPostURL)
	}
	if mock.lastHeaders["Accept"] != "text/event-stream" {
		t.Errorf("Accept header = %q", mock.lastHeaders["Accept"])
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(mock.lastPostBody), &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if body["question"] != "top importers" {
		t.Errorf("question = %q", body["question"])
	}
	if body["session_id"] != "sess-abc" {
		t.Errorf("session_id = %q", body["session_id"])
	}
}

func TestSubmit_TranscriptAndRegistry(t *testing.T) {
	mock := &mockHTTPClient{response: sseResponse(structuredQueryStream)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	if _, err := controller.Submit(context.Background(), "Who leads imports?"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	msgs := controller.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != transcript.RoleUser || msgs[0].Content != "Who leads imports?" {
		t.Errorf("user message = %+v", msgs[0])
	}
	assistant := msgs[1]
	if assistant.IsStreaming {
		t.Error("assistant message should be finalized")
	}
	if !strings.Contains(assistant.Content, "SELECT 1") {
		t.Error("assistant content should carry the SQL header")
	}
	if !strings.Contains(assistant.Content, "ACME leads imports.") {
		t.Error("assistant content should carry the narration")
	}
	if !assistant.HasVisualization {
		t.Error("assistant message should be marked with the visualization")
	}

	artifact, err := controller.Results().Get("res-1")
	if err != nil {
		t.Fatalf("registry lookup: %v", err)
	}
	if artifact.Status != results.StatusReady {
		t.Errorf("artifact status = %q, want ready", artifact.Status)
	}
	if artifact.Rows != 42 {
		t.Errorf("artifact rows = %d", artifact.Rows)
	}
}

func TestSubmit_NoDatasetSession(t *testing.T) {
	controller, _ := newTestController(&mockHTTPClient{}, &stubUploads{})

	_, err := controller.Submit(context.Background(), "anything")
	if !errors.Is(err, ErrNoDatasetSession) {
		t.Fatalf("expected ErrNoDatasetSession, got %v", err)
	}
	if controller.State() != StateIdle {
		t.Errorf("State = %q, want idle", controller.State())
	}
}

func TestSubmit_BusyWhileStreaming(t *testing.T) {
	pr, pw := io.Pipe()
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: pr}, nil
		},
	}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background(), "first")
		done <- err
	}()

	waitForState(t, controller, StateStreaming)

	if _, err := controller.Submit(context.Background(), "second"); !errors.Is(err, ErrQueryInFlight) {
		t.Errorf("expected ErrQueryInFlight, got %v", err)
	}
	if mock.postCalls != 1 {
		t.Errorf("busy rejection must not hit the network, got %d POSTs", mock.postCalls)
	}

	pw.Write([]byte("data: {\"type\": \"done\"}\n"))
	pw.Close()

	if err := <-done; err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if controller.State() != StateCompleted {
		t.Errorf("State = %q, want completed", controller.State())
	}
}

func TestSubmit_ServerRejection(t *testing.T) {
	mock := &mockHTTPClient{response: jsonResponse(400, `{"detail": "no such session"}`)}
	uploads := &stubUploads{sessionID: "sess-gone"}
	controller, renderer := newTestController(mock, uploads)

	_, err := controller.Submit(context.Background(), "anything")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if controller.State() != StateFailed {
		t.Errorf("State = %q, want failed", controller.State())
	}

	last, ok := controller.Transcript().Last()
	if !ok || !strings.Contains(last.Content, "no such session") {
		t.Errorf("transcript should end with the error, got %+v", last)
	}
	if len(renderer.Calls) == 0 || !strings.HasPrefix(renderer.Calls[len(renderer.Calls)-2], "error:") {
		t.Errorf("renderer calls = %v", renderer.Calls)
	}
}

func TestSubmit_ErrorEvent_PreservesPartialNarration(t *testing.T) {
	frames := "data: {\"type\": \"token\", \"content\": \"partial answer\"}\n" +
		"data: {\"type\": \"error\", \"error\": \"query timed out\"}\n"
	mock := &mockHTTPClient{response: sseResponse(frames)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	result, err := controller.Submit(context.Background(), "slow question")
	if err != nil {
		t.Fatalf("stream-level errors should not be transport errors: %v", err)
	}
	if result.Error != "query timed out" {
		t.Errorf("result.Error = %q", result.Error)
	}
	if result.Answer != "partial answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if controller.State() != StateFailed {
		t.Errorf("State = %q, want failed", controller.State())
	}

	msgs := controller.Transcript().Messages()
	var sawPartial bool
	for _, m := range msgs {
		if strings.Contains(m.Content, "partial answer") {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Error("partial narration should be preserved in the transcript")
	}
}

func TestSubmit_TransportErrorAnnotatesOpenMessage(t *testing.T) {
	pr, pw := io.Pipe()
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			go func() {
				pw.Write([]byte("data: {\"type\": \"token\", \"content\": \"Hello \"}\n"))
				pw.Write([]byte("data: {\"type\": \"token\", \"content\": \"world\"}\n"))
				pw.CloseWithError(errors.New("connection reset"))
			}()
			return &http.Response{StatusCode: http.StatusOK, Body: pr}, nil
		},
	}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	_, err := controller.Submit(context.Background(), "interrupted question")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if controller.State() != StateFailed {
		t.Errorf("State = %q, want failed", controller.State())
	}

	// The failed answer stays one message: narration first, then the
	// error annotation and the troubleshooting guidance below it.
	msgs := controller.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user plus one assistant message, got %d", len(msgs))
	}
	assistant := msgs[1]
	if !strings.Contains(assistant.Content, "Hello world") {
		t.Errorf("narration missing from failed message: %q", assistant.Content)
	}
	if !strings.Contains(assistant.Content, "❌ **Error:**") {
		t.Errorf("error annotation missing: %q", assistant.Content)
	}
	if !strings.Contains(assistant.Content, "connection reset") {
		t.Errorf("error detail missing: %q", assistant.Content)
	}
	if !strings.Contains(assistant.Content, transcript.ErrorGuidance) {
		t.Errorf("troubleshooting guidance missing: %q", assistant.Content)
	}
	if assistant.IsStreaming {
		t.Error("failed message should be finalized")
	}
}

func TestSubmit_ZeroRowResult(t *testing.T) {
	frames := "data: {\"type\": \"metadata\", \"sql\": \"SELECT 1\", \"rows\": 0}\n" +
		"data: {\"type\": \"token\", \"content\": \"Nothing matched.\"}\n" +
		"data: {\"type\": \"done\"}\n"
	mock := &mockHTTPClient{response: sseResponse(frames)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	if _, err := controller.Submit(context.Background(), "anything suspicious?"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	last, _ := controller.Transcript().Last()
	if !strings.Contains(last.Content, "**Rows Retrieved:** 0") {
		t.Errorf("zero-row result should still render its count, got %q", last.Content)
	}
	if !strings.Contains(last.Content, "**Analysis:**") {
		t.Errorf("expected analysis header, got %q", last.Content)
	}
}

func TestSubmit_MalformedFrameSkipped(t *testing.T) {
	frames := "data: {\"type\": \"token\", \"content\": \"Hello \"}\n" +
		"data: {\"type\": \"token\", \"content\n" +
		"data: {\"type\": \"token\", \"content\": \"world\"}\n" +
		"data: {\"type\": \"done\"}\n"
	mock := &mockHTTPClient{response: sseResponse(frames)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	result, err := controller.Submit(context.Background(), "anything")
	if err != nil {
		t.Fatalf("a garbled frame must not fail the query: %v", err)
	}
	if result.Answer != "Hello world" {
		t.Errorf("Answer = %q, want the narration around the bad frame", result.Answer)
	}
	if controller.State() != StateCompleted {
		t.Errorf("State = %q, want completed", controller.State())
	}
}

func TestSubmit_LegacyStream(t *testing.T) {
	frames := "data: SQL: SELECT importer FROM imports\n" +
		"data: Rows: 7\n" +
		"data: a plain narration line\n" +
		"data: [DONE]\n"
	mock := &mockHTTPClient{response: sseResponse(frames)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	result, err := controller.Submit(context.Background(), "legacy backend")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.SQL != "SELECT importer FROM imports" {
		t.Errorf("SQL = %q", result.SQL)
	}
	if result.Rows != 7 {
		t.Errorf("Rows = %d", result.Rows)
	}
	if result.Answer != "a plain narration line" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if controller.State() != StateCompleted {
		t.Errorf("State = %q, want completed", controller.State())
	}
}

// =============================================================================
// ClearSession Tests
// =============================================================================

func TestClearSession_CancelsActiveStream(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			go func() {
				<-ctx.Done()
				pr.CloseWithError(ctx.Err())
			}()
			return &http.Response{StatusCode: http.StatusOK, Body: pr}, nil
		},
	}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background(), "long question")
		done <- err
	}()

	waitForState(t, controller, StateStreaming)
	controller.ClearSession()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Submit should return context.Canceled, got %v", err)
	}
	if controller.State() != StateIdle {
		t.Errorf("State = %q, want idle", controller.State())
	}
	if uploads.HasSession() {
		t.Error("upload session should be cleared")
	}
	if controller.Transcript().Len() != 0 {
		t.Errorf("transcript should be empty, has %d messages", controller.Transcript().Len())
	}
	if len(controller.Results().List()) != 0 {
		t.Error("registry should be empty")
	}
}

func TestClearSession_LateTransportErrorDiscarded(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			go func() {
				<-ctx.Done()
				// The abandoned transport reports a mundane error, not
				// the cancellation itself.
				pr.CloseWithError(errors.New("read on closed connection"))
			}()
			return &http.Response{StatusCode: http.StatusOK, Body: pr}, nil
		},
	}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background(), "long question")
		done <- err
	}()

	waitForState(t, controller, StateStreaming)
	controller.ClearSession()

	if err := <-done; err == nil {
		t.Fatal("cancelled Submit should return an error")
	}
	if controller.State() != StateIdle {
		t.Errorf("State = %q, want idle after clear, not failed", controller.State())
	}
	if controller.Transcript().Len() != 0 {
		t.Errorf("late stream error must not touch the reset transcript, has %d messages",
			controller.Transcript().Len())
	}
}

func TestClearSession_Idempotent(t *testing.T) {
	controller, _ := newTestController(&mockHTTPClient{}, &stubUploads{sessionID: "s"})
	controller.ClearSession()
	controller.ClearSession()
	if controller.State() != StateIdle {
		t.Errorf("State = %q", controller.State())
	}
}

// =============================================================================
// MarkVisualizationReady Tests
// =============================================================================

func TestMarkVisualizationReady_AfterCompleted(t *testing.T) {
	frames := "data: {\"type\": \"metadata\", \"sql\": \"SELECT 1\", \"rows\": 3, \"result_id\": \"res-9\"}\n" +
		"data: {\"type\": \"token\", \"content\": \"answer\"}\n" +
		"data: {\"type\": \"done\"}\n"
	mock := &mockHTTPClient{response: sseResponse(frames)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	if _, err := controller.Submit(context.Background(), "q"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if !controller.MarkVisualizationReady("res-9") {
		t.Fatal("MarkVisualizationReady should succeed for a tracked result")
	}

	last, ok := controller.Transcript().Last()
	if !ok || !last.HasVisualization {
		t.Error("last assistant message should be annotated")
	}
	artifact, err := controller.Results().Get("res-9")
	if err != nil || artifact.Status != results.StatusReady {
		t.Errorf("artifact = %+v, err = %v", artifact, err)
	}
}

func TestMarkVisualizationReady_AfterClearIsNoop(t *testing.T) {
	mock := &mockHTTPClient{response: sseResponse(structuredQueryStream)}
	uploads := &stubUploads{sessionID: "sess-abc"}
	controller, _ := newTestController(mock, uploads)

	if _, err := controller.Submit(context.Background(), "q"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	controller.ClearSession()

	if controller.MarkVisualizationReady("res-1") {
		t.Error("should be a no-op after ClearSession")
	}
}

// waitForState polls the controller state with a deadline.
func waitForState(t *testing.T, c QuerySessionController, want SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("controller never reached state %q (now %q)", want, c.State())
}
