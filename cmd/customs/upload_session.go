// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the upload session manager that pushes a local
// dataset file to the analysis backend and tracks the resulting session.
//
//	CLI → UploadSessionManager → HTTPClient → POST /upload
//	            ↓
//	     dataset.ValidateFile (client-side preflight)
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
	"github.com/HighNCode/Customs-Analyzer/pkg/metrics"
)

// =============================================================================
// INTERFACES
// =============================================================================

// UploadSessionManager uploads dataset files and tracks the active
// backend session.
//
// # Description
//
// The backend keys all query processing off a session id minted at
// upload time. This manager owns that id: Upload stores it, SessionID
// reads it, and ClearSession drops it so the next question fails fast
// with a precondition error instead of a confusing backend 404.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type UploadSessionManager interface {
	// Upload validates and pushes a local file to POST /upload.
	//
	// CSV headers are validated against the required customs schema
	// before any bytes leave the machine. Excel files are sent as-is
	// and validated server-side. On success the returned session id
	// becomes the active session.
	Upload(ctx context.Context, path string) (*UploadResult, error)

	// SessionID returns the active session id, or empty when no
	// dataset has been uploaded.
	SessionID() string

	// HasSession reports whether a dataset session is active.
	HasSession() bool

	// ClearSession drops the active session id.
	ClearSession()

	// Close releases any resources held by the manager.
	Close() error
}

// UploadResult is the decoded backend response for a dataset upload.
type UploadResult struct {
	SessionID string          `json:"session_id"`
	Summary   dataset.Summary `json:"summary"`

	// Filename is the base name of the uploaded file, recorded client
	// side for the chat header.
	Filename string `json:"-"`
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// UploadSessionManagerConfig holds configuration for the upload manager.
// Only BaseURL is required.
type UploadSessionManagerConfig struct {
	BaseURL string // Base URL of the analysis backend (required)
}

// =============================================================================
// IMPLEMENTATION
// =============================================================================

type uploadSessionManager struct {
	client    HTTPClient
	baseURL   string
	sessionID string
	filename  string
	mu        sync.Mutex
}

var _ UploadSessionManager = (*uploadSessionManager)(nil)

// NewUploadSessionManager creates an upload manager with the production
// HTTP client. Uploads are bounded by the configured backend timeout.
func NewUploadSessionManager(config UploadSessionManagerConfig) UploadSessionManager {
	return NewUploadSessionManagerWithClient(newHTTPClient(backendTimeout()), config)
}

// NewUploadSessionManagerWithClient creates an upload manager with an
// injected HTTP client. Use this constructor for testing with mocks.
func NewUploadSessionManagerWithClient(client HTTPClient, config UploadSessionManagerConfig) UploadSessionManager {
	return &uploadSessionManager{
		client:  client,
		baseURL: config.BaseURL,
	}
}

// =============================================================================
// METHODS
// =============================================================================

func (m *uploadSessionManager) Upload(ctx context.Context, path string) (*UploadResult, error) {
	requestID := uuid.New().String()

	slog.Debug("uploading dataset",
		"request_id", requestID,
		"path", path,
	)

	if err := dataset.ValidateFile(path); err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("preflight validation: %w", err)
	}

	body, contentType, err := buildMultipartBody(path)
	if err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	targetURL := fmt.Sprintf("%s/upload", m.baseURL)
	resp, err := m.client.Post(ctx, targetURL, contentType, body)
	if err != nil {
		slog.Error("upload HTTP request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		metrics.Uploads.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("http post: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := responseError("/upload", resp)
		slog.Error("upload rejected by server",
			"request_id", requestID,
			"status_code", apiErr.StatusCode,
			"detail", apiErr.Detail,
		)
		metrics.Uploads.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, apiErr
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if result.SessionID == "" {
		metrics.Uploads.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("upload response missing session_id")
	}
	result.Filename = filepath.Base(path)

	m.mu.Lock()
	m.sessionID = result.SessionID
	m.filename = result.Filename
	m.mu.Unlock()

	slog.Debug("upload completed",
		"request_id", requestID,
		"session_id", result.SessionID,
		"total_rows", result.Summary.TotalRows,
	)
	metrics.Uploads.WithLabelValues(metrics.OutcomeCompleted).Inc()

	return &result, nil
}

func (m *uploadSessionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *uploadSessionManager) HasSession() bool {
	return m.SessionID() != ""
}

func (m *uploadSessionManager) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = ""
	m.filename = ""
}

func (m *uploadSessionManager) Close() error {
	return nil
}

// buildMultipartBody reads the file into a multipart form with the
// single "file" field the backend expects.
//
// The whole file is buffered in memory. Customs datasets cap out in the
// tens of megabytes, which keeps this simpler than a streamed pipe.
func buildMultipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy file into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
