// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError wraps a non-2xx backend response with its detail text.
//
// # Description
//
// Provides rich error context for backend failures, including the
// endpoint that failed, HTTP status code, and the server's detail
// message. Implements error interface and supports unwrapping.
//
// # Example
//
//	err := NewAPIError("/upload", 422, "Missing required columns", nil)
//	fmt.Println(err.Error()) // "/upload (status 422): Missing required columns"
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) {
//	    fmt.Println(apiErr.Detail) // "Missing required columns"
//	}
type APIError struct {
	// Endpoint is the backend path that was called.
	Endpoint string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Detail contains the server's detail message.
	Detail string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns a formatted error message.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Endpoint, e.StatusCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (status %d)", e.Endpoint, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Wrapped
}

// HasDetail returns true if server detail text is available.
func (e *APIError) HasDetail() bool {
	return e.Detail != ""
}

// NewAPIError creates an APIError with full context. Detail is trimmed
// of leading/trailing whitespace.
func NewAPIError(endpoint string, statusCode int, detail string, wrapped error) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Detail:     strings.TrimSpace(detail),
		Wrapped:    wrapped,
	}
}

// responseError converts a non-2xx response into an APIError.
//
// FastAPI-style backends wrap their message in {"detail": "..."}; plain
// text bodies are used as-is. The body is consumed but not closed.
func responseError(endpoint string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	detail := string(body)
	var wire struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Detail != "" {
		detail = wire.Detail
	}
	return NewAPIError(endpoint, resp.StatusCode, detail, nil)
}

// ExtractDetail walks the error chain looking for an APIError with
// detail text. Returns the first detail found, or empty string.
func ExtractDetail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HasDetail() {
		return apiErr.Detail
	}
	return ""
}
