// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// =============================================================================
// Mock HTTP Client
// =============================================================================

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	// PostFunc allows customizing POST behavior per test
	PostFunc func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
	// GetFunc allows customizing GET behavior per test
	GetFunc func(ctx context.Context, url string) (*http.Response, error)

	// Simple response/error for basic tests
	response *http.Response
	err      error

	// Capture request details for assertions
	postCalls       int
	lastPostURL     string
	lastPostBody    string
	lastContentType string
	lastHeaders     map[string]string
	lastGetURL      string
}

var _ HTTPClient = (*mockHTTPClient)(nil)

func (m *mockHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return m.PostWithHeaders(ctx, url, contentType, body, nil)
}

func (m *mockHTTPClient) PostWithHeaders(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	m.postCalls++
	m.lastPostURL = url
	m.lastContentType = contentType
	m.lastHeaders = headers
	if body != nil {
		bodyBytes, _ := io.ReadAll(body)
		m.lastPostBody = string(bodyBytes)
	}

	if m.PostFunc != nil {
		return m.PostFunc(ctx, url, contentType, body)
	}
	return m.response, m.err
}

func (m *mockHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	m.lastGetURL = url
	if m.GetFunc != nil {
		return m.GetFunc(ctx, url)
	}
	return m.response, m.err
}

// jsonResponse builds an *http.Response with a JSON string body.
func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// sseResponse builds an *http.Response carrying an event stream body.
func sseResponse(frames ...string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(strings.Join(frames, ""))),
	}
}
