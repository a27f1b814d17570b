// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package results tracks result artifacts announced during query
// streams and builds the backend URLs to act on them.
//
// An artifact moves through a small lifecycle: announced by a metadata
// frame, optionally generating once a chart is requested, and ready when
// the backend signals visualization_ready. Download URLs are independent
// of the chart lifecycle.
package results

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Status is the chart lifecycle state of an artifact.
type Status string

const (
	// StatusAnnounced means the artifact was named by a metadata frame.
	StatusAnnounced Status = "announced"

	// StatusGenerating means a chart was requested and is being built.
	StatusGenerating Status = "generating"

	// StatusReady means the chart can be fetched.
	StatusReady Status = "ready"
)

// Download formats accepted by the backend.
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

// ErrUnknownResult is returned for lookups of ids never announced.
var ErrUnknownResult = errors.New("unknown result id")

// ErrBadFormat is returned for download formats outside the whitelist.
var ErrBadFormat = errors.New("unsupported download format")

// Metadata is the artifact description carried by a metadata frame.
type Metadata struct {
	SQL              string
	Rows             int
	Columns          []string
	Preview          []map[string]any
	WantsData        bool
	HasVisualization bool
}

// Artifact is a tracked query result.
type Artifact struct {
	ID               string           `json:"id"`
	SQL              string           `json:"sql,omitempty"`
	Rows             int              `json:"rows"`
	Columns          []string         `json:"columns,omitempty"`
	Preview          []map[string]any `json:"preview,omitempty"`
	WantsData        bool             `json:"wants_data,omitempty"`
	HasVisualization bool             `json:"has_visualization,omitempty"`
	Status           Status           `json:"status"`
	AnnouncedAt      time.Time        `json:"announced_at"`
	ReadyAt          time.Time        `json:"ready_at,omitzero"`
}

// Registry is a thread-safe artifact tracker for one dataset session.
type Registry struct {
	mu        sync.RWMutex
	baseURL   string
	artifacts map[string]*Artifact
	order     []string
}

// NewRegistry creates an empty registry. baseURL is the backend root,
// without a trailing slash.
func NewRegistry(baseURL string) *Registry {
	return &Registry{
		baseURL:   baseURL,
		artifacts: make(map[string]*Artifact),
	}
}

// Announce records an artifact from a metadata frame. Announcing an id
// twice updates the metadata in place and keeps the existing lifecycle
// state, so duplicate metadata frames are harmless.
func (r *Registry) Announce(id string, meta Metadata) *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.artifacts[id]
	if !ok {
		a = &Artifact{
			ID:          id,
			Status:      StatusAnnounced,
			AnnouncedAt: time.Now(),
		}
		r.artifacts[id] = a
		r.order = append(r.order, id)
	}

	// Last write wins per field
	if meta.SQL != "" {
		a.SQL = meta.SQL
	}
	if meta.Rows > 0 {
		a.Rows = meta.Rows
	}
	if meta.Columns != nil {
		a.Columns = meta.Columns
	}
	if meta.Preview != nil {
		a.Preview = meta.Preview
	}
	a.WantsData = a.WantsData || meta.WantsData
	a.HasVisualization = a.HasVisualization || meta.HasVisualization

	snapshot := *a
	return &snapshot
}

// MarkGenerating moves an artifact to StatusGenerating.
func (r *Registry) MarkGenerating(id string) error {
	return r.setStatus(id, StatusGenerating)
}

// MarkReady moves an artifact to StatusReady and stamps ReadyAt.
func (r *Registry) MarkReady(id string) error {
	return r.setStatus(id, StatusReady)
}

func (r *Registry) setStatus(id string, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResult, id)
	}
	a.Status = s
	if s == StatusReady {
		a.ReadyAt = time.Now()
		a.HasVisualization = true
	}
	return nil
}

// Get returns a snapshot of the artifact with the given id.
func (r *Registry) Get(id string) (Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[id]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownResult, id)
	}
	return *a, nil
}

// List returns artifact snapshots in announcement order.
func (r *Registry) List() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Artifact, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.artifacts[id])
	}
	return out
}

// Latest returns the most recently announced artifact.
func (r *Registry) Latest() (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return Artifact{}, false
	}
	return *r.artifacts[r.order[len(r.order)-1]], true
}

// Reset drops all tracked artifacts. Lookups for old ids then return
// ErrUnknownResult, which is how late visualization_ready frames after
// a session reset become no-ops.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = make(map[string]*Artifact)
	r.order = nil
}

// GenerateVisualizationURL builds the chart generation endpoint URL.
func (r *Registry) GenerateVisualizationURL(id string) string {
	return fmt.Sprintf("%s/generate-visualization/%s", r.baseURL, url.PathEscape(id))
}

// VisualizationURL builds the chart fetch endpoint URL.
func (r *Registry) VisualizationURL(id string) string {
	return fmt.Sprintf("%s/visualization/%s", r.baseURL, url.PathEscape(id))
}

// DownloadURL builds the export endpoint URL. Only FormatCSV and
// FormatExcel are accepted.
func (r *Registry) DownloadURL(id, format string) (string, error) {
	if format != FormatCSV && format != FormatExcel {
		return "", fmt.Errorf("%w: %q (want csv or excel)", ErrBadFormat, format)
	}
	return fmt.Sprintf("%s/download/%s?format=%s", r.baseURL, url.PathEscape(id), format), nil
}
