// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics exposes Prometheus instrumentation for the CLI.
//
// Counters are registered on the default registry. The chat command can
// serve them on a local debug listener for long-running sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FramesDecoded counts frames successfully parsed into events.
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "stream",
		Name:      "frames_decoded_total",
		Help:      "Frames successfully parsed into events.",
	})

	// FramesMalformed counts frames rejected by the parser.
	FramesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "stream",
		Name:      "frames_malformed_total",
		Help:      "Frames rejected for bad payloads or unknown event types.",
	})

	// FramesLegacy counts frames parsed under the legacy prefix protocol.
	FramesLegacy = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "stream",
		Name:      "frames_legacy_total",
		Help:      "Frames parsed under the legacy prefix protocol.",
	})

	// FramesDiscarded counts bytes dropped as unterminated trailing data.
	FramesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "stream",
		Name:      "frames_discarded_bytes_total",
		Help:      "Bytes dropped as unterminated trailing data at EOF.",
	})

	// Queries counts query submissions by outcome.
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "session",
		Name:      "queries_total",
		Help:      "Query submissions by outcome.",
	}, []string{"outcome"})

	// Uploads counts dataset uploads by outcome.
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customs",
		Subsystem: "session",
		Name:      "uploads_total",
		Help:      "Dataset uploads by outcome.",
	}, []string{"outcome"})
)

// Outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a blocking metrics listener on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
