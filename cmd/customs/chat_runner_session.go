// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the customsChatRunner implementation.
//
// This file implements the ChatRunner interface for the query session
// chat loop. It coordinates between the QuerySessionController (query
// submission and streaming), the UploadSessionManager (dataset session),
// the ChatUI (display), and the InputReader (user input).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/HighNCode/Customs-Analyzer/cmd/customs/config"
	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
	"github.com/HighNCode/Customs-Analyzer/pkg/stream"
	"github.com/HighNCode/Customs-Analyzer/pkg/transcript"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// =============================================================================
// customsChatRunner Implementation
// =============================================================================

// customsChatRunner manages the interactive query session loop.
//
// # Description
//
// The runner follows a single-responsibility pattern:
//   - Input reading is delegated to InputReader
//   - Query submission is delegated to QuerySessionController
//   - Session tracking is delegated to UploadSessionManager
//   - Display formatting is delegated to ux.ChatUI
//   - Runner only handles coordination and control flow
//
// In-loop commands: "exit"/"quit" end the session, "clear" resets the
// dataset session. Everything else is submitted as a question.
//
// # Thread Safety
//
// Not designed for concurrent Run() calls. Close() is thread-safe.
type customsChatRunner struct {
	controller QuerySessionController
	uploads    UploadSessionManager
	ui         ux.ChatUI
	input      InputReader

	datasetFile string
	summary     *dataset.Summary
	uploadedAt  int64
	watchConfig bool

	sessionStartTime  time.Time
	sessionStats      ux.SessionStats
	totalResponseTime time.Duration

	closed bool
	mu     sync.Mutex
}

var _ ChatRunner = (*customsChatRunner)(nil)

// CustomsChatRunnerConfig holds configuration for creating the runner.
//
// BaseURL, Controller, and Uploads are required. DatasetFile, Summary,
// and UploadedAt describe a dataset uploaded before the loop started
// and feed the header; all are optional.
type CustomsChatRunnerConfig struct {
	Controller  QuerySessionController
	Uploads     UploadSessionManager
	DatasetFile string
	Summary     *dataset.Summary
	UploadedAt  int64
	WatchConfig bool // reload ~/.customs/customs.yaml on change
}

// NewCustomsChatRunner creates a chat runner with production UI and
// interactive input.
func NewCustomsChatRunner(cfg CustomsChatRunnerConfig) ChatRunner {
	return &customsChatRunner{
		controller:  cfg.Controller,
		uploads:     cfg.Uploads,
		ui:          ux.NewChatUI(),
		input:       NewInteractiveInputReader(50), // keep last 50 prompts in history
		datasetFile: cfg.DatasetFile,
		summary:     cfg.Summary,
		uploadedAt:  cfg.UploadedAt,
		watchConfig: cfg.WatchConfig,
	}
}

// NewCustomsChatRunnerWithDeps creates a chat runner with injected
// dependencies. Use MockInputReader and NewChatUIWithWriter in tests.
func NewCustomsChatRunnerWithDeps(
	controller QuerySessionController,
	uploads UploadSessionManager,
	ui ux.ChatUI,
	input InputReader,
) *customsChatRunner {
	return &customsChatRunner{
		controller: controller,
		uploads:    uploads,
		ui:         ui,
		input:      input,
	}
}

// Run executes the interactive query session loop.
//
// # Description
//
// The loop:
//  1. Displays the chat header with backend and dataset info
//  2. Seeds the transcript with the dataset welcome message
//  3. Prompts for user input
//  4. Handles "exit"/"quit"/"clear" commands
//  5. Submits the question and streams the answer
//  6. Repeats until exit, EOF, or context cancellation
//
// When WatchConfig is set, the config file is watched for the whole
// session and personality changes take effect on the next prompt.
func (r *customsChatRunner) Run(ctx context.Context) error {
	r.sessionStartTime = time.Now()

	if r.watchConfig {
		go r.watchConfigFile(ctx)
	}

	r.ui.HeaderWithConfig(ux.HeaderConfig{
		BaseURL:     getBackendBaseURL(),
		SessionID:   r.uploads.SessionID(),
		DatasetFile: r.datasetFile,
		Summary:     r.summary,
		UploadedAt:  r.uploadedAt,
	})

	if r.summary != nil {
		r.controller.Transcript().AppendSystem(transcript.Welcome(*r.summary))
		r.ui.DatasetSummary(*r.summary)
	} else if !r.uploads.HasSession() {
		r.ui.NoDataset()
	}

	for {
		// Check for context cancellation before blocking on input
		select {
		case <-ctx.Done():
			return r.handleShutdown(ctx)
		default:
		}

		// Display prompt and read input. If the reader handles prompts
		// (interactive mode), set it; otherwise print manually.
		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(r.ui.Prompt())
		} else {
			fmt.Print(r.ui.Prompt())
		}
		input, err := r.input.ReadLine()
		if err != nil {
			if err == io.EOF {
				// Input exhausted (e.g., piped input ended)
				r.displaySessionEndWithStats()
				return nil
			}
			slog.Error("failed to read input", "error", err)
			return fmt.Errorf("read input: %w", err)
		}

		if input == "" {
			continue
		}

		// Echo the user's input for interactive readers. Bubbletea
		// clears its rendering area on exit, so we restore the line.
		if _, isInteractive := r.input.(*InteractiveInputReader); isInteractive {
			fmt.Printf("%s%s\n", r.ui.Prompt(), input)
		}

		if isExitCommand(input) {
			r.displaySessionEndWithStats()
			return nil
		}

		if isClearCommand(input) {
			r.controller.ClearSession()
			r.datasetFile = ""
			r.summary = nil
			r.ui.NoDataset()
			continue
		}

		if err := r.handleMessage(ctx, input); err != nil {
			if ctx.Err() != nil {
				return r.handleShutdown(ctx)
			}
			// Non-fatal error: display and continue
			r.ui.Error(err)
			continue
		}
	}
}

// handleMessage submits a single question.
//
// The answer is rendered in real-time as tokens arrive via the
// StreamRenderer, so there is nothing to print here beyond spacing.
// Busy and no-dataset errors are returned for the loop to display.
func (r *customsChatRunner) handleMessage(ctx context.Context, question string) error {
	result, err := r.controller.Submit(ctx, question)
	if err != nil {
		if errors.Is(err, ErrNoDatasetSession) || errors.Is(err, ErrQueryInFlight) {
			return err
		}
		return fmt.Errorf("query failed: %w", err)
	}

	r.accumulateStats(result)
	fmt.Println()

	return nil
}

// accumulateStats updates session statistics from a stream result.
func (r *customsChatRunner) accumulateStats(result *stream.Result) {
	r.sessionStats.QueryCount++
	r.sessionStats.TotalTokens += result.TotalTokens
	r.sessionStats.ResultsTracked = len(r.controller.Results().List())

	if result.CompletedAt > result.CreatedAt {
		r.totalResponseTime += time.Duration(result.CompletedAt-result.CreatedAt) * time.Millisecond
	}
	if r.sessionStats.QueryCount == 1 && result.FirstTokenAt > result.CreatedAt {
		r.sessionStats.FirstResponseLatency = time.Duration(result.FirstTokenAt-result.CreatedAt) * time.Millisecond
	}
}

// displaySessionEndWithStats finalizes statistics and displays the rich
// session end summary.
func (r *customsChatRunner) displaySessionEndWithStats() {
	r.sessionStats.Duration = time.Since(r.sessionStartTime)
	if r.sessionStats.QueryCount > 0 {
		r.sessionStats.AverageResponseTime = r.totalResponseTime / time.Duration(r.sessionStats.QueryCount)
	}

	r.ui.SessionEndRich(r.uploads.SessionID(), &r.sessionStats)
}

// handleShutdown performs graceful shutdown on context cancellation.
func (r *customsChatRunner) handleShutdown(ctx context.Context) error {
	slog.Debug("chat session shutting down",
		"session_id", r.uploads.SessionID(),
		"queries", r.sessionStats.QueryCount,
	)
	r.displaySessionEndWithStats()
	return ctx.Err()
}

// watchConfigFile applies config file edits to the live session.
func (r *customsChatRunner) watchConfigFile(ctx context.Context) {
	err := config.Watch(ctx,
		func(cfg config.CustomsConfig) {
			if cfg.UX.Personality != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(cfg.UX.Personality))
			}
			slog.Debug("config reloaded", "personality", cfg.UX.Personality)
		},
		func(err error) {
			slog.Warn("config reload failed", "error", err)
		},
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("config watcher stopped", "error", err)
	}
}

// Close releases the runner's resources. Idempotent.
func (r *customsChatRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.controller.Close()
}
