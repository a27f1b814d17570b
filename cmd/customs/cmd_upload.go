// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// runUploadCommand uploads one or more dataset files.
//
// A single file prints the dataset summary and the session id for the
// chat command. Multiple files are uploaded concurrently; each upload
// creates its own backend session and the per-file status plus a totals
// line is printed at the end.
func runUploadCommand(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		ux.Error("No files given. Usage: customs upload <file> [file...]")
		os.Exit(1)
	}

	baseURL := getBackendBaseURL()

	if len(args) == 1 {
		uploads := NewUploadSessionManager(UploadSessionManagerConfig{BaseURL: baseURL})
		result, err := uploadWithSpinner(uploads, args[0])
		if err != nil {
			ux.FileStatus(args[0], ux.IconError, err.Error())
			os.Exit(1)
		}
		ux.FileStatus(args[0], ux.IconSuccess, "")
		ux.NewChatUIWithWriter(os.Stdout, ux.GetPersonality().Level).DatasetSummary(result.Summary)
		ux.Success("Session ready: " + result.SessionID)
		ux.Info("Start asking questions with: customs chat")
		return
	}

	uploadBatch(cmd.Context(), baseURL, args)
}

// uploadBatch uploads files concurrently, bounded to a small worker
// count so the backend is not slammed with parallel multipart posts.
func uploadBatch(ctx context.Context, baseURL string, paths []string) {
	type fileOutcome struct {
		path      string
		sessionID string
		err       error
	}

	outcomes := make([]fileOutcome, len(paths))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	spinner := ux.NewProgressSpinner("Uploading datasets", len(paths))
	spinner.Start()

	for i, path := range paths {
		i, path := i, path

		g.Go(func() error {
			// Each file gets its own manager: one session per dataset.
			uploads := NewUploadSessionManager(UploadSessionManagerConfig{BaseURL: baseURL})
			result, err := uploads.Upload(gCtx, path)

			mu.Lock()
			outcomes[i] = fileOutcome{path: path, err: err}
			if err == nil {
				outcomes[i].sessionID = result.SessionID
			}
			spinner.Increment()
			mu.Unlock()

			return nil // Per-file failures are reported, not fatal
		})
	}

	// Workers never return errors, so Wait only reflects ctx cancellation.
	if err := g.Wait(); err != nil {
		spinner.StopWithError("Upload cancelled")
		os.Exit(1)
	}
	spinner.Stop()

	uploaded, failed := 0, 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			ux.FileStatus(o.path, ux.IconError, o.err.Error())
			continue
		}
		uploaded++
		ux.FileStatus(o.path, ux.IconSuccess, fmt.Sprintf("session %s", o.sessionID))
	}
	ux.Summary(uploaded, failed, len(paths))

	if failed > 0 {
		os.Exit(1)
	}
}
