// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HighNCode/Customs-Analyzer/cmd/customs/config"
	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
	"github.com/HighNCode/Customs-Analyzer/pkg/metrics"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// runChatCommand starts the interactive query session.
//
// With --file, the dataset is uploaded before the loop starts so the
// first prompt already has a session. Without it, the loop starts
// without a dataset and questions fail fast until an upload happens.
func runChatCommand(cmd *cobra.Command, args []string) {
	baseURL := getBackendBaseURL()
	filePath, _ := cmd.Flags().GetString("file")

	// The flag overrides the config file; both empty means no listener.
	addr := metricsAddr
	if addr == "" {
		addr = config.Global.Metrics.Addr
	}
	if addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil {
				slog.Warn("metrics listener stopped", "addr", addr, "error", err)
			}
		}()
	}

	uploads := NewUploadSessionManager(UploadSessionManagerConfig{BaseURL: baseURL})
	controller := NewQuerySessionController(QuerySessionControllerConfig{
		BaseURL: baseURL,
		Uploads: uploads,
	})

	var summary *dataset.Summary
	var uploadedAt int64
	if filePath != "" {
		result, err := uploadWithSpinner(uploads, filePath)
		if err != nil {
			ux.Error("Upload failed: " + err.Error())
			os.Exit(1)
		}
		summary = &result.Summary
		uploadedAt = time.Now().UnixMilli()
		filePath = result.Filename
	}

	runner := NewCustomsChatRunner(CustomsChatRunnerConfig{
		Controller:  controller,
		Uploads:     uploads,
		DatasetFile: filePath,
		Summary:     summary,
		UploadedAt:  uploadedAt,
		WatchConfig: true,
	})
	defer runner.Close()

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Chat error: %v", err)
	}
}

// uploadWithSpinner runs the upload behind a progress spinner.
func uploadWithSpinner(uploads UploadSessionManager, path string) (*UploadResult, error) {
	var result *UploadResult
	err := ux.WithSpinner("Uploading "+path+"...", func() error {
		var err error
		result, err = uploads.Upload(context.Background(), path)
		return err
	})
	return result, err
}
