// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the result artifact commands: generating and
// fetching visualizations, and downloading result exports.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/HighNCode/Customs-Analyzer/pkg/results"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// runGenerateVizCommand asks the backend to build a chart for a result.
func runGenerateVizCommand(cmd *cobra.Command, args []string) {
	resultID := args[0]
	registry := results.NewRegistry(getBackendBaseURL())
	client := newHTTPClient(backendTimeout())

	err := ux.WithSpinner("Generating visualization for "+resultID, func() error {
		resp, err := client.Post(cmd.Context(), registry.GenerateVisualizationURL(resultID), "application/json", nil)
		if err != nil {
			return fmt.Errorf("http post: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return responseError("/generate-visualization", resp)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
	ux.Info("Fetch it with: customs viz " + resultID)
}

// runVizCommand fetches a generated visualization.
//
// The payload is written to --output when given, otherwise to stdout so
// it can be piped into a browser or a file.
func runVizCommand(cmd *cobra.Command, args []string) {
	resultID := args[0]
	outPath, _ := cmd.Flags().GetString("output")
	registry := results.NewRegistry(getBackendBaseURL())
	client := newHTTPClient(backendTimeout())

	resp, err := client.Get(cmd.Context(), registry.VisualizationURL(resultID))
	if err != nil {
		ux.Error("Fetch failed: " + err.Error())
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ux.Error(responseError("/visualization", resp).Error())
		os.Exit(1)
	}

	if outPath == "" {
		if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
			ux.Error("Write failed: " + err.Error())
			os.Exit(1)
		}
		return
	}

	if err := writeResponseFile(outPath, resp.Body); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("Visualization saved to " + outPath)
}

// runDownloadCommand downloads a result export in csv or excel format.
func runDownloadCommand(cmd *cobra.Command, args []string) {
	resultID := args[0]
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("output")

	registry := results.NewRegistry(getBackendBaseURL())
	url, err := registry.DownloadURL(resultID, format)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if outPath == "" {
		ext := format
		if format == "excel" {
			ext = "xlsx"
		}
		outPath = fmt.Sprintf("%s.%s", resultID, ext)
	}

	client := newHTTPClient(backendTimeout())
	resp, err := client.Get(cmd.Context(), url)
	if err != nil {
		ux.Error("Download failed: " + err.Error())
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ux.Error(responseError("/download", resp).Error())
		os.Exit(1)
	}

	if err := writeResponseFile(outPath, resp.Body); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("Saved " + outPath)
}

// writeResponseFile writes a response body to disk, confirming before
// overwriting an existing file. Machine personality skips the prompt
// and refuses to overwrite.
func writeResponseFile(path string, body io.Reader) error {
	if _, err := os.Stat(path); err == nil {
		if !confirmOverwrite(path) {
			return fmt.Errorf("%s exists, not overwritten", path)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// confirmOverwrite prompts for overwrite confirmation.
func confirmOverwrite(path string) bool {
	if !ux.IsInteractive() {
		return false
	}

	overwrite := false
	prompt := huh.NewConfirm().
		Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
		Value(&overwrite)
	if err := prompt.Run(); err != nil {
		return false
	}
	return overwrite
}
