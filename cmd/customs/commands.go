// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/HighNCode/Customs-Analyzer/cmd/customs/config"
	"github.com/HighNCode/Customs-Analyzer/pkg/logging"
	"github.com/HighNCode/Customs-Analyzer/pkg/ux"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	metricsAddr      string // Optional prometheus debug listener (chat only)

	appLogger *logging.Logger // Closed in PersistentPostRun

	rootCmd = &cobra.Command{
		Use:   "customs",
		Short: "A cli to explore customs import data with AI-powered analysis",
		Long: `Customs Analyzer uploads tabular customs import declarations to an
				analysis backend and lets you interrogate them in plain English,
				streaming SQL-backed answers, charts, and exports to your terminal.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				slog.Warn("could not load config, using defaults", "error", err)
			}

			appLogger = logging.New(logging.Config{
				Level:   logging.ParseLevel(config.Global.Logging.Level),
				LogDir:  config.Global.Logging.LogDir,
				JSON:    config.Global.Logging.JSON,
				Service: "cli",
			})
			slog.SetDefault(appLogger.Slog())

			// Initialize UX personality from flag, config, or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else if config.Global.UX.Personality != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(config.Global.UX.Personality))
			} else {
				ux.InitPersonality()
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				if err := appLogger.Close(); err != nil {
					slog.Warn("failed to close logger", "error", err)
				}
			}
		},
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive query session against the loaded dataset",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	// --- Upload ---
	uploadCmd = &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload customs dataset files (CSV or Excel) to the analysis backend",
		Run:   runUploadCommand, // Defined in cmd_upload.go
	}

	// --- Health ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check backend reachability and latency",
		Run:   runHealthCommand, // Defined in cmd_health.go
	}

	// --- Result Artifacts ---
	generateVizCmd = &cobra.Command{
		Use:   "generate-viz [result-id]",
		Short: "Ask the backend to build a chart for a query result",
		Args:  cobra.ExactArgs(1),
		Run:   runGenerateVizCommand, // Defined in cmd_results.go
	}
	vizCmd = &cobra.Command{
		Use:   "viz [result-id]",
		Short: "Fetch a generated visualization",
		Args:  cobra.ExactArgs(1),
		Run:   runVizCommand, // Defined in cmd_results.go
	}
	downloadCmd = &cobra.Command{
		Use:   "download [result-id]",
		Short: "Download a query result as CSV or Excel",
		Args:  cobra.ExactArgs(1),
		Run:   runDownloadCommand, // Defined in cmd_results.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("file", "", "Dataset file to upload before the session starts")
	chatCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Expose prometheus metrics on this address while chatting (e.g. localhost:9464)")

	rootCmd.AddCommand(uploadCmd)

	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("json", false, "Emit the probe result as JSON")

	rootCmd.AddCommand(generateVizCmd)

	rootCmd.AddCommand(vizCmd)
	vizCmd.Flags().StringP("output", "o", "", "Write the visualization to this file instead of stdout")

	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().String("format", "csv", "Export format: csv or excel")
	downloadCmd.Flags().StringP("output", "o", "", "Output filename (default: <result-id>.<ext>)")
}
