// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
)

// HeaderConfig contains configuration for displaying the chat header.
//
// # Description
//
// HeaderConfig groups all optional parameters for the chat header display.
// This allows extending the header with new fields without breaking
// existing callers.
//
// # Fields
//
//   - BaseURL: Backend base URL the session talks to.
//   - SessionID: Dataset session identifier. May be empty before an upload.
//   - DatasetFile: Name of the uploaded file. Empty when no dataset loaded.
//   - Summary: Optional dataset summary for the header stats line.
//   - UploadedAt: Unix milliseconds of the upload. Zero when unknown.
type HeaderConfig struct {
	BaseURL     string
	SessionID   string
	DatasetFile string
	Summary     *dataset.Summary
	UploadedAt  int64
}

// SessionStats aggregates metrics from a query session for display.
//
// # Fields
//
//   - QueryCount: Number of questions submitted
//   - TotalTokens: Narration tokens received across all answers
//   - ResultsTracked: Result artifacts announced by the backend
//   - Duration: Total session duration
//   - FirstResponseLatency: Time to first token of first response
//   - AverageResponseTime: Average time per answer
type SessionStats struct {
	QueryCount           int
	TotalTokens          int
	ResultsTracked       int
	Duration             time.Duration
	FirstResponseLatency time.Duration
	AverageResponseTime  time.Duration
}

// ChatUI renders the interactive query session to the terminal.
//
// All methods adapt their output to the active personality level.
type ChatUI interface {
	// Header displays the session header with backend and session info.
	Header(baseURL, sessionID string)

	// HeaderWithConfig displays the session header with full configuration,
	// including the loaded dataset and its summary stats.
	HeaderWithConfig(config HeaderConfig)

	// Prompt returns the styled input prompt string
	Prompt() string

	// Response displays a finished assistant answer
	Response(answer string)

	// DatasetSummary displays the post-upload dataset summary box
	DatasetSummary(s dataset.Summary)

	// NoDataset displays a hint that no dataset session is active
	NoDataset()

	// VisualizationReady announces that a chart can be fetched for a result
	VisualizationReady(resultID string)

	// Error displays a chat error message
	Error(err error)

	// SessionEnd displays session end information
	SessionEnd(sessionID string)

	// SessionEndRich displays rich session end information with stats.
	//
	// Shows the session ID, accumulated statistics, and the commands for
	// acting on tracked results later. Use this instead of SessionEnd
	// when you have accumulated stats.
	SessionEndRich(sessionID string, stats *SessionStats)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

// write is a helper that writes formatted output and handles errors.
// Errors are silently ignored as there's no meaningful recovery for terminal output.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(u.writer, format, args...); err != nil {
		return
	}
}

// writeln is a helper that writes a line and handles errors.
func (u *terminalChatUI) writeln(args ...interface{}) {
	if _, err := fmt.Fprintln(u.writer, args...); err != nil {
		return
	}
}

// NewChatUI creates a new terminal-based ChatUI
func NewChatUI() ChatUI {
	return &terminalChatUI{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel) ChatUI {
	return &terminalChatUI{
		writer:      w,
		personality: personality,
	}
}

// Header displays the session header with backend and session info.
func (u *terminalChatUI) Header(baseURL, sessionID string) {
	u.HeaderWithConfig(HeaderConfig{
		BaseURL:   baseURL,
		SessionID: sessionID,
	})
}

// HeaderWithConfig displays the session header with full configuration.
func (u *terminalChatUI) HeaderWithConfig(config HeaderConfig) {
	if u.personality == PersonalityMachine {
		u.headerMachine(config)
		return
	}
	if u.personality == PersonalityMinimal {
		u.headerMinimal(config)
		return
	}
	u.headerFull(config)
}

// headerMachine renders the header in machine-readable format.
func (u *terminalChatUI) headerMachine(config HeaderConfig) {
	parts := []string{fmt.Sprintf("backend=%s", config.BaseURL)}
	if config.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", config.SessionID))
	}
	if config.DatasetFile != "" {
		parts = append(parts, fmt.Sprintf("dataset=%s", config.DatasetFile))
	}
	if config.Summary != nil {
		parts = append(parts, fmt.Sprintf("rows=%d", config.Summary.TotalRows))
	}
	u.write("CHAT_START: %s\n", strings.Join(parts, " "))
}

// headerMinimal renders the header in minimal format.
func (u *terminalChatUI) headerMinimal(config HeaderConfig) {
	u.write("Customs Analysis Chat (%s)\n", config.BaseURL)
	if config.DatasetFile != "" {
		if config.Summary != nil {
			u.write("Dataset: %s (%s rows)\n", config.DatasetFile, dataset.FormatCount(config.Summary.TotalRows))
		} else {
			u.write("Dataset: %s\n", config.DatasetFile)
		}
	}
	u.writeln("Type 'exit' to end.")
}

// headerFull renders the header with full styling.
func (u *terminalChatUI) headerFull(config HeaderConfig) {
	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("AI-Powered Customs Analyzer"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Backend: %s", Styles.Success.Render(config.BaseURL)))

	if config.DatasetFile != "" {
		content.WriteString("\n")
		if config.Summary != nil {
			statsInfo := fmt.Sprintf("%s rows", dataset.FormatCount(config.Summary.TotalRows))
			if config.UploadedAt > 0 {
				statsInfo = fmt.Sprintf("%s, uploaded %s", statsInfo, formatRelativeTime(config.UploadedAt))
			}
			content.WriteString(fmt.Sprintf("Dataset: %s %s",
				Styles.Success.Render(config.DatasetFile),
				Styles.Muted.Render(fmt.Sprintf("(%s)", statsInfo))))
		} else {
			content.WriteString(fmt.Sprintf("Dataset: %s", Styles.Success.Render(config.DatasetFile)))
		}
	}

	if config.SessionID != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Session: %s", Styles.Muted.Render(config.SessionID)))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Type 'exit' to end, 'clear' to drop the dataset session."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalChatUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// Response displays a finished assistant answer
func (u *terminalChatUI) Response(answer string) {
	if u.personality == PersonalityMachine {
		u.write("RESPONSE: %s\n", answer)
		return
	}
	u.writeln()
	u.writeln(answer)
}

// DatasetSummary displays the post-upload dataset summary box
func (u *terminalChatUI) DatasetSummary(s dataset.Summary) {
	if u.personality == PersonalityMachine {
		u.write("DATASET: rows=%d importers=%d hs_codes=%d countries=%d value=%.2f duty=%.2f tax=%.2f\n",
			s.TotalRows, s.UniqueImporters, s.UniqueHSCodes, s.UniqueCountries,
			s.TotalValue, s.TotalDutyPaid, s.TotalTaxPaid)
		return
	}

	if u.personality == PersonalityMinimal {
		u.write("Rows: %s | Importers: %s | HS codes: %s | Countries: %s\n",
			dataset.FormatCount(s.TotalRows), dataset.FormatCount(s.UniqueImporters),
			dataset.FormatCount(s.UniqueHSCodes), dataset.FormatCount(s.UniqueCountries))
		u.write("Value: Rs %s | Duty: Rs %s | Tax: Rs %s\n",
			dataset.FormatMoney(s.TotalValue), dataset.FormatMoney(s.TotalDutyPaid),
			dataset.FormatMoney(s.TotalTaxPaid))
		return
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("Total Records: %s\n", Styles.Highlight.Render(dataset.FormatCount(s.TotalRows))))
	content.WriteString(fmt.Sprintf("Unique Importers: %s\n", Styles.Bold.Render(dataset.FormatCount(s.UniqueImporters))))
	content.WriteString(fmt.Sprintf("Unique HS Codes: %s\n", Styles.Bold.Render(dataset.FormatCount(s.UniqueHSCodes))))
	content.WriteString(fmt.Sprintf("Origin Countries: %s\n", Styles.Bold.Render(dataset.FormatCount(s.UniqueCountries))))
	content.WriteString(fmt.Sprintf("Total Import Value: %s\n", Styles.Success.Render("Rs "+dataset.FormatMoney(s.TotalValue))))
	content.WriteString(fmt.Sprintf("Total Customs Duty: %s\n", Styles.Success.Render("Rs "+dataset.FormatMoney(s.TotalDutyPaid))))
	content.WriteString(fmt.Sprintf("Total Sales Tax: %s", Styles.Success.Render("Rs "+dataset.FormatMoney(s.TotalTaxPaid))))

	boxStyle := Styles.InfoBox.Width(60)
	titleLine := Styles.Subtitle.Render("Dataset Summary")
	u.writeln(boxStyle.Render(titleLine + "\n" + content.String()))
}

// NoDataset displays a hint that no dataset session is active
func (u *terminalChatUI) NoDataset() {
	if u.personality == PersonalityMachine {
		u.writeln("DATASET: none")
		return
	}
	if u.personality != PersonalityMinimal {
		u.writeln(Styles.Muted.Render("(No dataset loaded. Upload a file first: customs upload <file.csv>)"))
	}
}

// VisualizationReady announces that a chart can be fetched for a result
func (u *terminalChatUI) VisualizationReady(resultID string) {
	if u.personality == PersonalityMachine {
		u.write("VIZ_READY: result=%s\n", resultID)
		return
	}
	u.write("%s %s\n", IconChart.Render(),
		Styles.Subtitle.Render(fmt.Sprintf("Visualization ready for result %s (customs viz %s)", resultID, resultID)))
}

// Error displays a chat error message
func (u *terminalChatUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Chat error: %v", err)))
}

// SessionEnd displays session end information.
func (u *terminalChatUI) SessionEnd(sessionID string) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_END: session=%s\n", sessionID)
		return
	}
	if sessionID != "" {
		u.writeln(Styles.Muted.Render(fmt.Sprintf("Session: %s", sessionID)))
	}
	u.writeln("Goodbye!")
}

// SessionEndRich displays rich session end information with statistics.
//
// # Description
//
// Displays a comprehensive session summary including the session ID,
// accumulated statistics (queries, tokens, results, duration), and
// performance metrics. Falls back to SessionEnd when stats is nil.
//
// # Inputs
//
//   - sessionID: The dataset session identifier. May be empty.
//   - stats: Session statistics. If nil, falls back to SessionEnd.
//
// # Limitations
//
//   - Box rendering requires terminal width of at least 68 characters
//   - Emoji icons may not render on all terminals
func (u *terminalChatUI) SessionEndRich(sessionID string, stats *SessionStats) {
	if stats == nil {
		u.SessionEnd(sessionID)
		return
	}

	if u.personality == PersonalityMachine {
		u.write("CHAT_END: session=%s queries=%d tokens=%d results=%d duration=%s\n",
			sessionID, stats.QueryCount, stats.TotalTokens, stats.ResultsTracked,
			stats.Duration.Round(time.Millisecond))
		return
	}

	if u.personality == PersonalityMinimal {
		u.writeln()
		if sessionID != "" {
			u.write("Session: %s\n", sessionID)
		}
		u.write("Queries: %d | Tokens: %d | Duration: %s\n",
			stats.QueryCount, stats.TotalTokens, formatDuration(stats.Duration))
		u.writeln("Goodbye!")
		return
	}

	u.sessionEndRichFull(sessionID, stats)
}

// sessionEndRichFull renders session end with full styling.
func (u *terminalChatUI) sessionEndRichFull(sessionID string, stats *SessionStats) {
	u.writeln()

	var content strings.Builder

	content.WriteString(Styles.Subtitle.Render("Session Summary"))
	content.WriteString("\n\n")

	if sessionID != "" {
		content.WriteString(fmt.Sprintf("  %s  %s\n",
			Styles.Muted.Render("ID:"),
			Styles.Highlight.Render(sessionID)))
	}

	content.WriteString("\n")
	content.WriteString(Styles.Subtitle.Render("Statistics"))
	content.WriteString("\n\n")

	content.WriteString(fmt.Sprintf("  %s  %d questions asked\n",
		IconChat.Render(), stats.QueryCount))
	content.WriteString(fmt.Sprintf("  %s  %d tokens received\n",
		IconInfo.Render(), stats.TotalTokens))

	if stats.ResultsTracked > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d results tracked\n",
			IconChart.Render(), stats.ResultsTracked))
	}

	content.WriteString(fmt.Sprintf("  %s  %s session duration\n",
		IconTime.Render(), formatDuration(stats.Duration)))

	if stats.FirstResponseLatency > 0 {
		content.WriteString(fmt.Sprintf("  %s  %s time to first response\n",
			Styles.Muted.Render("⚡"), formatDuration(stats.FirstResponseLatency)))
	}

	if stats.ResultsTracked > 0 {
		content.WriteString("\n")
		content.WriteString(Styles.Subtitle.Render("Your Results"))
		content.WriteString("\n\n")
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Muted.Render("Export or chart a result:")))
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Success.Render("customs download <result-id> --format csv")))
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Success.Render("customs viz <result-id>")))
	}

	// Width 68 accommodates the download command plus a UUID result id
	boxStyle := Styles.Box.Width(68)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Highlight.Render("Goodbye! 👋"))
}

// formatDuration formats a duration for human-readable display.
//
// Examples:
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
//	formatDuration(2*time.Hour)          // "2h 0m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// formatRelativeTime converts a Unix milliseconds timestamp to a relative
// time string like "2h ago". Returns "just now" within the last minute
// and a date for anything older than a month.
func formatRelativeTime(unixMs int64) string {
	if unixMs == 0 {
		return "unknown"
	}

	t := time.UnixMilli(unixMs)
	diff := time.Since(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	}
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	if diff < 30*24*time.Hour {
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}

	return t.Format("Jan 2, 2006")
}
