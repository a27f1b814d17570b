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
)

// =============================================================================
// STREAM RENDERER
// =============================================================================

// StreamRenderer receives the phases of an answer stream as they arrive and
// paints them for the active personality. The controller drives it in event
// order: metadata first (when the backend sends one), then tokens, then
// either done or an error. Finalize always runs last.
//
// Implementations must be safe to reuse across queries after Finalize.
type StreamRenderer interface {
	// QueryStart is called once before any frames arrive.
	QueryStart(question string)

	// Metadata reports the generated SQL and row count for the answer.
	Metadata(sql string, rows int, resultID string)

	// Token appends a chunk of narration text.
	Token(content string)

	// VisualizationReady announces that a chart can be fetched for resultID.
	VisualizationReady(resultID string)

	// Done marks a successful end of stream.
	Done()

	// StreamError reports a failure mid-stream. Partial narration already
	// painted stays on screen.
	StreamError(message string)

	// Finalize flushes any pending output and resets per-query state.
	Finalize()
}

// =============================================================================
// TERMINAL RENDERER
// =============================================================================

// terminalStreamRenderer paints to a terminal with lipgloss styling. Token
// text is written raw as it arrives so the answer appears incrementally.
type terminalStreamRenderer struct {
	out         io.Writer
	personality Personality
	spinner     *Spinner
	gotToken    bool
	gotSQL      bool
}

var _ StreamRenderer = (*terminalStreamRenderer)(nil)

// NewStreamRenderer returns a renderer for the given personality writing to
// stdout. Machine personality gets line-oriented output with no styling.
func NewStreamRenderer(p Personality) StreamRenderer {
	return NewStreamRendererWithWriter(os.Stdout, p)
}

// NewStreamRendererWithWriter is NewStreamRenderer with an explicit writer.
func NewStreamRendererWithWriter(w io.Writer, p Personality) StreamRenderer {
	if p.Level == PersonalityMachine {
		return &machineStreamRenderer{out: w}
	}
	return &terminalStreamRenderer{
		out:         w,
		personality: p,
	}
}

func (r *terminalStreamRenderer) QueryStart(question string) {
	if r.personality.Level == PersonalityMinimal || r.out != io.Writer(os.Stdout) {
		return
	}
	r.spinner = NewSpinner("Analyzing your question...").WithType(SpinnerClock)
	r.spinner.Start()
}

func (r *terminalStreamRenderer) Metadata(sql string, rows int, resultID string) {
	r.stopSpinner()
	if sql != "" && !r.gotSQL {
		r.gotSQL = true
		if r.personality.Level == PersonalityFull {
			header := Styles.Highlight.Render("SQL Query")
			body := Styles.Muted.Render(strings.TrimSpace(sql))
			r.writeln("")
			r.writeln(header)
			r.writeln(body)
		}
	}
	if rows > 0 && r.personality.Level == PersonalityFull {
		r.writeln(Styles.Muted.Render(fmt.Sprintf("%s %d rows retrieved", IconArrow, rows)))
		r.writeln("")
	}
}

func (r *terminalStreamRenderer) Token(content string) {
	r.stopSpinner()
	if !r.gotToken {
		r.gotToken = true
		if r.personality.Level == PersonalityFull && !r.gotSQL {
			r.writeln("")
		}
	}
	r.write(content)
}

func (r *terminalStreamRenderer) VisualizationReady(resultID string) {
	r.stopSpinner()
	r.writeln("")
	msg := fmt.Sprintf("%s Visualization ready: customs viz %s", IconChart, resultID)
	r.writeln(Styles.Subtitle.Render(msg))
}

func (r *terminalStreamRenderer) Done() {
	r.stopSpinner()
	r.writeln("")
}

func (r *terminalStreamRenderer) StreamError(message string) {
	r.stopSpinner()
	if r.gotToken {
		r.writeln("")
	}
	r.writeln(Styles.Error.Render(fmt.Sprintf("%s %s", IconError, message)))
}

func (r *terminalStreamRenderer) Finalize() {
	r.stopSpinner()
	r.gotToken = false
	r.gotSQL = false
	r.writeln("")
}

func (r *terminalStreamRenderer) stopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

func (r *terminalStreamRenderer) write(s string) {
	_, _ = fmt.Fprint(r.out, s)
}

func (r *terminalStreamRenderer) writeln(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// =============================================================================
// MACHINE RENDERER
// =============================================================================

// machineStreamRenderer emits one parseable line per phase for scripts and CI.
// Token content is buffered and emitted as a single ANSWER line on completion
// so downstream tools never see partial text.
type machineStreamRenderer struct {
	out    io.Writer
	answer strings.Builder
}

var _ StreamRenderer = (*machineStreamRenderer)(nil)

func (r *machineStreamRenderer) QueryStart(question string) {
	_, _ = fmt.Fprintf(r.out, "QUERY_START: %s\n", question)
}

func (r *machineStreamRenderer) Metadata(sql string, rows int, resultID string) {
	if sql != "" {
		_, _ = fmt.Fprintf(r.out, "SQL: %s\n", strings.ReplaceAll(strings.TrimSpace(sql), "\n", " "))
	}
	if rows > 0 {
		_, _ = fmt.Fprintf(r.out, "ROWS: %d\n", rows)
	}
	if resultID != "" {
		_, _ = fmt.Fprintf(r.out, "RESULT_ID: %s\n", resultID)
	}
}

func (r *machineStreamRenderer) Token(content string) {
	r.answer.WriteString(content)
}

func (r *machineStreamRenderer) VisualizationReady(resultID string) {
	_, _ = fmt.Fprintf(r.out, "VIZ_READY: %s\n", resultID)
}

func (r *machineStreamRenderer) Done() {
	_, _ = fmt.Fprintf(r.out, "ANSWER: %s\n", strings.ReplaceAll(r.answer.String(), "\n", " "))
	_, _ = fmt.Fprintln(r.out, "QUERY_END: ok")
}

func (r *machineStreamRenderer) StreamError(message string) {
	if r.answer.Len() > 0 {
		_, _ = fmt.Fprintf(r.out, "PARTIAL: %s\n", strings.ReplaceAll(r.answer.String(), "\n", " "))
	}
	_, _ = fmt.Fprintf(r.out, "QUERY_END: error %s\n", message)
}

func (r *machineStreamRenderer) Finalize() {
	r.answer.Reset()
}

// =============================================================================
// BUFFER RENDERER
// =============================================================================

// BufferStreamRenderer records every call for assertions in tests.
type BufferStreamRenderer struct {
	Calls  []string
	Answer strings.Builder
}

var _ StreamRenderer = (*BufferStreamRenderer)(nil)

func (r *BufferStreamRenderer) QueryStart(question string) {
	r.Calls = append(r.Calls, "start:"+question)
}

func (r *BufferStreamRenderer) Metadata(sql string, rows int, resultID string) {
	r.Calls = append(r.Calls, fmt.Sprintf("metadata:%d:%s", rows, resultID))
}

func (r *BufferStreamRenderer) Token(content string) {
	r.Answer.WriteString(content)
	r.Calls = append(r.Calls, "token")
}

func (r *BufferStreamRenderer) VisualizationReady(resultID string) {
	r.Calls = append(r.Calls, "viz:"+resultID)
}

func (r *BufferStreamRenderer) Done() {
	r.Calls = append(r.Calls, "done")
}

func (r *BufferStreamRenderer) StreamError(message string) {
	r.Calls = append(r.Calls, "error:"+message)
}

func (r *BufferStreamRenderer) Finalize() {
	r.Calls = append(r.Calls, "finalize")
}
