// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transcript maintains the render-ready conversation history for
// a query session.
//
// The transcript is the single source of truth for what the UI shows.
// Stream events mutate exactly one open assistant message at a time; all
// other messages are immutable once appended. Content is markdown.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ErrNoStreamingMessage is returned when a stream mutation arrives with
// no open assistant placeholder to apply it to.
var ErrNoStreamingMessage = errors.New("no streaming message open")

// Message is one render-ready transcript entry.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`

	// Role is who authored the message.
	Role Role `json:"role"`

	// Content is markdown, assembled from stream events for assistant
	// messages.
	Content string `json:"content"`

	// IsStreaming is true while tokens are still being appended.
	IsStreaming bool `json:"is_streaming,omitempty"`

	// ResultID links the message to a result artifact, when announced.
	ResultID string `json:"result_id,omitempty"`

	// HasVisualization is true once a chart is available for ResultID.
	HasVisualization bool `json:"has_visualization,omitempty"`

	// CreatedAt is when the message was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is a thread-safe ordered message list.
//
// The open assistant placeholder keeps its metadata header (SQL block,
// row count) separate from the streamed narration body, so a duplicate
// metadata event rewrites the header without disturbing narration.
// Last write wins per metadata field.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message

	// Open streaming message state; openIdx is -1 when none is open.
	openIdx  int
	openSQL  string
	openRows int
	gotRows  bool
	body     strings.Builder
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{openIdx: -1}
}

// AppendUser appends an immutable user message.
func (t *Transcript) AppendUser(content string) Message {
	return t.append(RoleUser, content)
}

// AppendSystem appends an immutable system message.
func (t *Transcript) AppendSystem(content string) Message {
	return t.append(RoleSystem, content)
}

func (t *Transcript) append(role Role, content string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// OpenAssistant appends an empty assistant placeholder with the
// streaming flag set and makes it the target of subsequent stream
// mutations. An already-open placeholder is finalized first.
func (t *Transcript) OpenAssistant() Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openIdx >= 0 {
		t.finalizeLocked()
	}

	msg := Message{
		ID:          uuid.New().String(),
		Role:        RoleAssistant,
		IsStreaming: true,
		CreatedAt:   time.Now(),
	}
	t.messages = append(t.messages, msg)
	t.openIdx = len(t.messages) - 1
	t.openSQL = ""
	t.openRows = 0
	t.gotRows = false
	t.body.Reset()
	return msg
}

// AppendToken appends narration text to the open placeholder.
func (t *Transcript) AppendToken(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openIdx < 0 {
		return ErrNoStreamingMessage
	}
	t.body.WriteString(token)
	t.renderLocked()
	return nil
}

// ApplyMetadata records the generated SQL and row count on the open
// placeholder and annotates it with the result artifact id. hasRows
// says whether the frame carried a row count at all, so a zero-row
// result still renders its header while the legacy protocol's
// SQL-only frame leaves the count untouched. Absent fields keep the
// previous value, which makes the legacy split frames accumulate and
// repeated structured metadata last-write-wins.
func (t *Transcript) ApplyMetadata(sql string, rows int, hasRows bool, resultID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openIdx < 0 {
		return ErrNoStreamingMessage
	}
	if sql != "" {
		t.openSQL = sql
	}
	if hasRows {
		t.openRows = rows
		t.gotRows = true
	}
	if resultID != "" {
		t.messages[t.openIdx].ResultID = resultID
	}
	t.renderLocked()
	return nil
}

// Finalize clears the streaming flag on the open placeholder. Safe to
// call when nothing is open.
func (t *Transcript) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizeLocked()
}

// Fail writes the error text into the open placeholder, below any
// narration already streamed, then closes it. The failed query stays a
// single assistant message. With nothing open the error is appended as
// its own assistant message.
func (t *Transcript) Fail(errContent string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openIdx >= 0 {
		if t.body.Len() > 0 {
			t.body.WriteString("\n\n")
		}
		t.body.WriteString(errContent)
		idx := t.openIdx
		t.finalizeLocked()
		return t.messages[idx]
	}

	msg := Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   errContent,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// MarkVisualization flags the assistant message linked to resultID as
// having a chart available. When no message carries the id, the most
// recent assistant message is flagged; this covers backends that only
// announce the id in the visualization_ready frame. Returns false when
// the transcript has no assistant message at all, which makes a late
// frame after a session reset a no-op.
func (t *Transcript) MarkVisualization(resultID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleAssistant && t.messages[i].ResultID == resultID {
			t.messages[i].HasVisualization = true
			return true
		}
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleAssistant {
			t.messages[i].HasVisualization = true
			if resultID != "" {
				t.messages[i].ResultID = resultID
			}
			return true
		}
	}
	return false
}

// Reset clears all messages and open streaming state.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.openIdx = -1
	t.openSQL = ""
	t.openRows = 0
	t.gotRows = false
	t.body.Reset()
}

// Messages returns a snapshot copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// finalizeLocked closes the open placeholder. Callers must hold mu.
func (t *Transcript) finalizeLocked() {
	if t.openIdx < 0 {
		return
	}
	t.renderLocked()
	t.messages[t.openIdx].IsStreaming = false
	t.openIdx = -1
	t.openSQL = ""
	t.openRows = 0
	t.gotRows = false
	t.body.Reset()
}

// renderLocked rebuilds the open message content from the metadata
// header and narration body. Callers must hold mu.
func (t *Transcript) renderLocked() {
	var b strings.Builder
	if t.openSQL != "" {
		fmt.Fprintf(&b, "**SQL Query:**\n```sql\n%s\n```\n\n", t.openSQL)
	}
	if t.gotRows {
		fmt.Fprintf(&b, "**Rows Retrieved:** %d\n\n**Analysis:**\n\n", t.openRows)
	}
	b.WriteString(t.body.String())
	t.messages[t.openIdx].Content = b.String()
}
