// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel selects how much decoration the CLI emits. Analysts
// run the tool interactively at full decoration; audit scripts pipe it
// and get machine-parseable lines instead.
type PersonalityLevel string

const (
	// PersonalityFull renders banners, boxes, and the spinner set.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard keeps colors and icons without the banners.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal keeps icons only.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits stable prefixed lines for scripting.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality is the process-wide output configuration.
type Personality struct {
	// Level selects the decoration tier.
	Level PersonalityLevel

	// Theme names the color theme (reserved for future use).
	Theme string

	// ShowTips controls the suggested-question list after an upload.
	ShowTips bool
}

// DefaultPersonality returns the settings used before any config,
// flag, or environment override is applied.
func DefaultPersonality() Personality {
	return Personality{
		Level:    PersonalityFull,
		Theme:    "default",
		ShowTips: true,
	}
}

var (
	personalityMu      sync.RWMutex
	currentPersonality = DefaultPersonality()
)

// GetPersonality returns the current settings.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the current settings.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel changes only the decoration tier.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel maps a user-supplied string to a level.
// Unrecognized values fall back to standard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(s) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level for this process. Precedence:
// CUSTOMS_PERSONALITY, then machine mode when stdout is not a
// terminal, then full.
func InitPersonality() {
	if env := os.Getenv("CUSTOMS_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !stdoutIsTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive reports whether prompts and confirmations may block on
// the user.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && stdoutIsTerminal()
}

// ShouldShowProgress reports whether spinners and progress lines are
// wanted.
func ShouldShowProgress() bool {
	return GetPersonality().Level != PersonalityMachine
}

// ShouldShowColors reports whether ANSI color is wanted. The NO_COLOR
// convention is honored regardless of level.
func ShouldShowColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return GetPersonality().Level != PersonalityMachine
}
