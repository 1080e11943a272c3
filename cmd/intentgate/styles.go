package main

import (
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	lightAccent = lipgloss.Color("#101F38")
	darkAccent  = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#7a8699")
	success     = lipgloss.Color("#8BC34A")
	warning     = lipgloss.Color("#FFC107")
	destructive = lipgloss.Color("#e53935")
)

// Styles holds the terminal styles for the chat and resolve commands.
type Styles struct {
	Title   lipgloss.Style
	Prompt  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles creates styles for a dark or light terminal.
func NewStyles(dark bool) Styles {
	accent := lightAccent
	if dark {
		accent = darkAccent
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1),
		Prompt: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(success).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(warning),
		Error: lipgloss.NewStyle().
			Foreground(destructive).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
	}
}

// plainStyles renders text unchanged, for pipes and tests.
func plainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{Title: s, Prompt: s, Success: s, Warning: s, Error: s, Muted: s}
}

// DetectDark reports whether to use the dark palette. INTENTGATE_DARK_MODE
// overrides terminal detection.
func DetectDark() bool {
	if v := os.Getenv("INTENTGATE_DARK_MODE"); v != "" {
		dark, err := strconv.ParseBool(v)
		return err == nil && dark
	}
	return lipgloss.HasDarkBackground()
}
