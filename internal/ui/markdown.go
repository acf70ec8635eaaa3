package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// RenderMarkdown renders md for a terminal of the given width. On failure the
// source text is returned.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Answer formats a model answer for stdout: rendered markdown on a terminal,
// the raw text otherwise.
func Answer(md string) string {
	if !IsTerminal() {
		return md
	}
	return RenderMarkdown(md, 100)
}
