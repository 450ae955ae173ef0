// Package term provides color state and terminal detection.
//
// Styles are package-level because logging and display both render with
// them. [Configure] sets them once during startup; while colors are
// disabled [Paint] returns its input unchanged.
package term

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/backmassage/pngcrunch/internal/config"
)

// renderer is bound to stdout; its profile is forced by Configure so that
// --color works when stdout is piped.
var renderer = lipgloss.NewRenderer(os.Stdout)

var enabled bool

// Level styles. Zero values until Configure runs.
var (
	Red     lipgloss.Style
	Green   lipgloss.Style
	Yellow  lipgloss.Style
	Orange  lipgloss.Style
	Blue    lipgloss.Style
	Cyan    lipgloss.Style
	Magenta lipgloss.Style
)

// Configure resolves the color mode and builds the package-level styles.
// Call once during startup (from [logging.NewLogger]).
func Configure(mode config.ColorMode) {
	enabled = resolve(mode)
	if enabled {
		renderer.SetColorProfile(termenv.ANSI256)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}

	bold := func(c string) lipgloss.Style {
		return renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(c))
	}
	Red = bold("9")
	Green = bold("10")
	Yellow = bold("11")
	Orange = bold("208")
	Blue = bold("12")
	Cyan = bold("14")
	Magenta = bold("13")
}

// Enabled reports whether colors are currently active.
func Enabled() bool { return enabled }

// Paint renders text with s when colors are enabled.
func Paint(s lipgloss.Style, text string) string {
	if !enabled {
		return text
	}
	return s.Render(text)
}

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
