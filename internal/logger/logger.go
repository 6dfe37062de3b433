// Package logger builds the styled charmbracelet loggers used across anitrack.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// New returns a logger writing to w at level with anitrack's level labels
func New(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{Level: level})
	ConfigureStyles(l)
	return l
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ConfigureStyles applies the colored, fixed-width level labels to l
func ConfigureStyles(l *log.Logger) {
	styles := log.DefaultStyles()

	styles.Levels[log.DebugLevel] = levelStyle("DEBUG", "63")
	styles.Levels[log.InfoLevel] = levelStyle("INFO ", "86")
	styles.Levels[log.WarnLevel] = levelStyle("WARN ", "192")
	styles.Levels[log.ErrorLevel] = levelStyle("ERROR", "204")

	l.SetStyles(styles)
}

func levelStyle(label, color string) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(label).
		Bold(true).
		Foreground(lipgloss.Color(color))
}

// Level picks the CLI log level: quiet wins over verbose, and both win over
// the configured fallback
func Level(quiet, verbose bool, fallback log.Level) log.Level {
	switch {
	case quiet:
		return log.ErrorLevel
	case verbose:
		return log.DebugLevel
	default:
		return fallback
	}
}

// IsTerminal reports whether stdout is an interactive terminal
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
