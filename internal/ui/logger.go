package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger wraps the charmbracelet logger to add a success level
type Logger struct {
	*log.Logger
}

// NewLogger wraps l
func NewLogger(l *log.Logger) *Logger {
	return &Logger{Logger: l}
}

var successLabel = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("86")).
	SetString("DONE ")

// Success prints msg with a green label; it is hidden at error level
func (l *Logger) Success(msg interface{}, keyvals ...interface{}) {
	l.Helper()
	if l.GetLevel() > log.InfoLevel {
		return
	}
	// Print skips the INFO prefix
	l.Print(fmt.Sprintf("%s %v", successLabel.String(), msg), keyvals...)
}
