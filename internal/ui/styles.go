package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mydehq/anitrack/internal/types"
)

var (
	// Adaptive Color definitions
	colorHeader = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#00af00", ANSI256: "34", ANSI: "2"},
		Light: lipgloss.CompleteColor{TrueColor: "#008700", ANSI256: "28", ANSI: "2"},
	}
	colorCommand = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#5fffff", ANSI256: "86", ANSI: "6"},
		Light: lipgloss.CompleteColor{TrueColor: "#008787", ANSI256: "30", ANSI: "6"},
	}
	colorPath = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#5f5fff", ANSI256: "63", ANSI: "4"},
		Light: lipgloss.CompleteColor{TrueColor: "#0000af", ANSI256: "19", ANSI: "4"},
	}
	colorPattern = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#d7ff87", ANSI256: "192", ANSI: "11"},
		Light: lipgloss.CompleteColor{TrueColor: "#5f8700", ANSI256: "64", ANSI: "10"},
	}
	colorDim = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#bdbdbd", ANSI256: "250", ANSI: "8"},
		Light: lipgloss.CompleteColor{TrueColor: "#626262", ANSI256: "241", ANSI: "0"},
	}
	colorFlag = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#ff5faf", ANSI256: "204", ANSI: "13"},
		Light: lipgloss.CompleteColor{TrueColor: "#af005f", ANSI256: "125", ANSI: "5"},
	}
	colorMixed = lipgloss.CompleteAdaptiveColor{
		Dark:  lipgloss.CompleteColor{TrueColor: "#ffaf5f", ANSI256: "215", ANSI: "3"},
		Light: lipgloss.CompleteColor{TrueColor: "#af5f00", ANSI256: "130", ANSI: "3"},
	}

	// Exported Styles for CLI and TUI
	StyleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	StyleCommand = lipgloss.NewStyle().Bold(true).Foreground(colorCommand)
	StylePath    = lipgloss.NewStyle().Foreground(colorPath)
	StylePattern = lipgloss.NewStyle().Foreground(colorPattern)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleFlag    = lipgloss.NewStyle().Italic(true).Foreground(colorFlag)

	// StyleBanner is the title banner for interactive screens
	StyleBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCommand).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorHeader).
			Padding(0, 4).
			Align(lipgloss.Center)

	classStyles = map[types.Classification]lipgloss.Style{
		types.ClassCanon:   lipgloss.NewStyle().Foreground(colorHeader),
		types.ClassMixed:   lipgloss.NewStyle().Foreground(colorMixed),
		types.ClassFiller:  lipgloss.NewStyle().Bold(true).Foreground(colorFlag),
		types.ClassUnknown: StyleDim,
	}
)

// Theme returns the Catppuccin theme for huh forms.
func Theme() *huh.Theme {
	return huh.ThemeCatppuccin()
}

func KeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()

	// Map both to Quit; the bubbletea filter tells them apart
	km.Quit.SetKeys("esc", "ctrl+c")
	km.Quit.SetHelp("ctrl+c", "quit")

	km.Select.Submit.SetHelp("enter", "choose • esc: back • ctrl+c: quit")
	km.MultiSelect.Submit.SetHelp("enter", "confirm • esc: back • ctrl+c: quit")
	km.Confirm.Submit.SetHelp("enter", "confirm • esc: back • ctrl+c: quit")
	km.Note.Submit.SetHelp("enter", "submit • esc: back • ctrl+c: quit")

	return km
}

// ErrUserBack is returned when the user presses esc to leave a form.
var ErrUserBack = errors.New("user navigated back")

// ErrUserQuit is returned when the user presses ctrl+c in a form.
var ErrUserQuit = errors.New("user quit")

// interceptedKey tracks the last key that triggered an abort (esc vs ctrl+c).
var interceptedKey string

// formFilter is a Bubble Tea filter that intercepts esc and ctrl+c to distinguish them.
func formFilter(m tea.Model, msg tea.Msg) tea.Msg {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEsc:
			interceptedKey = "esc"
		case tea.KeyCtrlC:
			interceptedKey = "ctrl+c"
		}
	}
	return msg
}

// RunForm runs a huh form with the esc/ctrl+c filter installed.
func RunForm(f *huh.Form) error {
	interceptedKey = ""
	return HandleAbort(f.WithProgramOptions(tea.WithFilter(formFilter)).Run())
}

// HandleAbort maps huh.ErrUserAborted to ErrUserBack or ErrUserQuit
// depending on the key that ended the form.
func HandleAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		if interceptedKey == "ctrl+c" {
			return ErrUserQuit
		}
		return ErrUserBack
	}
	return err
}

// IsAbort reports whether err came from the user leaving a form
func IsAbort(err error) bool {
	return errors.Is(err, ErrUserBack) || errors.Is(err, ErrUserQuit)
}

// ClearAndPrintBanner clears the terminal and prints a titled header.
func ClearAndPrintBanner(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println()
	fmt.Println(StyleBanner.Render(title))
	fmt.Println()
}

// RenderClass colors a classification label
func RenderClass(c types.Classification) string {
	style, ok := classStyles[c]
	if !ok {
		style = StyleDim
	}
	return style.Render(string(c))
}

// HighlightYAML applies simple syntax highlighting to a YAML string for TUI display.
func HighlightYAML(input string) string {
	keyStyle := lipgloss.NewStyle().Foreground(colorCommand).Bold(true)
	valStyle := lipgloss.NewStyle().Foreground(colorPattern)

	lines := strings.Split(input, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			lines[i] = StyleDim.Render(line)
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		comment := ""
		if idx := strings.Index(val, " #"); idx >= 0 {
			val, comment = val[:idx], StyleDim.Render(val[idx:])
		}

		if strings.TrimSpace(val) == "" {
			lines[i] = keyStyle.Render(key) + ":" + comment
		} else {
			lines[i] = keyStyle.Render(key) + ":" + valStyle.Render(val) + comment
		}
	}
	return strings.Join(lines, "\n")
}
