package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mydehq/anitrack/internal/types"
)

// loadedMsg delivers the candidate list to the picker.
type loadedMsg struct {
	items []types.AnimeSummary
	err   error
}

// animePicker is a Bubble Tea model that loads candidates in the background
// and lets the user filter and choose one.
type animePicker struct {
	load     func() ([]types.AnimeSummary, error)
	title    string
	items    []types.AnimeSummary
	err      error
	cursor   int
	selected *types.AnimeSummary
	loaded   bool
	aborted  bool
	filter   string

	// Visible window for scrolling
	windowSize int

	spinner spinner.Model
}

func newAnimePicker(title string, load func() ([]types.AnimeSummary, error)) animePicker {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleCommand

	return animePicker{
		load:       load,
		title:      title,
		windowSize: 12,
		spinner:    s,
	}
}

func (m animePicker) loadCmd() tea.Msg {
	items, err := m.load()
	return loadedMsg{items: items, err: err}
}

func (m animePicker) Init() tea.Cmd {
	return tea.Batch(m.loadCmd, m.spinner.Tick)
}

func (m animePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case loadedMsg:
		m.loaded = true
		m.items = msg.items
		m.err = msg.err
		if m.err != nil {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		filtered := m.filtered()

		switch msg.Type {
		case tea.KeyCtrlC:
			m.aborted = true
			interceptedKey = "ctrl+c"
			return m, tea.Quit

		case tea.KeyEsc:
			m.aborted = true
			interceptedKey = "esc"
			return m, tea.Quit

		case tea.KeyEnter:
			if m.cursor < len(filtered) {
				item := filtered[m.cursor]
				m.selected = &item
				return m, tea.Quit
			}

		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}

		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(filtered)-1 {
				m.cursor++
			}

		case tea.KeyRunes, tea.KeySpace:
			m.filter += string(msg.Runes)
			m.cursor = 0

		case tea.KeyBackspace:
			if r := []rune(m.filter); len(r) > 0 {
				m.filter = string(r[:len(r)-1])
				m.cursor = 0
			}
		}
	}

	return m, nil
}

func (m animePicker) View() string {
	var b strings.Builder

	filtered := m.filtered()
	var status string
	if m.loaded {
		status = StyleDim.Render(fmt.Sprintf("  %d titles", len(m.items)))
	} else {
		status = StyleCommand.Render(fmt.Sprintf("  %s loading…", m.spinner.View()))
	}
	b.WriteString(StyleHeader.Render(m.title) + status + "\n")

	if m.filter != "" {
		b.WriteString(StyleDim.Render("  filter: ") + StyleCommand.Render(m.filter) + "\n")
	}
	b.WriteString("\n")

	if len(filtered) == 0 {
		if m.loaded {
			b.WriteString(StyleDim.Render("  Nothing matches.") + "\n")
		}
	} else {
		start, end := visibleWindow(m.cursor, len(filtered), m.windowSize)

		if start > 0 {
			b.WriteString(StyleDim.Render(fmt.Sprintf("  ↑ %d more", start)) + "\n")
		}

		selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(colorCommand)
		for i := start; i < end; i++ {
			a := filtered[i]
			tag := StyleDim.Render(fmt.Sprintf(" [%d eps]", a.EpisodeCount))
			if i == m.cursor {
				b.WriteString("  " + selectedStyle.Render("> "+a.Title) + tag + "\n")
			} else {
				b.WriteString("    " + a.Title + tag + "\n")
			}
		}

		if end < len(filtered) {
			b.WriteString(StyleDim.Render(fmt.Sprintf("  ↓ %d more", len(filtered)-end)) + "\n")
		}
	}

	b.WriteString("\n")
	helpText := StyleDim.Render("  ↑/↓ navigate • enter select • esc back • ctrl+c quit")
	if m.filter == "" {
		helpText = StyleDim.Render("  ↑/↓ navigate • ") + StyleCommand.Render("type to filter") + StyleDim.Render(" • enter select • esc back")
	}
	b.WriteString(helpText + "\n")

	return b.String()
}

// filtered returns items whose title or slug fuzzily matches the filter.
func (m animePicker) filtered() []types.AnimeSummary {
	if m.filter == "" {
		return m.items
	}
	var out []types.AnimeSummary
	for _, a := range m.items {
		if fuzzy.MatchNormalizedFold(m.filter, a.Title) || fuzzy.MatchFold(m.filter, a.Slug) {
			out = append(out, a)
		}
	}
	return out
}

// visibleWindow centers cursor in a window of size rows out of total.
func visibleWindow(cursor, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

// PickAnime runs load behind a spinner and lets the user choose one of the
// results. It returns nil when nothing was loaded, and ErrUserBack or
// ErrUserQuit when the user leaves the picker.
func PickAnime(title string, load func() ([]types.AnimeSummary, error)) (*types.AnimeSummary, error) {
	interceptedKey = ""
	p := tea.NewProgram(newAnimePicker(title, load), tea.WithFilter(formFilter))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("picker failed: %w", err)
	}

	m := final.(animePicker)
	switch {
	case m.err != nil:
		return nil, m.err
	case m.aborted && interceptedKey == "ctrl+c":
		return nil, ErrUserQuit
	case m.aborted:
		return nil, ErrUserBack
	}
	return m.selected, nil
}
