package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/mydehq/anitrack/internal/types"
)

func TestDiffWatched(t *testing.T) {
	views := []types.EpisodeView{
		{Episode: types.Episode{ID: "a"}, Watched: true},
		{Episode: types.Episode{ID: "b"}, Watched: false},
		{Episode: types.Episode{ID: "c"}, Watched: true},
	}

	got := diffWatched(views, []string{"a", "b"})
	if len(got.Mark) != 1 || got.Mark[0] != "b" {
		t.Errorf("Mark = %v, want [b]", got.Mark)
	}
	if len(got.Unmark) != 1 || got.Unmark[0] != "c" {
		t.Errorf("Unmark = %v, want [c]", got.Unmark)
	}

	if !diffWatched(views, []string{"a", "c"}).Empty() {
		t.Error("unchanged selection should be empty")
	}
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		cursor, total, size int
		start, end          int
	}{
		{0, 5, 12, 0, 5},
		{0, 30, 12, 0, 12},
		{15, 30, 12, 9, 21},
		{29, 30, 12, 18, 30},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.cursor, tt.total, tt.size)
		if start != tt.start || end != tt.end {
			t.Errorf("visibleWindow(%d, %d, %d) = %d, %d; want %d, %d",
				tt.cursor, tt.total, tt.size, start, end, tt.start, tt.end)
		}
	}
}

func TestAnimePicker(t *testing.T) {
	items := []types.AnimeSummary{
		{ID: "1", Title: "Naruto", Slug: "naruto"},
		{ID: "2", Title: "Naruto Shippuden", Slug: "naruto-shippuden"},
		{ID: "3", Title: "One Piece", Slug: "one-piece"},
	}
	var m tea.Model = newAnimePicker("Pick", func() ([]types.AnimeSummary, error) { return items, nil })

	m, _ = m.Update(loadedMsg{items: items})
	for _, r := range "shipp" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if got := m.(animePicker).filtered(); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("filtered = %v, want Naruto Shippuden", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if m.(animePicker).filter != "ship" {
		t.Errorf("filter = %q after backspace", m.(animePicker).filter)
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should quit")
	}
	if sel := m.(animePicker).selected; sel == nil || sel.ID != "2" {
		t.Errorf("selected = %v", sel)
	}
	if !strings.Contains(m.View(), "Naruto Shippuden") {
		t.Error("view should list the match")
	}
}

func TestAnimePickerLoadError(t *testing.T) {
	boom := errors.New("boom")
	var m tea.Model = newAnimePicker("Pick", nil)
	m, cmd := m.Update(loadedMsg{err: boom})
	if cmd == nil || !errors.Is(m.(animePicker).err, boom) {
		t.Error("a load error should stop the picker")
	}
}

func TestHandleAbort(t *testing.T) {
	interceptedKey = "esc"
	if !errors.Is(HandleAbort(huh.ErrUserAborted), ErrUserBack) {
		t.Error("esc should map to ErrUserBack")
	}
	interceptedKey = "ctrl+c"
	if !errors.Is(HandleAbort(huh.ErrUserAborted), ErrUserQuit) {
		t.Error("ctrl+c should map to ErrUserQuit")
	}
	other := errors.New("other")
	if HandleAbort(other) != other {
		t.Error("other errors pass through")
	}
	if !IsAbort(ErrUserBack) || IsAbort(other) {
		t.Error("IsAbort mismatch")
	}
}

func TestRenderTable(t *testing.T) {
	if RenderTable(nil, nil, nil) != "" {
		t.Error("no headers should render nothing")
	}
	out := RenderTable([]string{"A", "B"}, [][]string{{"x"}}, []Align{AlignRight})
	if !strings.Contains(out, "A") || !strings.Contains(out, "x") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestHighlightYAMLKeepsText(t *testing.T) {
	out := HighlightYAML("# comment\nlog:\n  level: info # note\n")
	for _, want := range []string{"comment", "log", "level", "info", "note"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
