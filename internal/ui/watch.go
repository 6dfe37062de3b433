package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/mydehq/anitrack/internal/types"
)

// WatchChanges is the difference between the stored and the chosen watch state
type WatchChanges struct {
	Mark   []string
	Unmark []string
}

// Empty reports whether nothing changed
func (c WatchChanges) Empty() bool {
	return len(c.Mark) == 0 && len(c.Unmark) == 0
}

// RunWatchForm shows every episode with the watched ones pre-selected and
// returns the episode IDs whose state the user toggled.
func RunWatchForm(title string, views []types.EpisodeView) (WatchChanges, error) {
	options := make([]huh.Option[string], len(views))
	var chosen []string
	for i, v := range views {
		label := fmt.Sprintf("%4d  %s  %s", v.Number, v.Title, RenderClass(v.Classification))
		options[i] = huh.NewOption(label, v.ID).Selected(v.Watched)
		if v.Watched {
			chosen = append(chosen, v.ID)
		}
	}

	err := RunForm(huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Description("space toggles an episode").
				Options(options...).
				Height(16).
				Value(&chosen),
		),
	).WithTheme(Theme()).WithKeyMap(KeyMap()))
	if err != nil {
		return WatchChanges{}, err
	}

	return diffWatched(views, chosen), nil
}

func diffWatched(views []types.EpisodeView, chosen []string) WatchChanges {
	selected := make(map[string]bool, len(chosen))
	for _, id := range chosen {
		selected[id] = true
	}

	var changes WatchChanges
	for _, v := range views {
		switch {
		case selected[v.ID] && !v.Watched:
			changes.Mark = append(changes.Mark, v.ID)
		case !selected[v.ID] && v.Watched:
			changes.Unmark = append(changes.Unmark, v.ID)
		}
	}
	return changes
}
