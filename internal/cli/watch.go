package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/api"
	internallog "github.com/mydehq/anitrack/internal/logger"
	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/ui"
	"github.com/mydehq/anitrack/internal/util"
)

var flagUnwatch bool

var watchCmd = &cobra.Command{
	Use:   "watch <title|id> [ranges]",
	Short: "Mark episodes as watched",
	Long: `Mark episodes as watched for --user.

Ranges look like "1-3,5". Without ranges on a terminal, a checklist of every
episode opens with the watched ones already ticked.`,
	Example: `  anitrack watch "One Piece" 1-12
  anitrack watch naruto 26,27 --unwatch
  anitrack watch bleach`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ranges := ""
		if len(args) == 2 {
			ranges = args[1]
		}
		runWatch(cmd.Context(), args[0], ranges)
	},
}

func init() {
	RootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVarP(&flagUnwatch, "unwatch", "U", false, "Clear the watched mark instead")
}

func runWatch(ctx context.Context, query, ranges string) {
	user := requireUser()

	app := openApp(ctx)
	defer app.Close()

	anime := resolveAnime(ctx, app, query)

	if ranges == "" {
		if !internallog.IsTerminal() {
			fatal("No episodes given", errors.New("pass ranges like 1-3,5 when not on a terminal"))
		}
		runWatchForm(ctx, app, anime, user)
		return
	}

	numbers, err := util.ParseRanges(ranges)
	if err != nil {
		fatal("Invalid ranges", err)
	}
	if len(numbers) == 0 {
		fatal("Invalid ranges", fmt.Errorf("%q selects no episodes", ranges))
	}

	// refresh first so newly aired episodes can be marked
	if _, err := app.RefreshEpisodesIfStale(ctx, anime); err != nil {
		fatal("Failed to refresh", err)
	}

	n, err := app.MarkRange(ctx, user, anime.ID, numbers, !flagUnwatch)
	if err != nil {
		var missing types.ErrEpisodeNotFound
		if errors.As(err, &missing) {
			fatal("Unknown episode", fmt.Errorf("%s has %d episodes: %w", anime.Slug, anime.EpisodeCount, err))
		}
		fatal("Failed to update watch state", err)
	}

	verb := "Marked watched"
	if flagUnwatch {
		verb = "Marked unwatched"
	}
	logger.Success(fmt.Sprintf("%s: %s %s", ui.StyleHeader.Render(verb), ui.StylePath.Render(anime.Slug),
		ui.StylePattern.Render(util.FormatRanges(numbers))), "episodes", n)
	reportProgress(ctx, app, anime, user)
}

func runWatchForm(ctx context.Context, app *api.App, anime *types.Anime, user string) {
	views, err := app.Episodes(ctx, anime.ID, user)
	if err != nil {
		fatal("Failed to list episodes", err)
	}
	if len(views) == 0 {
		logger.Info("No episodes cached", "slug", anime.Slug)
		return
	}

	changes, err := ui.RunWatchForm(anime.Title, views)
	if ui.IsAbort(err) {
		cancelled()
	}
	if err != nil {
		fatal("Form failed", err)
	}
	if changes.Empty() {
		logger.Info("Nothing changed")
		return
	}

	for _, id := range changes.Mark {
		if err := app.SetWatched(ctx, user, id, true); err != nil {
			fatal("Failed to update watch state", err)
		}
	}
	for _, id := range changes.Unmark {
		if err := app.SetWatched(ctx, user, id, false); err != nil {
			fatal("Failed to update watch state", err)
		}
	}

	logger.Success(ui.StyleHeader.Render("Watch state saved"),
		"marked", len(changes.Mark), "unmarked", len(changes.Unmark))
	reportProgress(ctx, app, anime, user)
}

func reportProgress(ctx context.Context, app *api.App, anime *types.Anime, user string) {
	watched, total, err := app.Progress(ctx, anime.ID, user)
	if err != nil {
		logger.Warn("Failed to read progress", "error", err)
		return
	}
	logger.Info(fmt.Sprintf("%s %s", ui.StyleHeader.Render("Progress"),
		ui.StylePattern.Render(fmt.Sprintf("%d/%d", watched, total))), "user", user)
}
