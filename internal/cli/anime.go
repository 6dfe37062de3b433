package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/api"
	internallog "github.com/mydehq/anitrack/internal/logger"
	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/ui"
)

var (
	flagNoPrefetch bool
	flagListQuery  string
	flagListLimit  int
	flagListOffset int
)

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Cache an anime by title and show its summary",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd.Context(), strings.Join(args, " "))
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <title|id>",
	Short: "Re-read an anime's episodes from upstream",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRefresh(cmd.Context(), strings.Join(args, " "))
	},
}

var episodesCmd = &cobra.Command{
	Use:     "episodes <title|id>",
	Aliases: []string{"eps"},
	Short:   "List an anime's episodes with filler and watch status",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runEpisodes(cmd.Context(), strings.Join(args, " "))
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cached anime",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runList(cmd.Context())
	},
}

func init() {
	RootCmd.AddCommand(searchCmd, refreshCmd, episodesCmd, listCmd)

	searchCmd.Flags().BoolVarP(&flagNoPrefetch, "no-prefetch", "n", false, "Only create the record, skip fetching episodes")
	listCmd.Flags().StringVarP(&flagListQuery, "query", "Q", "", "Fuzzy filter on titles")
	listCmd.Flags().IntVarP(&flagListLimit, "limit", "l", 20, "Page size")
	listCmd.Flags().IntVarP(&flagListOffset, "offset", "o", 0, "Number of titles to skip")
}

func runSearch(ctx context.Context, title string) {
	app := openApp(ctx)
	defer app.Close()

	anime, err := app.EnsureAnimeCached(ctx, title, !flagNoPrefetch)
	if err != nil {
		fatal("Failed to cache anime", err)
	}

	printAnime(anime)
	if !flagNoPrefetch && !anime.Refreshed() {
		logger.Warn("No upstream data for this title", "slug", anime.Slug, "source", app.SourceName())
	}
}

func runRefresh(ctx context.Context, query string) {
	app := openApp(ctx)
	defer app.Close()

	anime, res, err := app.Refresh(ctx, query)
	if err != nil {
		fatal("Failed to refresh", err)
	}

	if res.Changed {
		logger.Success(fmt.Sprintf("%s: %s", ui.StyleHeader.Render("Episodes updated"), ui.StylePath.Render(anime.Slug)),
			"count", res.Count)
	} else {
		logger.Info(fmt.Sprintf("%s: %s", ui.StyleHeader.Render("Up to date"), ui.StylePath.Render(anime.Slug)),
			"count", res.Count)
	}
}

func runEpisodes(ctx context.Context, query string) {
	app := openApp(ctx)
	defer app.Close()

	anime := resolveAnime(ctx, app, query)
	views, err := app.Episodes(ctx, anime.ID, flagUser)
	if err != nil {
		fatal("Failed to list episodes", err)
	}

	if len(views) == 0 {
		logger.Info("No episodes cached", "slug", anime.Slug)
		return
	}

	fmt.Println(ui.StyleHeader.Render(anime.Title))
	fmt.Println(ui.EpisodeTable(views))
	if flagUser != "" {
		printProgress(views)
	}
}

func runList(ctx context.Context) {
	app := openApp(ctx)
	defer app.Close()

	var (
		items []types.AnimeSummary
		total int
	)
	if flagListQuery != "" {
		found, err := app.Search(ctx, flagListQuery, 0)
		if err != nil {
			fatal("Failed to search", err)
		}
		total = len(found)
		items = pageOf(found, flagListOffset, flagListLimit)
	} else {
		page, err := app.List(ctx, types.ListQuery{Offset: flagListOffset, Limit: flagListLimit})
		if err != nil {
			fatal("Failed to list anime", err)
		}
		items, total = page.Items, page.Total
	}

	if total == 0 {
		logger.Info("No anime cached")
		return
	}

	fmt.Println(ui.AnimeTable(items))
	logger.Info(fmt.Sprintf("%s %s", ui.StyleHeader.Render("Showing"),
		ui.StyleDim.Render(fmt.Sprintf("%d of %d", len(items), total))))
}

// resolveAnime maps a title, slug or ID to one cached anime. Titles that are
// not cached yet are created lazily; ambiguous fuzzy matches open a picker
// on a terminal.
func resolveAnime(ctx context.Context, app *api.App, query string) *types.Anime {
	anime, err := app.Resolve(ctx, query)
	if err == nil {
		return anime
	}
	var notFound types.ErrAnimeNotFound
	if !errors.As(err, &notFound) {
		fatal("Failed to look up anime", err)
	}

	matches, err := app.Search(ctx, query, 0)
	if err != nil {
		fatal("Failed to search", err)
	}

	switch {
	case len(matches) == 1:
		return mustResolve(ctx, app, matches[0].ID)

	case len(matches) > 1 && internallog.IsTerminal():
		picked, err := ui.PickAnime("Select an anime", func() ([]types.AnimeSummary, error) {
			return matches, nil
		})
		if ui.IsAbort(err) || (err == nil && picked == nil) {
			cancelled()
		}
		if err != nil {
			fatal("Picker failed", err)
		}
		return mustResolve(ctx, app, picked.ID)

	case len(matches) > 1:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Slug
		}
		fatal("Ambiguous title", fmt.Errorf("%q matches %s", query, strings.Join(names, ", ")))
	}

	anime, err = app.EnsureAnimeCached(ctx, query, false)
	if err != nil {
		fatal("Failed to cache anime", err)
	}
	return anime
}

func mustResolve(ctx context.Context, app *api.App, id string) *types.Anime {
	anime, err := app.Resolve(ctx, id)
	if err != nil {
		fatal("Failed to load anime", err)
	}
	return anime
}

func printAnime(anime *types.Anime) {
	keyStyle := ui.StyleHeader.Width(15)

	fmt.Printf("%s %s\n", keyStyle.Render("Title:"), anime.Title)
	fmt.Printf("%s %s\n", keyStyle.Render("Slug:"), ui.StylePath.Render(anime.Slug))
	fmt.Printf("%s %s\n", keyStyle.Render("ID:"), ui.StyleDim.Render(anime.ID))
	fmt.Printf("%s %d\n", keyStyle.Render("Episodes:"), anime.EpisodeCount)
	fmt.Printf("%s %s\n", keyStyle.Render("Refreshed:"), ui.FormatRefreshed(anime.LastRefreshedAt))
	if anime.SourceURL != "" {
		fmt.Printf("%s %s\n", keyStyle.Render("Source:"), ui.StylePath.Render(anime.SourceURL))
	}
}

func printProgress(views []types.EpisodeView) {
	watched := 0
	for _, v := range views {
		if v.Watched {
			watched++
		}
	}
	logger.Info(fmt.Sprintf("%s %s", ui.StyleHeader.Render("Progress"),
		ui.StylePattern.Render(fmt.Sprintf("%d/%d", watched, len(views)))), "user", flagUser)
}

func pageOf(items []types.AnimeSummary, offset, limit int) []types.AnimeSummary {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
