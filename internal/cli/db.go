package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where the cache is stored",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runDBPath(cmd.Context())
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Write a JSON snapshot of every cached anime",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDBExport(cmd.Context(), args[0])
	},
}

var dbInfoCmd = &cobra.Command{
	Use:   "info <title|id>",
	Short: "Show what is cached for an anime",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDBInfo(cmd.Context(), strings.Join(args, " "))
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed <title> <file.json>",
	Short: "Store an anime's episodes from a dataset file",
	Long: `Store an anime's episodes from a local file in the upstream dataset
shape: {"total": N, "canon": [...], "mixed": [...], "filler": [...]}.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runDBSeed(cmd.Context(), args[0], args[1])
	},
}

func init() {
	RootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbPathCmd, dbExportCmd, dbInfoCmd, dbSeedCmd)
}

func runDBPath(ctx context.Context) {
	app := openApp(ctx)
	defer app.Close()
	fmt.Println(app.DBLocation())
}

func runDBExport(ctx context.Context, dir string) {
	app := openApp(ctx)
	defer app.Close()

	n, err := app.Export(ctx, dir)
	if err != nil {
		fatal("Failed to export", err)
	}
	logger.Success(fmt.Sprintf("%s: %s", ui.StyleHeader.Render("Exported"), ui.StylePath.Render(dir)), "anime", n)
}

func runDBInfo(ctx context.Context, query string) {
	app := openApp(ctx)
	defer app.Close()

	info, err := app.Info(ctx, query)
	if err != nil {
		fatal("Failed to get anime info", err)
	}

	printAnime(info.Anime)
	keyStyle := ui.StyleHeader.Width(15)
	fmt.Printf("%s %d\n", keyStyle.Render("Stored:"), info.Stored)
	for _, c := range []types.Classification{types.ClassCanon, types.ClassMixed, types.ClassFiller, types.ClassUnknown} {
		if n := info.Counts[c]; n > 0 {
			fmt.Printf("%s %d\n", keyStyle.Render("  "+ui.RenderClass(c)+":"), n)
		}
	}
}

func runDBSeed(ctx context.Context, title, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		fatal("Failed to read dataset", err)
	}
	var raw types.RawDataset
	if err := json.Unmarshal(data, &raw); err != nil {
		fatal("Failed to parse dataset", err)
	}
	if !raw.HasTotal() {
		fatal("Failed to parse dataset", fmt.Errorf("%s has no total", file))
	}

	app := openApp(ctx)
	defer app.Close()

	anime, err := app.SeedDataset(ctx, title, &raw)
	if err != nil {
		fatal("Failed to seed", err)
	}
	logger.Success(fmt.Sprintf("%s: %s", ui.StyleHeader.Render("Seeded"), ui.StylePath.Render(anime.Slug)),
		"episodes", anime.EpisodeCount)
}
