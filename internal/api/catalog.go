package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mydehq/anitrack/internal/database"
	"github.com/mydehq/anitrack/internal/extractor"
	"github.com/mydehq/anitrack/internal/fingerprint"
	"github.com/mydehq/anitrack/internal/types"
)

// Search ranks cached titles against query with fuzzy matching.
// An exact slug match always comes first. limit <= 0 returns every match.
func (a *App) Search(ctx context.Context, query string, limit int) ([]types.AnimeSummary, error) {
	all, _, err := a.store.ListAnime(ctx, types.ListQuery{})
	if err != nil {
		return nil, err
	}

	exact, err := a.Resolve(ctx, query)
	var notFound types.ErrAnimeNotFound
	if err != nil && !errors.As(err, &notFound) {
		return nil, err
	}

	titles := make([]string, len(all))
	for i, item := range all {
		titles[i] = item.Title
	}
	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	sort.Sort(ranks)

	var out []types.AnimeSummary
	if exact != nil {
		out = append(out, types.AnimeSummary{
			ID:              exact.ID,
			Title:           exact.Title,
			Slug:            exact.Slug,
			EpisodeCount:    exact.EpisodeCount,
			LastRefreshedAt: exact.LastRefreshedAt,
		})
	}
	for _, r := range ranks {
		item := all[r.OriginalIndex]
		if exact != nil && item.ID == exact.ID {
			continue
		}
		out = append(out, item)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AnimeInfo is a cached anime with per-classification episode counts
type AnimeInfo struct {
	Anime  *types.Anime
	Stored int
	Counts map[types.Classification]int
}

// Info returns details of a cached anime without contacting upstream
func (a *App) Info(ctx context.Context, query string) (*AnimeInfo, error) {
	anime, err := a.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	episodes, err := a.store.ListEpisodes(ctx, anime.ID)
	if err != nil {
		return nil, err
	}

	return &AnimeInfo{Anime: anime, Stored: len(episodes), Counts: extractor.Summary(episodes)}, nil
}

// Seed stores title with exactly the given episodes, replacing any stored
// list. The batch is fingerprinted like an upstream refresh, so a later
// refresh with identical upstream content writes nothing once the anime has
// been refreshed. LastRefreshedAt is left as it was.
func (a *App) Seed(ctx context.Context, title string, episodes []types.EpisodeSpec) (*types.Anime, error) {
	if err := validateSeed(episodes); err != nil {
		return nil, err
	}

	anime, err := a.reconciler.EnsureCached(ctx, title, false)
	if err != nil {
		return nil, err
	}

	fp := fingerprint.Compute(episodes)
	updated := *anime
	err = a.store.WithinTx(ctx, func(w types.EpisodeWriter) error {
		for _, ep := range episodes {
			if err := w.UpsertEpisode(ctx, anime.ID, ep, fp); err != nil {
				return err
			}
		}
		if _, err := w.PruneEpisodesAbove(ctx, anime.ID, len(episodes)); err != nil {
			return err
		}
		updated.EpisodeCount = len(episodes)
		return w.UpdateAnimeCache(ctx, &updated)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed %s: %w", anime.Slug, err)
	}

	a.logger.Info("Seeded anime", "slug", updated.Slug, "episodes", len(episodes))
	return &updated, nil
}

// SeedDataset seeds title from a dataset in the upstream JSON shape
func (a *App) SeedDataset(ctx context.Context, title string, raw *types.RawDataset) (*types.Anime, error) {
	return a.Seed(ctx, title, extractor.Extract(raw))
}

// seed batches must be numbered 1..n in order, as the extractor produces them
func validateSeed(episodes []types.EpisodeSpec) error {
	for i, ep := range episodes {
		if ep.Number != i+1 {
			return fmt.Errorf("episode %d: expected number %d, got %d", i, i+1, ep.Number)
		}
		if !ep.Classification.Valid() {
			return fmt.Errorf("episode %d: unknown classification %q", ep.Number, ep.Classification)
		}
	}
	return nil
}

// Export writes a JSON snapshot of every cached anime into dir
func (a *App) Export(ctx context.Context, dir string) (int, error) {
	snapshots, err := database.NewSnapshotDir(dir)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	n, err := database.Export(ctx, a.store, snapshots)
	if err != nil {
		return n, fmt.Errorf("export stopped after %d anime: %w", n, err)
	}
	a.logger.Debug("Exported snapshots", "dir", dir, "count", n, "took", time.Since(start))
	return n, nil
}

// DBLocation describes where the store lives: a file path for SQLite, or
// the driver name for a server database
func (a *App) DBLocation() string {
	if p, ok := a.store.(interface{ Path() string }); ok {
		return p.Path()
	}
	return a.cfg.Database.Driver
}
