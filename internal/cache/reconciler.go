// Package cache keeps stored episode lists in step with the upstream dataset.
//
// A Reconciler lazily creates anime rows for queried titles and refreshes
// their episodes when the upstream content fingerprint changes. Refreshes of
// the same title inside one process are collapsed into a single in-flight
// call; the episode upserts and the anime metadata update of one refresh are
// committed in one store transaction.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/mydehq/anitrack/internal/extractor"
	"github.com/mydehq/anitrack/internal/fingerprint"
	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/util"
)

// Reconciler decides when to fetch upstream data and writes it to the store
type Reconciler struct {
	store  types.EntityStore
	source types.DatasetSource
	logger *log.Logger
	prune  bool
	now    func() time.Time
	group  singleflight.Group
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger used for refresh diagnostics
func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPrune controls whether episodes numbered above a refreshed list's
// length are deleted. Disabled by default. Episodes that carry watch markers
// are never pruned, and an empty list never prunes anything.
func WithPrune(prune bool) Option {
	return func(r *Reconciler) {
		r.prune = prune
	}
}

// WithClock overrides the time source used for LastRefreshedAt
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler over store and source
func NewReconciler(store types.EntityStore, source types.DatasetSource, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		source: source,
		logger: log.New(io.Discard),
		prune:  false,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureCached returns the stored anime for title, creating it on first use.
// With prefetch set the episode list is refreshed before returning.
func (r *Reconciler) EnsureCached(ctx context.Context, title string, prefetch bool) (*types.Anime, error) {
	clean := util.CleanTitle(title)
	slug := util.Normalize(clean)
	if slug == "" {
		return nil, types.ErrInvalidTitle{Title: title}
	}

	anime, err := r.findOrCreate(ctx, clean, slug)
	if err != nil {
		return nil, err
	}

	if prefetch {
		if _, err := r.RefreshIfStale(ctx, anime); err != nil {
			return nil, err
		}
	}
	return anime, nil
}

func (r *Reconciler) findOrCreate(ctx context.Context, title, slug string) (*types.Anime, error) {
	anime, err := r.store.FindAnimeBySlug(ctx, slug)
	if err == nil {
		return anime, nil
	}
	var notFound types.ErrAnimeNotFound
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to look up %s: %w", slug, err)
	}

	anime = &types.Anime{
		Title:     title,
		Slug:      slug,
		SourceURL: types.SourceURL(slug),
	}
	err = r.store.CreateAnime(ctx, anime)
	if err == nil {
		r.logger.Debug("Anime created", "slug", slug, "id", anime.ID)
		return anime, nil
	}

	// another caller created it first
	var conflict types.ErrConflict
	if errors.As(err, &conflict) {
		existing, findErr := r.store.FindAnimeBySlug(ctx, slug)
		if findErr != nil {
			return nil, fmt.Errorf("failed to reload %s after conflict: %w", slug, findErr)
		}
		return existing, nil
	}
	return nil, fmt.Errorf("failed to create %s: %w", slug, err)
}

type refreshOutcome struct {
	result types.RefreshResult
	anime  types.Anime
}

// RefreshIfStale fetches the upstream dataset for anime and rewrites its
// episodes when the content changed or the anime was never refreshed.
// A title missing upstream leaves the store untouched. On a change, anime's
// EpisodeCount, LastRefreshedAt and UpdatedAt are updated in place.
//
// Concurrent calls for the same slug share one refresh. Cancelling ctx
// returns early but does not stop a refresh already in flight.
func (r *Reconciler) RefreshIfStale(ctx context.Context, anime *types.Anime) (types.RefreshResult, error) {
	if anime == nil {
		return types.RefreshResult{}, fmt.Errorf("refresh: nil anime")
	}

	key := anime.Slug
	if key == "" {
		key = anime.ID
	}
	snapshot := *anime
	// joined callers must not lose the refresh when the first caller goes away
	shared := context.WithoutCancel(ctx)

	ch := r.group.DoChan(key, func() (any, error) {
		res, err := r.refresh(shared, &snapshot)
		return refreshOutcome{result: res, anime: snapshot}, err
	})

	select {
	case <-ctx.Done():
		return types.RefreshResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return types.RefreshResult{}, res.Err
		}
		out := res.Val.(refreshOutcome)
		if res.Shared {
			r.logger.Debug("Joined in-flight refresh", "slug", key)
		}
		if out.result.Changed {
			anime.EpisodeCount = out.anime.EpisodeCount
			anime.LastRefreshedAt = out.anime.LastRefreshedAt
			anime.UpdatedAt = out.anime.UpdatedAt
		}
		return out.result, nil
	}
}

func (r *Reconciler) refresh(ctx context.Context, anime *types.Anime) (types.RefreshResult, error) {
	raw, ok := r.source.FetchDataset(ctx, anime.Slug)
	if !ok {
		r.logger.Debug("No upstream dataset", "slug", anime.Slug, "source", r.source.Name())
		return types.RefreshResult{Changed: false, Count: anime.EpisodeCount}, nil
	}

	episodes := extractor.Extract(raw)
	fp := fingerprint.Compute(episodes)

	latest, err := r.store.LatestEpisode(ctx, anime.ID)
	if err != nil {
		return types.RefreshResult{}, fmt.Errorf("failed to read last fingerprint for %s: %w", anime.Slug, err)
	}
	var lastKnown string
	if latest != nil {
		lastKnown = latest.Fingerprint
	}

	// count is the fresh extraction's length even though nothing is written
	if fp == lastKnown && anime.Refreshed() {
		r.logger.Debug("Episodes up to date", "slug", anime.Slug, "fingerprint", fp)
		return types.RefreshResult{Changed: false, Count: len(episodes)}, nil
	}

	now := r.now().UTC()
	updated := *anime
	pruned := 0
	err = r.store.WithinTx(ctx, func(w types.EpisodeWriter) error {
		for _, ep := range episodes {
			if err := w.UpsertEpisode(ctx, anime.ID, ep, fp); err != nil {
				return err
			}
		}
		if r.prune && len(episodes) > 0 {
			n, err := w.PruneEpisodesAbove(ctx, anime.ID, len(episodes))
			if err != nil {
				return err
			}
			pruned = n
		}
		updated.EpisodeCount = len(episodes)
		updated.LastRefreshedAt = &now
		return w.UpdateAnimeCache(ctx, &updated)
	})
	if err != nil {
		return types.RefreshResult{}, fmt.Errorf("failed to refresh %s: %w", anime.Slug, err)
	}

	*anime = updated
	r.logger.Info("Episodes refreshed", "slug", anime.Slug, "count", len(episodes), "pruned", pruned)
	return types.RefreshResult{Changed: true, Count: len(episodes)}, nil
}
