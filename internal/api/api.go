// Package api provides the core implementation for anitrack operations.
// This package is used by both the CLI and the public library API.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mydehq/anitrack/internal/cache"
	"github.com/mydehq/anitrack/internal/config"
	"github.com/mydehq/anitrack/internal/database"
	"github.com/mydehq/anitrack/internal/logger"
	"github.com/mydehq/anitrack/internal/provider"
	_ "github.com/mydehq/anitrack/internal/provider/filler"
	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/util"
	"github.com/mydehq/anitrack/internal/watchlist"
)

// App wires the store, the upstream source and the reconciler together
type App struct {
	cfg        *config.Config
	store      types.Store
	source     types.DatasetSource
	reconciler *cache.Reconciler
	watch      *watchlist.Service
	logger     *log.Logger
}

// Option is a functional option for configuring an App
type Option func(*Options)

// Options holds the collaborators an App is built from
type Options struct {
	Logger *log.Logger
	Store  types.Store
	Source types.DatasetSource
	Clock  func() time.Time
}

// WithLogger sets the logger passed to every component
func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithStore uses an already opened store instead of opening one from config
func WithStore(s types.Store) Option {
	return func(o *Options) { o.Store = s }
}

// WithSource uses source instead of the configured upstream source
func WithSource(s types.DatasetSource) Option {
	return func(o *Options) { o.Source = s }
}

// WithClock overrides the refresh timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

// New builds an App from cfg. A nil cfg means the built-in defaults.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = logger.Discard()
	}

	store := options.Store
	if store == nil {
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		store, err = database.Open(ctx, database.Options{
			Driver:  cfg.Database.Driver,
			Path:    path,
			DSN:     cfg.Database.DSN,
			Timeout: cfg.DatabaseTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	source := options.Source
	if source == nil {
		var err error
		source, err = provider.NewSource(cfg.Upstream.Source, cfg.UpstreamSettings(), options.Logger)
		if err != nil {
			if options.Store == nil {
				store.Close()
			}
			return nil, err
		}
	}

	reconciler := cache.NewReconciler(store, source,
		cache.WithLogger(options.Logger),
		cache.WithPrune(cfg.Cache.PruneStaleEpisodes),
		cache.WithClock(options.Clock),
	)

	return &App{
		cfg:        cfg,
		store:      store,
		source:     source,
		reconciler: reconciler,
		watch:      watchlist.NewService(store, reconciler, options.Logger),
		logger:     options.Logger,
	}, nil
}

// Close releases the store
func (a *App) Close() error {
	return a.store.Close()
}

// Config returns the effective configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// SourceName returns the name of the upstream source in use
func (a *App) SourceName() string {
	return a.source.Name()
}

// EnsureAnimeCached returns the anime for title, creating it on first use and
// refreshing its episodes when prefetch is set
func (a *App) EnsureAnimeCached(ctx context.Context, title string, prefetch bool) (*types.Anime, error) {
	return a.reconciler.EnsureCached(ctx, title, prefetch)
}

// RefreshEpisodesIfStale re-reads the upstream dataset for anime and rewrites
// its episodes when the content changed
func (a *App) RefreshEpisodesIfStale(ctx context.Context, anime *types.Anime) (types.RefreshResult, error) {
	return a.reconciler.RefreshIfStale(ctx, anime)
}

// Resolve finds a cached anime by ID, then by the slug of query
func (a *App) Resolve(ctx context.Context, query string) (*types.Anime, error) {
	anime, err := a.store.FindAnimeByID(ctx, query)
	if err == nil {
		return anime, nil
	}
	var notFound types.ErrAnimeNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	slug := util.Normalize(util.CleanTitle(query))
	if slug == "" {
		return nil, types.ErrAnimeNotFound{Key: query}
	}
	return a.store.FindAnimeBySlug(ctx, slug)
}

// Refresh resolves query, creating the anime when it is not cached yet, and
// refreshes it
func (a *App) Refresh(ctx context.Context, query string) (*types.Anime, types.RefreshResult, error) {
	anime, err := a.Resolve(ctx, query)
	var notFound types.ErrAnimeNotFound
	if errors.As(err, &notFound) {
		anime, err = a.reconciler.EnsureCached(ctx, query, false)
	}
	if err != nil {
		return nil, types.RefreshResult{}, err
	}

	res, err := a.reconciler.RefreshIfStale(ctx, anime)
	if err != nil {
		return nil, types.RefreshResult{}, err
	}
	return anime, res, nil
}

// List returns one page of the catalog ordered by title
func (a *App) List(ctx context.Context, q types.ListQuery) (types.AnimePage, error) {
	items, total, err := a.store.ListAnime(ctx, q)
	if err != nil {
		return types.AnimePage{}, err
	}
	if items == nil {
		items = []types.AnimeSummary{}
	}
	return types.AnimePage{Items: items, Total: total, Offset: q.Offset, Limit: q.Limit}, nil
}

// Episodes lists an anime's episodes with userID's watch state, refreshing
// the anime first when stale
func (a *App) Episodes(ctx context.Context, animeID, userID string) ([]types.EpisodeView, error) {
	return a.watch.Episodes(ctx, animeID, userID)
}

// SetWatched marks or unmarks one episode for userID
func (a *App) SetWatched(ctx context.Context, userID, episodeID string, watched bool) error {
	return a.watch.SetWatched(ctx, userID, episodeID, watched)
}

// MarkRange marks or unmarks episode numbers of animeID for userID
func (a *App) MarkRange(ctx context.Context, userID, animeID string, numbers []int, watched bool) (int, error) {
	return a.watch.MarkRange(ctx, userID, animeID, numbers, watched)
}

// Progress returns watched and total episode counts for userID
func (a *App) Progress(ctx context.Context, animeID, userID string) (int, int, error) {
	return a.watch.Progress(ctx, animeID, userID)
}
