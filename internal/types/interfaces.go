// Package types defines interfaces for anitrack components.
package types

import "context"

// DatasetSource fetches the raw episode dataset for a title
type DatasetSource interface {
	// Name returns the source identifier (e.g., "dataset", "animefillerlist")
	Name() string

	// FetchDataset returns the raw dataset for slug. The boolean is false when
	// the title is missing upstream or the response could not be used.
	FetchDataset(ctx context.Context, slug string) (*RawDataset, bool)
}

// EpisodeWriter is the write surface available inside a store transaction
type EpisodeWriter interface {
	// UpsertEpisode inserts or updates the episode keyed by (animeID, number).
	// Existing rows keep their ID.
	UpsertEpisode(ctx context.Context, animeID string, spec EpisodeSpec, fingerprint string) error

	// PruneEpisodesAbove deletes episodes numbered above max that no user has
	// marked watched, and returns how many were removed
	PruneEpisodesAbove(ctx context.Context, animeID string, max int) (int, error)

	// UpdateAnimeCache persists EpisodeCount and LastRefreshedAt for anime
	UpdateAnimeCache(ctx context.Context, anime *Anime) error
}

// EntityStore persists anime, episodes and watch markers
type EntityStore interface {
	// FindAnimeBySlug returns ErrAnimeNotFound when no anime has slug
	FindAnimeBySlug(ctx context.Context, slug string) (*Anime, error)

	// FindAnimeByID returns ErrAnimeNotFound when no anime has id
	FindAnimeByID(ctx context.Context, id string) (*Anime, error)

	// CreateAnime inserts a new anime, returning ErrConflict on a duplicate slug or title
	CreateAnime(ctx context.Context, anime *Anime) error

	// ListAnime returns a page of anime ordered by title plus the total count
	ListAnime(ctx context.Context, q ListQuery) ([]AnimeSummary, int, error)

	// LatestEpisode returns the most recently updated episode, or nil when there are none
	LatestEpisode(ctx context.Context, animeID string) (*Episode, error)

	// CountEpisodes returns the number of stored episodes for animeID
	CountEpisodes(ctx context.Context, animeID string) (int, error)

	// ListEpisodes returns all episodes for animeID ordered by number
	ListEpisodes(ctx context.Context, animeID string) ([]Episode, error)

	// FindEpisode returns ErrEpisodeNotFound when (animeID, number) is absent
	FindEpisode(ctx context.Context, animeID string, number int) (*Episode, error)

	// FindEpisodeByID returns ErrEpisodeNotFound when no episode has id
	FindEpisodeByID(ctx context.Context, id string) (*Episode, error)

	// WithinTx runs fn in a single transaction; any error rolls back every write
	WithinTx(ctx context.Context, fn func(EpisodeWriter) error) error

	// Close releases the underlying connection
	Close() error
}

// WatchStore persists per-user watch markers
type WatchStore interface {
	// SetWatched records a marker; repeated calls are idempotent
	SetWatched(ctx context.Context, userID, episodeID string) error

	// ClearWatched removes a marker if present
	ClearWatched(ctx context.Context, userID, episodeID string) error

	// WatchedEpisodeIDs returns the IDs of the user's watched episodes for animeID
	WatchedEpisodeIDs(ctx context.Context, userID, animeID string) (map[string]bool, error)
}

// Store is the full persistence surface
type Store interface {
	EntityStore
	WatchStore
}
