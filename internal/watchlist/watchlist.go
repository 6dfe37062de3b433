// Package watchlist records which episodes a user has watched.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/mydehq/anitrack/internal/cache"
	"github.com/mydehq/anitrack/internal/types"
)

// ErrNoUser is returned when an operation needs a user ID and none was given
var ErrNoUser = errors.New("user id is required")

// Service annotates cached episodes with per-user watch state
type Service struct {
	store      types.Store
	reconciler *cache.Reconciler
	logger     *log.Logger
}

// NewService creates a watch list service
func NewService(store types.Store, reconciler *cache.Reconciler, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: store, reconciler: reconciler, logger: logger}
}

// Episodes refreshes the anime if stale and returns its episodes, flagged
// with userID's watch state. An empty userID leaves every flag false.
func (s *Service) Episodes(ctx context.Context, animeID, userID string) ([]types.EpisodeView, error) {
	anime, err := s.store.FindAnimeByID(ctx, animeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.reconciler.RefreshIfStale(ctx, anime); err != nil {
		return nil, err
	}

	episodes, err := s.store.ListEpisodes(ctx, anime.ID)
	if err != nil {
		return nil, err
	}

	watched := map[string]bool{}
	if userID != "" {
		if watched, err = s.store.WatchedEpisodeIDs(ctx, userID, anime.ID); err != nil {
			return nil, err
		}
	}

	views := make([]types.EpisodeView, len(episodes))
	for i, ep := range episodes {
		views[i] = types.EpisodeView{Episode: ep, Watched: watched[ep.ID]}
	}
	return views, nil
}

// SetWatched marks or unmarks a single episode for userID
func (s *Service) SetWatched(ctx context.Context, userID, episodeID string, watched bool) error {
	if userID == "" {
		return ErrNoUser
	}
	if _, err := s.store.FindEpisodeByID(ctx, episodeID); err != nil {
		return err
	}
	return s.apply(ctx, userID, episodeID, watched)
}

// MarkRange marks or unmarks the given episode numbers of animeID.
// Every number is resolved before anything is written; an unknown number
// fails the whole call. It returns how many episodes were updated.
func (s *Service) MarkRange(ctx context.Context, userID, animeID string, numbers []int, watched bool) (int, error) {
	if userID == "" {
		return 0, ErrNoUser
	}

	ids := make([]string, 0, len(numbers))
	for _, n := range numbers {
		ep, err := s.store.FindEpisode(ctx, animeID, n)
		if err != nil {
			return 0, err
		}
		ids = append(ids, ep.ID)
	}

	for i, id := range ids {
		if err := s.apply(ctx, userID, id, watched); err != nil {
			return i, err
		}
	}
	s.logger.Debug("Watch state updated", "user", userID, "anime", animeID, "episodes", len(ids), "watched", watched)
	return len(ids), nil
}

// Progress returns how many of the anime's stored episodes userID has watched
func (s *Service) Progress(ctx context.Context, animeID, userID string) (watched, total int, err error) {
	total, err = s.store.CountEpisodes(ctx, animeID)
	if err != nil {
		return 0, 0, err
	}
	if userID == "" {
		return 0, total, nil
	}
	ids, err := s.store.WatchedEpisodeIDs(ctx, userID, animeID)
	if err != nil {
		return 0, 0, err
	}
	return len(ids), total, nil
}

func (s *Service) apply(ctx context.Context, userID, episodeID string, watched bool) error {
	var err error
	if watched {
		err = s.store.SetWatched(ctx, userID, episodeID)
	} else {
		err = s.store.ClearWatched(ctx, userID, episodeID)
	}
	if err != nil {
		return fmt.Errorf("failed to update watch state: %w", err)
	}
	return nil
}
