package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydehq/anitrack/internal/types"
)

// runStoreSuite exercises the types.Store contract against any backend
func runStoreSuite(t *testing.T, open func(t *testing.T) types.Store) {
	t.Run("create and find anime", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "Naruto", Slug: "naruto", SourceURL: types.SourceURL("naruto")}
		require.NoError(t, s.CreateAnime(ctx, a))
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		bySlug, err := s.FindAnimeBySlug(ctx, "naruto")
		require.NoError(t, err)
		assert.Equal(t, a.ID, bySlug.ID)
		assert.Equal(t, "Naruto", bySlug.Title)
		assert.Equal(t, 0, bySlug.EpisodeCount)
		assert.Nil(t, bySlug.LastRefreshedAt)

		byID, err := s.FindAnimeByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "naruto", byID.Slug)

		_, err = s.FindAnimeBySlug(ctx, "bleach")
		var notFound types.ErrAnimeNotFound
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.CreateAnime(ctx, &types.Anime{Title: "Bleach", Slug: "bleach"}))
		err := s.CreateAnime(ctx, &types.Anime{Title: "BLEACH", Slug: "bleach"})
		var conflict types.ErrConflict
		assert.True(t, errors.As(err, &conflict), "got %v", err)
	})

	t.Run("upsert keeps ids and overwrites fields", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "One Piece", Slug: "one-piece"}
		require.NoError(t, s.CreateAnime(ctx, a))

		first := []types.EpisodeSpec{
			{Number: 1, Title: "A", Classification: types.ClassCanon},
			{Number: 2, Title: "B", Classification: types.ClassFiller},
		}
		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			for _, ep := range first {
				if err := w.UpsertEpisode(ctx, a.ID, ep, "fp1"); err != nil {
					return err
				}
			}
			return nil
		}))

		before, err := s.FindEpisode(ctx, a.ID, 2)
		require.NoError(t, err)

		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			return w.UpsertEpisode(ctx, a.ID, types.EpisodeSpec{Number: 2, Title: "B2", Classification: types.ClassMixed}, "fp2")
		}))

		after, err := s.FindEpisode(ctx, a.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, "B2", after.Title)
		assert.Equal(t, types.ClassMixed, after.Classification)
		assert.Equal(t, "fp2", after.Fingerprint)

		latest, err := s.LatestEpisode(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, 2, latest.Number)
		assert.Equal(t, "fp2", latest.Fingerprint)

		n, err := s.CountEpisodes(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		eps, err := s.ListEpisodes(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, eps, 2)
		assert.Equal(t, 1, eps[0].Number)
		assert.Equal(t, 2, eps[1].Number)

		byID, err := s.FindEpisodeByID(ctx, after.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, byID.Number)

		_, err = s.FindEpisode(ctx, a.ID, 99)
		var epNotFound types.ErrEpisodeNotFound
		assert.True(t, errors.As(err, &epNotFound))
	})

	t.Run("latest episode empty", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "Empty", Slug: "empty"}
		require.NoError(t, s.CreateAnime(ctx, a))

		latest, err := s.LatestEpisode(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "Rollback", Slug: "rollback"}
		require.NoError(t, s.CreateAnime(ctx, a))

		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			if err := w.UpsertEpisode(ctx, a.ID, types.EpisodeSpec{Number: 1, Title: "x", Classification: types.ClassCanon}, "fp"); err != nil {
				return err
			}
			now := time.Now()
			a.EpisodeCount = 1
			a.LastRefreshedAt = &now
			if err := w.UpdateAnimeCache(ctx, a); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := s.CountEpisodes(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		stored, err := s.FindAnimeByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.EpisodeCount)
		assert.Nil(t, stored.LastRefreshedAt)
	})

	t.Run("update cache and prune", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "Prune", Slug: "prune"}
		require.NoError(t, s.CreateAnime(ctx, a))

		refreshed := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			for i := 1; i <= 5; i++ {
				if err := w.UpsertEpisode(ctx, a.ID, types.EpisodeSpec{Number: i, Classification: types.ClassCanon}, "fp"); err != nil {
					return err
				}
			}
			removed, err := w.PruneEpisodesAbove(ctx, a.ID, 3)
			if err != nil {
				return err
			}
			assert.Equal(t, 2, removed)
			a.EpisodeCount = 3
			a.LastRefreshedAt = &refreshed
			return w.UpdateAnimeCache(ctx, a)
		}))

		stored, err := s.FindAnimeByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.EpisodeCount)
		require.NotNil(t, stored.LastRefreshedAt)
		assert.True(t, refreshed.Equal(*stored.LastRefreshedAt), "got %v want %v", stored.LastRefreshedAt, refreshed)

		n, err := s.CountEpisodes(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("list anime pages by title", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for _, title := range []string{"Naruto", "Bleach", "One Piece"} {
			require.NoError(t, s.CreateAnime(ctx, &types.Anime{Title: title, Slug: title}))
		}

		all, total, err := s.ListAnime(ctx, types.ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, all, 3)
		assert.Equal(t, "Bleach", all[0].Title)
		assert.Equal(t, "Naruto", all[1].Title)
		assert.Equal(t, "One Piece", all[2].Title)

		page, total, err := s.ListAnime(ctx, types.ListQuery{Offset: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 1)
		assert.Equal(t, "Naruto", page[0].Title)
	})

	t.Run("watch markers", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := &types.Anime{Title: "Watch", Slug: "watch"}
		require.NoError(t, s.CreateAnime(ctx, a))
		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			for i := 1; i <= 3; i++ {
				if err := w.UpsertEpisode(ctx, a.ID, types.EpisodeSpec{Number: i, Classification: types.ClassCanon}, "fp"); err != nil {
					return err
				}
			}
			return nil
		}))
		ep1, err := s.FindEpisode(ctx, a.ID, 1)
		require.NoError(t, err)
		ep3, err := s.FindEpisode(ctx, a.ID, 3)
		require.NoError(t, err)

		require.NoError(t, s.SetWatched(ctx, "u1", ep1.ID))
		require.NoError(t, s.SetWatched(ctx, "u1", ep1.ID))
		require.NoError(t, s.SetWatched(ctx, "u1", ep3.ID))
		require.NoError(t, s.SetWatched(ctx, "u2", ep3.ID))

		watched, err := s.WatchedEpisodeIDs(ctx, "u1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{ep1.ID: true, ep3.ID: true}, watched)

		require.NoError(t, s.ClearWatched(ctx, "u1", ep3.ID))
		watched, err = s.WatchedEpisodeIDs(ctx, "u1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{ep1.ID: true}, watched)

		// marked episodes survive pruning
		var removed int
		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			var err error
			removed, err = w.PruneEpisodesAbove(ctx, a.ID, 2)
			return err
		}))
		assert.Equal(t, 0, removed)
		watched, err = s.WatchedEpisodeIDs(ctx, "u2", a.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{ep3.ID: true}, watched)

		require.NoError(t, s.ClearWatched(ctx, "u2", ep3.ID))
		require.NoError(t, s.WithinTx(ctx, func(w types.EpisodeWriter) error {
			var err error
			removed, err = w.PruneEpisodesAbove(ctx, a.ID, 2)
			return err
		}))
		assert.Equal(t, 1, removed)
		n, err := s.CountEpisodes(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
