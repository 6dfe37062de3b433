package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydehq/anitrack/internal/api"
	"github.com/mydehq/anitrack/internal/config"
	"github.com/mydehq/anitrack/internal/database"
	"github.com/mydehq/anitrack/internal/types"
)

// upstream serves <slug>.json documents from an in-memory map
type upstream struct {
	mu    sync.Mutex
	docs  map[string]string
	hits  atomic.Int32
	agent atomic.Value
}

func (u *upstream) set(slug, doc string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.docs[slug] = doc
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.hits.Add(1)
	u.agent.Store(r.UserAgent())
	slug := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")

	u.mu.Lock()
	doc, ok := u.docs[slug]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

const onePiece = `{
  "total": 5,
  "canon": [{"title": "I'm Luffy!"}, {"title": "Enter the Great Swordsman!"}],
  "mixed": [{"title": "Morgan versus Luffy!"}],
  "filler": [{"title": ""}, {"title": "Luffy's Past!"}]
}`

func newApp(t *testing.T) (*api.App, *upstream) {
	t.Helper()
	up := &upstream{docs: map[string]string{"one-piece": onePiece}}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "anitrack.db")
	cfg.Upstream.BaseURL = srv.URL
	cfg.Upstream.RateLimit = 1000

	app, err := api.New(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app, up
}

func TestEnsureAnimeCached_EndToEnd(t *testing.T) {
	ctx := context.Background()
	app, up := newApp(t)

	anime, err := app.EnsureAnimeCached(ctx, "One Piece", true)
	require.NoError(t, err)
	assert.Equal(t, "one-piece", anime.Slug)
	assert.Equal(t, 5, anime.EpisodeCount)
	assert.NotNil(t, anime.LastRefreshedAt)
	assert.Equal(t, types.DefaultUserAgent, up.agent.Load())

	page, err := app.List(ctx, types.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	missing, err := app.EnsureAnimeCached(ctx, "Not Upstream", true)
	require.NoError(t, err)
	assert.Equal(t, "not-upstream", missing.Slug)
	assert.Equal(t, 0, missing.EpisodeCount)
	assert.Nil(t, missing.LastRefreshedAt)

	page, err = app.List(ctx, types.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestRefreshEpisodesIfStale(t *testing.T) {
	ctx := context.Background()
	app, up := newApp(t)

	anime, err := app.EnsureAnimeCached(ctx, "One Piece", true)
	require.NoError(t, err)

	res, err := app.RefreshEpisodesIfStale(ctx, anime)
	require.NoError(t, err)
	assert.Equal(t, types.RefreshResult{Changed: false, Count: 5}, res)

	up.set("one-piece", `{"total": 2, "canon": [{"title": "I'm Luffy!"}, {"title": "Romance Dawn"}]}`)
	res, err = app.RefreshEpisodesIfStale(ctx, anime)
	require.NoError(t, err)
	assert.Equal(t, types.RefreshResult{Changed: true, Count: 2}, res)

	views, err := app.Episodes(ctx, anime.ID, "")
	require.NoError(t, err)
	require.Len(t, views, 5, "episodes above the new length are retained by default")
	assert.Equal(t, "Romance Dawn", views[1].Title)
	assert.Equal(t, 2, anime.EpisodeCount)

	up.set("one-piece", `not json`)
	res, err = app.RefreshEpisodesIfStale(ctx, anime)
	require.NoError(t, err)
	assert.Equal(t, types.RefreshResult{Changed: false, Count: 2}, res, "malformed upstream is treated as missing")
}

func TestResolveAndRefresh(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)

	_, err := app.Resolve(ctx, "One Piece")
	var notFound types.ErrAnimeNotFound
	assert.True(t, errors.As(err, &notFound))

	anime, res, err := app.Refresh(ctx, "One Piece")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 5, res.Count)

	byID, err := app.Resolve(ctx, anime.ID)
	require.NoError(t, err)
	assert.Equal(t, anime.Slug, byID.Slug)

	bySlug, err := app.Resolve(ctx, "one-piece")
	require.NoError(t, err)
	assert.Equal(t, anime.ID, bySlug.ID)

	_, err = app.Resolve(ctx, "???")
	assert.True(t, errors.As(err, &notFound))
}

func TestEpisodesAndWatch(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)

	anime, err := app.EnsureAnimeCached(ctx, "One Piece", false)
	require.NoError(t, err)

	views, err := app.Episodes(ctx, anime.ID, "luffy")
	require.NoError(t, err)
	require.Len(t, views, 5)
	assert.Equal(t, "Episode 4", views[3].Title)
	assert.Equal(t, types.ClassFiller, views[3].Classification)

	n, err := app.MarkRange(ctx, "luffy", anime.ID, []int{1, 2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, app.SetWatched(ctx, "luffy", views[4].ID, true))

	watched, total, err := app.Progress(ctx, anime.ID, "luffy")
	require.NoError(t, err)
	assert.Equal(t, 4, watched)
	assert.Equal(t, 5, total)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)

	for _, title := range []string{"Naruto", "Naruto Shippuden", "One Piece", "Boruto"} {
		_, err := app.EnsureAnimeCached(ctx, title, false)
		require.NoError(t, err)
	}

	results, err := app.Search(ctx, "naruto", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Naruto", results[0].Title, "exact slug match first")
	assert.Equal(t, "Naruto Shippuden", results[1].Title)

	results, err = app.Search(ctx, "shipp", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Naruto Shippuden", results[0].Title)

	results, err = app.Search(ctx, "o", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = app.Search(ctx, "bleach", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// failingLookups is a store whose id lookups fail with a storage error
type failingLookups struct {
	types.Store
}

var errLookup = errors.New("disk I/O error")

func (failingLookups) FindAnimeByID(context.Context, string) (*types.Anime, error) {
	return nil, errLookup
}

func TestSearch_StoreError(t *testing.T) {
	ctx := context.Background()
	store, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "anitrack.db"), 5*time.Second)
	require.NoError(t, err)

	cfg := config.Default()
	app, err := api.New(ctx, &cfg, api.WithStore(failingLookups{Store: store}))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	_, err = app.Search(ctx, "naruto", 0)
	assert.ErrorIs(t, err, errLookup)
}

func TestListPaging(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)

	for _, title := range []string{"C", "A", "B"} {
		_, err := app.EnsureAnimeCached(ctx, title, false)
		require.NoError(t, err)
	}

	page, err := app.List(ctx, types.ListQuery{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "C", page.Items[0].Title)

	page, err = app.List(ctx, types.ListQuery{Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	app, up := newApp(t)

	var raw types.RawDataset
	require.NoError(t, json.Unmarshal([]byte(onePiece), &raw))

	anime, err := app.SeedDataset(ctx, "One Piece", &raw)
	require.NoError(t, err)
	assert.Equal(t, 5, anime.EpisodeCount)
	assert.Nil(t, anime.LastRefreshedAt)

	info, err := app.Info(ctx, "One Piece")
	require.NoError(t, err)
	assert.Equal(t, 5, info.Stored)
	assert.Equal(t, 2, info.Counts[types.ClassCanon])
	assert.Equal(t, 1, info.Counts[types.ClassMixed])
	assert.Equal(t, 2, info.Counts[types.ClassFiller])

	// the seeded batch matches upstream, but the anime was never refreshed
	res, err := app.RefreshEpisodesIfStale(ctx, info.Anime)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, int32(1), up.hits.Load())

	_, err = app.Seed(ctx, "Bad", []types.EpisodeSpec{{Number: 2, Classification: types.ClassCanon}})
	assert.Error(t, err)
	_, err = app.Seed(ctx, "Bad", []types.EpisodeSpec{{Number: 1, Classification: "special"}})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)

	_, err := app.EnsureAnimeCached(ctx, "One Piece", true)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	n, err := app.Export(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "@one-piece.json"))
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "a.db")
	cfg.Upstream.Source = "nope"
	_, err := api.New(ctx, &cfg)
	var missing types.ErrSourceNotFound
	assert.True(t, errors.As(err, &missing))

	cfg = config.Default()
	cfg.Database.Driver = "oracle"
	_, err = api.New(ctx, &cfg)
	var invalid types.ErrConfigInvalid
	assert.True(t, errors.As(err, &invalid))
}

func TestDBLocation(t *testing.T) {
	app, _ := newApp(t)
	assert.Equal(t, app.Config().Database.Path, app.DBLocation())
	assert.Equal(t, "dataset", app.SourceName())
}
