package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mydehq/anitrack/internal/types"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// sqliteSchemaVersion is bumped whenever schema_sqlite.sql changes
const sqliteSchemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	sqliteConstraintUnique  = 2067
	sqliteConstraintPK      = 1555
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// fixed width so that text ordering matches time ordering
	timeLayout = "2006-01-02T15:04:05.000000000Z"

	animeColumns   = "id, title, slug, source_url, episode_count, last_refreshed_at, created_at, updated_at"
	episodeColumns = "id, anime_id, number, title, classification, fingerprint, created_at, updated_at"
)

// SQLiteStore implements types.Store on an embedded SQLite file
type SQLiteStore struct {
	db      *sql.DB
	path    string
	timeout time.Duration
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(ctx context.Context, path string, timeout time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// pragmas go in the DSN so every pooled connection gets them
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, timeout: timeout}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != sqliteSchemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild the cache)",
			ErrSchemaMismatch, version, sqliteSchemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", sqliteSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func sqliteCode(err error) int {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return 0
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if sqliteCode(err)&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteUnique(err error) bool {
	if err == nil {
		return false
	}
	switch sqliteCode(err) {
	case sqliteConstraintUnique, sqliteConstraintPK:
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimeString(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSQLiteAnime(row rowScanner) (*types.Anime, error) {
	var (
		a         types.Anime
		refreshed sql.NullString
		created   string
		updated   string
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.SourceURL, &a.EpisodeCount, &refreshed, &created, &updated); err != nil {
		return nil, err
	}
	if refreshed.Valid {
		t := parseTimeString(refreshed.String)
		a.LastRefreshedAt = &t
	}
	a.CreatedAt = parseTimeString(created)
	a.UpdatedAt = parseTimeString(updated)
	return &a, nil
}

func scanSQLiteEpisode(row rowScanner) (*types.Episode, error) {
	var (
		e       types.Episode
		class   string
		created string
		updated string
	)
	if err := row.Scan(&e.ID, &e.AnimeID, &e.Number, &e.Title, &class, &e.Fingerprint, &created, &updated); err != nil {
		return nil, err
	}
	e.Classification = types.ParseClassification(class)
	e.CreatedAt = parseTimeString(created)
	e.UpdatedAt = parseTimeString(updated)
	return &e, nil
}

func (s *SQLiteStore) findAnime(ctx context.Context, column, value string) (*types.Anime, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, "SELECT "+animeColumns+" FROM anime WHERE "+column+" = ?", value)
	a, err := scanSQLiteAnime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrAnimeNotFound{Key: value}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load anime: %w", err)
	}
	return a, nil
}

// FindAnimeBySlug looks up an anime by canonical slug
func (s *SQLiteStore) FindAnimeBySlug(ctx context.Context, slug string) (*types.Anime, error) {
	return s.findAnime(ctx, "slug", slug)
}

// FindAnimeByID looks up an anime by id
func (s *SQLiteStore) FindAnimeByID(ctx context.Context, id string) (*types.Anime, error) {
	return s.findAnime(ctx, "id", id)
}

// CreateAnime inserts anime, assigning an ID and timestamps when unset
func (s *SQLiteStore) CreateAnime(ctx context.Context, anime *types.Anime) error {
	if anime.ID == "" {
		anime.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	anime.CreatedAt, anime.UpdatedAt = now, now

	_, err := s.execWithRetry(ctx,
		"INSERT INTO anime ("+animeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		anime.ID, anime.Title, anime.Slug, anime.SourceURL, anime.EpisodeCount,
		nullableTime(anime.LastRefreshedAt), formatTime(now), formatTime(now),
	)
	if isSQLiteUnique(err) {
		return types.ErrConflict{Entity: "anime", Key: anime.Slug}
	}
	if err != nil {
		return fmt.Errorf("failed to create anime: %w", err)
	}
	return nil
}

// ListAnime returns a page of anime ordered by title
func (s *SQLiteStore) ListAnime(ctx context.Context, q types.ListQuery) ([]types.AnimeSummary, int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM anime").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count anime: %w", err)
	}

	offset, limit := clampPage(q)
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+animeColumns+" FROM anime ORDER BY title LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list anime: %w", err)
	}
	defer rows.Close()

	var out []types.AnimeSummary
	for rows.Next() {
		a, err := scanSQLiteAnime(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan anime: %w", err)
		}
		out = append(out, summarize(a))
	}
	return out, total, rows.Err()
}

// LatestEpisode returns the most recently updated episode or nil
func (s *SQLiteStore) LatestEpisode(ctx context.Context, animeID string) (*types.Episode, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE anime_id = ? ORDER BY updated_at DESC, number DESC LIMIT 1", animeID)
	e, err := scanSQLiteEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest episode: %w", err)
	}
	return e, nil
}

// CountEpisodes returns the number of stored episodes for animeID
func (s *SQLiteStore) CountEpisodes(ctx context.Context, animeID string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes WHERE anime_id = ?", animeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return n, nil
}

// ListEpisodes returns all episodes for animeID ordered by number
func (s *SQLiteStore) ListEpisodes(ctx context.Context, animeID string) ([]types.Episode, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE anime_id = ? ORDER BY number", animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []types.Episode
	for rows.Next() {
		e, err := scanSQLiteEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindEpisode looks up an episode by its natural key
func (s *SQLiteStore) FindEpisode(ctx context.Context, animeID string, number int) (*types.Episode, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE anime_id = ? AND number = ?", animeID, number)
	e, err := scanSQLiteEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrEpisodeNotFound{AnimeID: animeID, Number: number}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}
	return e, nil
}

// FindEpisodeByID looks up an episode by id
func (s *SQLiteStore) FindEpisodeByID(ctx context.Context, id string) (*types.Episode, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE id = ?", id)
	e, err := scanSQLiteEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrEpisodeNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}
	return e, nil
}

// WithinTx runs fn inside one immediate transaction
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(types.EpisodeWriter) error) error {
	var tx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(sqliteWriter{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteWriter struct {
	tx *sql.Tx
}

func (w sqliteWriter) UpsertEpisode(ctx context.Context, animeID string, spec types.EpisodeSpec, fingerprint string) error {
	now := formatTime(time.Now())
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (anime_id, number) DO UPDATE SET
			title = excluded.title,
			classification = excluded.classification,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		uuid.NewString(), animeID, spec.Number, spec.Title, string(spec.Classification), fingerprint, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert episode %d: %w", spec.Number, err)
	}
	return nil
}

func (w sqliteWriter) PruneEpisodesAbove(ctx context.Context, animeID string, max int) (int, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM episodes
		WHERE anime_id = ? AND number > ?
		AND NOT EXISTS (SELECT 1 FROM watch_markers m WHERE m.episode_id = episodes.id)`, animeID, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune episodes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned episodes: %w", err)
	}
	return int(n), nil
}

func (w sqliteWriter) UpdateAnimeCache(ctx context.Context, anime *types.Anime) error {
	anime.UpdatedAt = time.Now().UTC()
	res, err := w.tx.ExecContext(ctx,
		"UPDATE anime SET episode_count = ?, last_refreshed_at = ?, updated_at = ? WHERE id = ?",
		anime.EpisodeCount, nullableTime(anime.LastRefreshedAt), formatTime(anime.UpdatedAt), anime.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update anime: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrAnimeNotFound{Key: anime.ID}
	}
	return nil
}

// SetWatched records that userID watched episodeID
func (s *SQLiteStore) SetWatched(ctx context.Context, userID, episodeID string) error {
	_, err := s.execWithRetry(ctx,
		"INSERT INTO watch_markers (user_id, episode_id, watched_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		userID, episodeID, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set watched: %w", err)
	}
	return nil
}

// ClearWatched removes the marker for (userID, episodeID)
func (s *SQLiteStore) ClearWatched(ctx context.Context, userID, episodeID string) error {
	if _, err := s.execWithRetry(ctx,
		"DELETE FROM watch_markers WHERE user_id = ? AND episode_id = ?", userID, episodeID,
	); err != nil {
		return fmt.Errorf("failed to clear watched: %w", err)
	}
	return nil
}

// WatchedEpisodeIDs returns the user's watched episode IDs for animeID
func (s *SQLiteStore) WatchedEpisodeIDs(ctx context.Context, userID, animeID string) (map[string]bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.episode_id FROM watch_markers w
		JOIN episodes e ON e.id = w.episode_id
		WHERE w.user_id = ? AND e.anime_id = ?`, userID, animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched episodes: %w", err)
	}
	defer rows.Close()

	watched := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watched episode: %w", err)
		}
		watched[id] = true
	}
	return watched, rows.Err()
}

func summarize(a *types.Anime) types.AnimeSummary {
	return types.AnimeSummary{
		ID:              a.ID,
		Title:           a.Title,
		Slug:            a.Slug,
		EpisodeCount:    a.EpisodeCount,
		LastRefreshedAt: a.LastRefreshedAt,
	}
}
