package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mydehq/anitrack/internal/types"
)

//go:embed schema_postgres.sql
var postgresSchema string

const pgUniqueViolation = "23505"

// PostgresStore implements types.Store on a pgx connection pool
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// OpenPostgres connects to dsn and applies the schema
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	s := &PostgresStore{db: pool, timeout: timeout}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool; the schema must already exist
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: pool, timeout: timeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.timeout)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	if s != nil && s.db != nil {
		s.db.Close()
	}
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func scanPgAnime(row pgx.Row) (*types.Anime, error) {
	var a types.Anime
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.SourceURL, &a.EpisodeCount, &a.LastRefreshedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanPgEpisode(row pgx.Row) (*types.Episode, error) {
	var (
		e     types.Episode
		class string
	)
	if err := row.Scan(&e.ID, &e.AnimeID, &e.Number, &e.Title, &class, &e.Fingerprint, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Classification = types.ParseClassification(class)
	return &e, nil
}

func (s *PostgresStore) findAnime(ctx context.Context, column, value string) (*types.Anime, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := scanPgAnime(s.db.QueryRow(ctx, "SELECT "+animeColumns+" FROM anime WHERE "+column+" = $1", value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrAnimeNotFound{Key: value}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load anime: %w", err)
	}
	return a, nil
}

// FindAnimeBySlug looks up an anime by canonical slug
func (s *PostgresStore) FindAnimeBySlug(ctx context.Context, slug string) (*types.Anime, error) {
	return s.findAnime(ctx, "slug", slug)
}

// FindAnimeByID looks up an anime by id
func (s *PostgresStore) FindAnimeByID(ctx context.Context, id string) (*types.Anime, error) {
	return s.findAnime(ctx, "id", id)
}

// CreateAnime inserts anime, assigning an ID and timestamps when unset
func (s *PostgresStore) CreateAnime(ctx context.Context, anime *types.Anime) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if anime.ID == "" {
		anime.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	anime.CreatedAt, anime.UpdatedAt = now, now

	_, err := s.db.Exec(ctx,
		"INSERT INTO anime ("+animeColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		anime.ID, anime.Title, anime.Slug, anime.SourceURL, anime.EpisodeCount, anime.LastRefreshedAt, now, now,
	)
	if isPgUnique(err) {
		return types.ErrConflict{Entity: "anime", Key: anime.Slug}
	}
	if err != nil {
		return fmt.Errorf("failed to create anime: %w", err)
	}
	return nil
}

// ListAnime returns a page of anime ordered by title
func (s *PostgresStore) ListAnime(ctx context.Context, q types.ListQuery) ([]types.AnimeSummary, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM anime").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count anime: %w", err)
	}

	offset, limit := clampPage(q)
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.db.Query(ctx,
		"SELECT "+animeColumns+" FROM anime ORDER BY title LIMIT $1 OFFSET $2", limitArg, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list anime: %w", err)
	}
	defer rows.Close()

	var out []types.AnimeSummary
	for rows.Next() {
		a, err := scanPgAnime(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan anime: %w", err)
		}
		out = append(out, summarize(a))
	}
	return out, total, rows.Err()
}

// LatestEpisode returns the most recently updated episode or nil
func (s *PostgresStore) LatestEpisode(ctx context.Context, animeID string) (*types.Episode, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := scanPgEpisode(s.db.QueryRow(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE anime_id = $1 ORDER BY updated_at DESC, number DESC LIMIT 1", animeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest episode: %w", err)
	}
	return e, nil
}

// CountEpisodes returns the number of stored episodes for animeID
func (s *PostgresStore) CountEpisodes(ctx context.Context, animeID string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM episodes WHERE anime_id = $1", animeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return n, nil
}

// ListEpisodes returns all episodes for animeID ordered by number
func (s *PostgresStore) ListEpisodes(ctx context.Context, animeID string) ([]types.Episode, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE anime_id = $1 ORDER BY number", animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []types.Episode
	for rows.Next() {
		e, err := scanPgEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindEpisode looks up an episode by its natural key
func (s *PostgresStore) FindEpisode(ctx context.Context, animeID string, number int) (*types.Episode, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := scanPgEpisode(s.db.QueryRow(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE anime_id = $1 AND number = $2", animeID, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrEpisodeNotFound{AnimeID: animeID, Number: number}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}
	return e, nil
}

// FindEpisodeByID looks up an episode by id
func (s *PostgresStore) FindEpisodeByID(ctx context.Context, id string) (*types.Episode, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := scanPgEpisode(s.db.QueryRow(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrEpisodeNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}
	return e, nil
}

// WithinTx runs fn inside one transaction
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(types.EpisodeWriter) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgWriter{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgWriter struct {
	tx pgx.Tx
}

func (w pgWriter) UpsertEpisode(ctx context.Context, animeID string, spec types.EpisodeSpec, fingerprint string) error {
	now := time.Now().UTC()
	_, err := w.tx.Exec(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (anime_id, number) DO UPDATE SET
			title = EXCLUDED.title,
			classification = EXCLUDED.classification,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), animeID, spec.Number, spec.Title, string(spec.Classification), fingerprint, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert episode %d: %w", spec.Number, err)
	}
	return nil
}

func (w pgWriter) PruneEpisodesAbove(ctx context.Context, animeID string, max int) (int, error) {
	tag, err := w.tx.Exec(ctx, `DELETE FROM episodes
		WHERE anime_id = $1 AND number > $2
		AND NOT EXISTS (SELECT 1 FROM watch_markers m WHERE m.episode_id = episodes.id)`, animeID, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune episodes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (w pgWriter) UpdateAnimeCache(ctx context.Context, anime *types.Anime) error {
	anime.UpdatedAt = time.Now().UTC()
	tag, err := w.tx.Exec(ctx,
		"UPDATE anime SET episode_count = $1, last_refreshed_at = $2, updated_at = $3 WHERE id = $4",
		anime.EpisodeCount, anime.LastRefreshedAt, anime.UpdatedAt, anime.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update anime: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrAnimeNotFound{Key: anime.ID}
	}
	return nil
}

// SetWatched records that userID watched episodeID
func (s *PostgresStore) SetWatched(ctx context.Context, userID, episodeID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Exec(ctx,
		"INSERT INTO watch_markers (user_id, episode_id, watched_at) VALUES ($1, $2, now()) ON CONFLICT DO NOTHING",
		userID, episodeID,
	); err != nil {
		return fmt.Errorf("failed to set watched: %w", err)
	}
	return nil
}

// ClearWatched removes the marker for (userID, episodeID)
func (s *PostgresStore) ClearWatched(ctx context.Context, userID, episodeID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Exec(ctx, "DELETE FROM watch_markers WHERE user_id = $1 AND episode_id = $2", userID, episodeID); err != nil {
		return fmt.Errorf("failed to clear watched: %w", err)
	}
	return nil
}

// WatchedEpisodeIDs returns the user's watched episode IDs for animeID
func (s *PostgresStore) WatchedEpisodeIDs(ctx context.Context, userID, animeID string) (map[string]bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT w.episode_id FROM watch_markers w
		JOIN episodes e ON e.id = w.episode_id
		WHERE w.user_id = $1 AND e.anime_id = $2`, userID, animeID)
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
