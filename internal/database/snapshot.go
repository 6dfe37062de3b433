package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mydehq/anitrack/internal/types"
)

// Snapshot is an exported anime together with its episodes
type Snapshot struct {
	Anime    types.Anime     `json:"anime"`
	Episodes []types.Episode `json:"episodes"`
}

// SnapshotDir writes and reads {id}@{slug}.json snapshot files
type SnapshotDir struct {
	baseDir string
}

// NewSnapshotDir creates dir if needed
func NewSnapshotDir(dir string) (*SnapshotDir, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotDir{baseDir: dir}, nil
}

// Path returns the snapshot directory
func (d *SnapshotDir) Path() string {
	return d.baseDir
}

// Save writes snap, replacing any older file for the same anime ID
func (d *SnapshotDir) Save(snap *Snapshot) error {
	pattern := filepath.Join(d.baseDir, snap.Anime.ID+"@*.json")
	if oldMatches, _ := filepath.Glob(pattern); len(oldMatches) > 0 {
		for _, oldPath := range oldMatches {
			os.Remove(oldPath)
		}
	}

	// keep filenames under 255 bytes
	slug := snap.Anime.Slug
	maxSlugLen := 255 - len(snap.Anime.ID) - len("@") - len(".json")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(d.baseDir, snap.Anime.ID+"@"+slug+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// Load reads the snapshot for animeID, returning nil when none exists
func (d *SnapshotDir) Load(animeID string) (*Snapshot, error) {
	matches, err := filepath.Glob(filepath.Join(d.baseDir, animeID+"@*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to search for snapshot: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	return &snap, nil
}

// List returns summaries of every snapshot, sorted by title
func (d *SnapshotDir) List() ([]types.AnimeSummary, error) {
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var out []types.AnimeSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id, _, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".json"), "@")
		if !ok {
			continue
		}
		snap, err := d.Load(id)
		if err != nil || snap == nil {
			continue
		}
		out = append(out, summarize(&snap.Anime))
	}

	slices.SortFunc(out, func(a, b types.AnimeSummary) int {
		return strings.Compare(a.Title, b.Title)
	})
	return out, nil
}

// Export writes a snapshot of every stored anime and returns how many were written
func Export(ctx context.Context, store types.EntityStore, dir *SnapshotDir) (int, error) {
	items, _, err := store.ListAnime(ctx, types.ListQuery{})
	if err != nil {
		return 0, err
	}

	for i, item := range items {
		anime, err := store.FindAnimeByID(ctx, item.ID)
		if err != nil {
			return i, err
		}
		episodes, err := store.ListEpisodes(ctx, item.ID)
		if err != nil {
			return i, err
		}
		if err := dir.Save(&Snapshot{Anime: *anime, Episodes: episodes}); err != nil {
			return i, err
		}
	}
	return len(items), nil
}
