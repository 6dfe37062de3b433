// Package types defines core domain types used throughout anitrack.
package types

import "time"

// Classification is the filler/canon category of an episode
type Classification string

const (
	ClassCanon   Classification = "canon"
	ClassFiller  Classification = "filler"
	ClassMixed   Classification = "mixed"
	ClassUnknown Classification = "unknown"
)

// Valid reports whether c is one of the known classifications
func (c Classification) Valid() bool {
	switch c {
	case ClassCanon, ClassFiller, ClassMixed, ClassUnknown:
		return true
	}
	return false
}

// ParseClassification maps a stored value back to a Classification.
// Unknown values collapse to ClassUnknown.
func ParseClassification(s string) Classification {
	c := Classification(s)
	if c.Valid() {
		return c
	}
	return ClassUnknown
}

// Anime is a cached title and its refresh metadata
type Anime struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	SourceURL       string     `json:"source_url"`
	EpisodeCount    int        `json:"episode_count"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Refreshed reports whether the anime has completed at least one refresh
func (a *Anime) Refreshed() bool {
	return a != nil && a.LastRefreshedAt != nil
}

// Episode is a stored episode row
type Episode struct {
	ID             string         `json:"id"`
	AnimeID        string         `json:"anime_id"`
	Number         int            `json:"number"`
	Title          string         `json:"title"`
	Classification Classification `json:"type"`
	Fingerprint    string         `json:"fingerprint"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Class returns the stored classification
func (e Episode) Class() Classification { return e.Classification }

// IsFiller reports whether the episode is pure filler
func (e Episode) IsFiller() bool {
	return e.Classification == ClassFiller
}

// EpisodeSpec is one extracted episode before persistence.
// Field order is significant: it is the fingerprint serialization order.
type EpisodeSpec struct {
	Number         int            `json:"number"`
	Title          string         `json:"title"`
	Classification Classification `json:"type"`
}

// Class returns the extracted classification
func (s EpisodeSpec) Class() Classification { return s.Classification }

// RawEpisode is a single entry in an upstream classification bucket
type RawEpisode struct {
	Title string `json:"title"`
}

// RawDataset is the upstream payload for one title.
// Total is kept loosely typed because the dataset only promises it is truthy.
type RawDataset struct {
	Total  any          `json:"total"`
	Canon  []RawEpisode `json:"canon"`
	Mixed  []RawEpisode `json:"mixed"`
	Filler []RawEpisode `json:"filler"`
}

// HasTotal reports whether the total marker is present and truthy
func (d *RawDataset) HasTotal() bool {
	if d == nil {
		return false
	}
	switch v := d.Total.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	default:
		// objects and arrays are truthy
		return true
	}
}

// RefreshResult reports the outcome of a refresh attempt
type RefreshResult struct {
	Changed bool `json:"changed"`
	Count   int  `json:"count"`
}

// WatchMarker records that a user watched an episode
type WatchMarker struct {
	UserID    string    `json:"user_id"`
	EpisodeID string    `json:"episode_id"`
	WatchedAt time.Time `json:"watched_at"`
}

// EpisodeView is an episode annotated with a user's watch state
type EpisodeView struct {
	Episode
	Watched bool `json:"watched"`
}

// AnimeSummary is a lightweight summary for catalog listings
type AnimeSummary struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	EpisodeCount    int        `json:"episode_count"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

// ListQuery selects a page of the catalog
type ListQuery struct {
	Offset int
	Limit  int
}

// AnimePage is one page of the catalog plus the overall total
type AnimePage struct {
	Items  []AnimeSummary `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

// Pages returns the number of pages at the page's limit
func (p AnimePage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
