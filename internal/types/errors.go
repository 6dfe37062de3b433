// Package types defines custom error types for anitrack.
package types

import "fmt"

// ErrAnimeNotFound indicates no anime matches the lookup key
type ErrAnimeNotFound struct {
	Key string
}

func (e ErrAnimeNotFound) Error() string {
	return fmt.Sprintf("anime not found: %s", e.Key)
}

// ErrEpisodeNotFound indicates an episode wasn't in the store
type ErrEpisodeNotFound struct {
	AnimeID string
	Number  int
	ID      string
}

func (e ErrEpisodeNotFound) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("episode not found: %s", e.ID)
	}
	return fmt.Sprintf("episode not found: %s #%d", e.AnimeID, e.Number)
}

// ErrInvalidTitle indicates a title that normalizes to an empty slug
type ErrInvalidTitle struct {
	Title string
}

func (e ErrInvalidTitle) Error() string {
	return fmt.Sprintf("invalid title: %q", e.Title)
}

// ErrConflict indicates a unique constraint rejected a write
type ErrConflict struct {
	Entity string
	Key    string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.Key)
}

// ErrConfigInvalid indicates a configuration error
type ErrConfigInvalid struct {
	Path   string
	Reason string
}

func (e ErrConfigInvalid) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid config %s: %s", e.Path, e.Reason)
}

// ErrSourceNotFound indicates no dataset source is registered under a name
type ErrSourceNotFound struct {
	Name string
}

func (e ErrSourceNotFound) Error() string {
	return fmt.Sprintf("no dataset source registered: %s", e.Name)
}

// ErrAPIError indicates an error from an external API
type ErrAPIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e ErrAPIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Service, e.StatusCode, e.Message)
}
