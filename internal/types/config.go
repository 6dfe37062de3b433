package types

import "time"

// UpstreamConfig holds the settings a dataset source is constructed with
type UpstreamConfig struct {
	BaseURL   string // Empty selects the source's own default
	UserAgent string
	RateLimit float64 // Requests per second
	Timeout   time.Duration
}

// DefaultDatasetURL is the raw GitHub location of the filler dataset
const DefaultDatasetURL = "https://raw.githubusercontent.com/Anime-Filler-List/anime-filler-list/master/anime"

// DefaultShowURL is the human-facing page root for a title
const DefaultShowURL = "https://animefillerlist.com/shows"

// DefaultUserAgent is sent on every upstream request
const DefaultUserAgent = "Mozilla/5.0"

// DefaultUpstreamConfig returns the settings used when none are configured
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		UserAgent: DefaultUserAgent,
		RateLimit: 2,
		Timeout:   30 * time.Second,
	}
}

// SourceURL returns the human-facing page for slug
func SourceURL(slug string) string {
	return DefaultShowURL + "/" + slug
}
