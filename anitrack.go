// Package anitrack tracks anime episode lists with filler/canon
// classification and per-user watch status.
//
// Episode data is fetched lazily from the Anime-Filler-List dataset and
// cached in SQLite or PostgreSQL. This package mirrors the CLI functionality
// for use from other Go applications.
package anitrack

import (
	"context"

	"github.com/mydehq/anitrack/internal/api"
	"github.com/mydehq/anitrack/internal/config"
	"github.com/mydehq/anitrack/internal/types"
	"github.com/mydehq/anitrack/internal/version"
)

// Re-export core types
type (
	App           = api.App
	AnimeInfo     = api.AnimeInfo
	Option        = api.Option
	Options       = api.Options
	Config        = config.Config
	Anime         = types.Anime
	Episode       = types.Episode
	EpisodeSpec   = types.EpisodeSpec
	EpisodeView   = types.EpisodeView
	AnimeSummary  = types.AnimeSummary
	AnimePage     = types.AnimePage
	ListQuery     = types.ListQuery
	RefreshResult = types.RefreshResult
	RawDataset    = types.RawDataset
)

// Re-export option constructors
var (
	WithLogger = api.WithLogger
	WithStore  = api.WithStore
	WithSource = api.WithSource
	WithClock  = api.WithClock
)

// Re-export configuration helpers
var (
	DefaultConfig = config.Default
	LoadConfig    = config.Load
)

// New builds an App from cfg; nil means the built-in defaults
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	return api.New(ctx, cfg, opts...)
}

// Version returns the anitrack version string
func Version() string {
	return version.Get()
}
