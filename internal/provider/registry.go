// Package provider keeps the registry of upstream dataset sources.
package provider

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mydehq/anitrack/internal/types"
)

// Factory builds a dataset source from explicit upstream settings
type Factory func(cfg types.UpstreamConfig, logger *log.Logger) types.DatasetSource

var (
	mu      sync.RWMutex
	sources = map[string]Factory{}
)

// RegisterSource adds a source factory to the registry under name
func RegisterSource(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	sources[name] = f
}

// NewSource builds the source registered under name
func NewSource(name string, cfg types.UpstreamConfig, logger *log.Logger) (types.DatasetSource, error) {
	mu.RLock()
	f, ok := sources[name]
	mu.RUnlock()
	if !ok {
		return nil, types.ErrSourceNotFound{Name: name}
	}
	return f(cfg, logger), nil
}

// HasSource reports whether name is registered
func HasSource(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := sources[name]
	return ok
}

// ListSources returns all registered source names, sorted
func ListSources() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
