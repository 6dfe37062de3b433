package filler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mydehq/anitrack/internal/provider"
	"github.com/mydehq/anitrack/internal/types"
)

// DatasetSourceName is the registry name of the JSON dataset source
const DatasetSourceName = "dataset"

// DatasetSource reads the Anime-Filler-List JSON dataset
type DatasetSource struct {
	client
	baseURL string
}

// NewDatasetSource creates a JSON dataset source
func NewDatasetSource(cfg types.UpstreamConfig, logger *log.Logger) *DatasetSource {
	base := cfg.BaseURL
	if base == "" {
		base = types.DefaultDatasetURL
	}
	return &DatasetSource{
		client:  newClient(cfg, logger),
		baseURL: strings.TrimRight(base, "/"),
	}
}

// Name returns the source identifier
func (s *DatasetSource) Name() string {
	return DatasetSourceName
}

// URL returns the dataset location for slug
func (s *DatasetSource) URL(slug string) string {
	return s.baseURL + "/" + url.PathEscape(slug) + ".json"
}

// FetchDataset downloads and decodes the dataset for slug. Every failure is
// reported as not found.
func (s *DatasetSource) FetchDataset(ctx context.Context, slug string) (*types.RawDataset, bool) {
	body, err := s.get(ctx, "Dataset", s.URL(slug))
	if err != nil {
		s.logger.Debug("Dataset unavailable", "slug", slug, "error", err)
		return nil, false
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		s.logger.Debug("Dataset empty", "slug", slug)
		return nil, false
	}

	var data types.RawDataset
	if err := json.Unmarshal(trimmed, &data); err != nil {
		s.logger.Warn("Malformed dataset", "slug", slug, "error", err)
		return nil, false
	}

	return &data, true
}

func init() {
	provider.RegisterSource(DatasetSourceName, func(cfg types.UpstreamConfig, logger *log.Logger) types.DatasetSource {
		return NewDatasetSource(cfg, logger)
	})
}
