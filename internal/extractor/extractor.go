// Package extractor turns an upstream dataset into a numbered episode list.
package extractor

import (
	"fmt"

	"github.com/mydehq/anitrack/internal/types"
)

// Extract numbers episodes from 1, consuming the canon, mixed and filler
// buckets in that order. A dataset without a truthy total marker yields an
// empty list.
func Extract(raw *types.RawDataset) []types.EpisodeSpec {
	episodes := []types.EpisodeSpec{}
	if !raw.HasTotal() {
		return episodes
	}

	buckets := []struct {
		entries []types.RawEpisode
		class   types.Classification
	}{
		{raw.Canon, types.ClassCanon},
		{raw.Mixed, types.ClassMixed},
		{raw.Filler, types.ClassFiller},
	}

	number := 1
	for _, b := range buckets {
		for _, entry := range b.entries {
			title := entry.Title
			if title == "" {
				title = fmt.Sprintf("Episode %d", number)
			}
			episodes = append(episodes, types.EpisodeSpec{
				Number:         number,
				Title:          title,
				Classification: b.class,
			})
			number++
		}
	}

	return episodes
}

// Classified is an extracted or stored episode
type Classified interface {
	Class() types.Classification
}

// Summary counts episodes per classification
func Summary[E Classified](episodes []E) map[types.Classification]int {
	counts := make(map[types.Classification]int)
	for _, ep := range episodes {
		counts[ep.Class()]++
	}
	return counts
}
