// Package fingerprint computes content digests for extracted episode batches.
package fingerprint

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"github.com/mydehq/anitrack/internal/types"
)

// Compute returns the lowercase hex SHA-1 of the compact JSON encoding of
// episodes. Order, length and every field participate in the digest.
func Compute(episodes []types.EpisodeSpec) string {
	if episodes == nil {
		episodes = []types.EpisodeSpec{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// EpisodeSpec only holds strings and ints, encoding cannot fail
	_ = enc.Encode(episodes)

	sum := sha1.Sum(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}
