// Package cache implements the keyed memoization layer shared by all
// workflow runs in a process. Entries never expire; callers Clear between
// independent workloads.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sells-group/integration-desk/internal/textutil"
)

// Kind partitions the cache namespace so triage, retrieval, and raw model
// output entries never collide.
type Kind string

const (
	KindTriage      Kind = "TRIAGE"
	KindRetrieval   Kind = "RETRIEVAL"
	KindLLMResponse Kind = "LLM_RESPONSE"
)

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits        int64          `json:"hits"`
	Misses      int64          `json:"misses"`
	HitRate     float64        `json:"hit_rate"`
	SizePerKind map[Kind]int64 `json:"size_per_kind"`
}

// Cache is the memoization contract. Implementations must allow concurrent
// reads and must not block writes to distinct keys on each other.
type Cache interface {
	// Get returns the stored value and true on a hit.
	Get(kind Kind, key string) ([]byte, bool)
	// Put stores value under (kind, key), replacing any existing entry.
	Put(kind Kind, key string, value []byte)
	// GetOrCompute returns the cached value, or invokes load exactly once
	// per key across concurrent callers and stores its result. A load
	// error is returned without caching anything.
	GetOrCompute(kind Kind, key string, load func() ([]byte, error)) ([]byte, error)
	// Clear drops every entry in every kind and resets counters.
	Clear() error
	// Stats reports hit/miss counters and per-kind sizes.
	Stats() Stats
	// Close releases backing resources.
	Close() error
}

// Key derives the cache key for an input text: folded (lower-cased,
// trimmed, diacritics removed) then hashed with SHA-256.
func Key(text string) string {
	sum := sha256.Sum256([]byte(textutil.Fold(text)))
	return hex.EncodeToString(sum[:])
}
