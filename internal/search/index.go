// Package search provides a simple, deterministic, concurrency-safe in-memory
// contact index for the client's contact picker. It is intentionally small
// and dependency-free: entries are upserted from change notifications, the
// index never touches the database, and queries are pure reads.
//
// Matching is case-insensitive: a query matches an entry when it is a prefix
// of any word of the profile name, a substring of the whole name, or a prefix
// of the phone number (with or without the leading "+"). Scoring prefers
// word-prefix hits over bare substrings, and ties break on recipient id so
// result order is stable.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// Result is one ranked contact hit.
type Result struct {
	ID    domain.RecipientID
	Name  string
	E164  string
	Score float64
}

// Index is the minimal interface served to the HTTP layer.
type Index interface {
	Query(q string, limit int) []Result
}

type entry struct {
	name string
	e164 string
}

// ContactIndex is the default Index implementation.
type ContactIndex struct {
	mu      sync.RWMutex
	entries map[domain.RecipientID]entry
}

// NewContactIndex returns an empty index.
func NewContactIndex() *ContactIndex {
	return &ContactIndex{entries: make(map[domain.RecipientID]entry)}
}

// Upsert adds or replaces the indexed fields for a recipient. Records with
// neither a name nor a number are dropped from the index.
func (ix *ContactIndex) Upsert(id domain.RecipientID, name, e164 string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if name == "" && e164 == "" {
		delete(ix.entries, id)
		return
	}
	ix.entries[id] = entry{name: name, e164: e164}
}

// Remove deletes a recipient from the index (merged-away rows).
func (ix *ContactIndex) Remove(id domain.RecipientID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, id)
}

// Len reports the number of indexed contacts.
func (ix *ContactIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Query implements Index. limit <= 0 returns every match.
func (ix *ContactIndex) Query(q string, limit int) []Result {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	ix.mu.RLock()
	var out []Result
	for id, e := range ix.entries {
		if s := score(q, e); s > 0 {
			out = append(out, Result{ID: id, Name: e.name, E164: e.e164, Score: s})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func score(q string, e entry) float64 {
	name := strings.ToLower(e.name)

	if name != "" {
		if strings.HasPrefix(name, q) {
			return 1.0
		}
		for _, w := range strings.Fields(name) {
			if strings.HasPrefix(w, q) {
				return 0.9
			}
		}
		if strings.Contains(name, q) {
			return 0.5
		}
	}

	if e.e164 != "" {
		num := strings.TrimPrefix(e.e164, "+")
		probe := strings.TrimPrefix(q, "+")
		if probe != "" && strings.HasPrefix(num, probe) {
			return 0.8
		}
	}
	return 0
}
