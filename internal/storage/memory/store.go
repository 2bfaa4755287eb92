// Package memory provides an in-memory Store implementation used by
// tests and by runs without a durable backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

// Store keeps word records and chunks in memory.
type Store struct {
	mu     sync.Mutex
	words  []*domain.WordRecord
	chunks []*domain.Chunk
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

// InsertWord stores a copy of the record.
func (s *Store) InsertWord(_ context.Context, record *domain.WordRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.words = append(s.words, &clone)
	return nil
}

// InsertChunk stores a copy of the chunk.
func (s *Store) InsertChunk(_ context.Context, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *chunk
	clone.Words = append([]string(nil), chunk.Words...)
	s.chunks = append(s.chunks, &clone)
	return nil
}

// UnsealedWords returns records without a chunk id, ordered by
// timestamp ascending.
func (s *Store) UnsealedWords(_ context.Context) ([]*domain.WordRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.WordRecord, 0)
	for _, w := range s.words {
		if w.ChunkID == "" {
			clone := *w
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.Before(out[j].TS)
	})
	return out, nil
}

// SetChunkID stamps the chunk id on the listed records.
func (s *Store) SetChunkID(_ context.Context, chunkID string, wordIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]bool, len(wordIDs))
	for _, id := range wordIDs {
		ids[id] = true
	}
	for _, w := range s.words {
		if ids[w.ID] {
			w.ChunkID = chunkID
		}
	}
	return nil
}

// RecentWords returns up to limit most recent records, oldest first.
func (s *Store) RecentWords(_ context.Context, limit int) ([]*domain.WordRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]*domain.WordRecord(nil), s.words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TS.Before(sorted[j].TS)
	})
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	out := make([]*domain.WordRecord, len(sorted))
	for i, w := range sorted {
		clone := *w
		out[i] = &clone
	}
	return out, nil
}

// Chunks returns up to limit chunks, newest first.
func (s *Store) Chunks(_ context.Context, limit int) ([]*domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]*domain.Chunk(nil), s.chunks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TS.After(sorted[j].TS)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*domain.Chunk, len(sorted))
	for i, c := range sorted {
		clone := *c
		clone.Words = append([]string(nil), c.Words...)
		out[i] = &clone
	}
	return out, nil
}
