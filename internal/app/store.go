package app

import (
	"context"

	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

// Store is the durable persistence port consumed by the engine. The
// engine treats in-memory state as authoritative for the live round;
// store failures are logged, not propagated to clients.
type Store interface {
	// InsertWord persists one accepted word record.
	InsertWord(ctx context.Context, record *domain.WordRecord) error

	// InsertChunk persists one sealed chunk.
	InsertChunk(ctx context.Context, chunk *domain.Chunk) error

	// UnsealedWords returns all word records without a chunk id,
	// ordered by timestamp ascending.
	UnsealedWords(ctx context.Context) ([]*domain.WordRecord, error)

	// SetChunkID stamps the chunk id on the given word records in one
	// batch update.
	SetChunkID(ctx context.Context, chunkID string, wordIDs []string) error

	// RecentWords returns the most recent records ordered oldest
	// first, at most limit entries. Used to warm the live window on
	// startup.
	RecentWords(ctx context.Context, limit int) ([]*domain.WordRecord, error)

	// Chunks returns sealed chunks ordered newest first, at most limit
	// entries.
	Chunks(ctx context.Context, limit int) ([]*domain.Chunk, error)
}
