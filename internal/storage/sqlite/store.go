// Package sqlite persists word records and chunks in a local SQLite
// database opened in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/numero41/SNTNZ-sub000/internal/domain"
	"github.com/numero41/SNTNZ-sub000/internal/storage/sqlite/migrations"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir and runs any
// pending migrations.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "data"
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sntnz.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// InsertWord persists one accepted word record.
func (s *Store) InsertWord(ctx context.Context, record *domain.WordRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO words (id, ts, word, bold, italic, underline, newline, username, score, total_votes, pct, chunk_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		record.ID,
		record.TS.UnixMilli(),
		record.Word,
		boolInt(record.Styles.Bold),
		boolInt(record.Styles.Italic),
		boolInt(record.Styles.Underline),
		boolInt(record.Styles.Newline),
		record.Username,
		record.Score,
		record.TotalVotes,
		record.Pct,
	)
	if err != nil {
		return fmt.Errorf("inserting word: %w", err)
	}
	return nil
}

// InsertChunk persists one sealed chunk.
func (s *Store) InsertChunk(ctx context.Context, chunk *domain.Chunk) error {
	wordsJSON, err := json.Marshal(chunk.Words)
	if err != nil {
		return fmt.Errorf("marshalling word ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, ts, hash, text, words)
		VALUES (?, ?, ?, ?, ?)`,
		chunk.ID,
		chunk.TS.UnixMilli(),
		chunk.Hash,
		chunk.Text,
		string(wordsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting chunk: %w", err)
	}
	return nil
}

// UnsealedWords returns records without a chunk id, ordered by
// timestamp ascending.
func (s *Store) UnsealedWords(ctx context.Context) ([]*domain.WordRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, word, bold, italic, underline, newline, username, score, total_votes, pct, chunk_id
		FROM words WHERE chunk_id IS NULL ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying unsealed words: %w", err)
	}
	defer rows.Close()

	return scanWords(rows)
}

// SetChunkID stamps the chunk id on the listed records in one batch.
func (s *Store) SetChunkID(ctx context.Context, chunkID string, wordIDs []string) error {
	if len(wordIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(wordIDs)), ",")
	args := make([]any, 0, len(wordIDs)+1)
	args = append(args, chunkID)
	for _, id := range wordIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE words SET chunk_id = ? WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("stamping chunk id: %w", err)
	}
	return nil
}

// RecentWords returns up to limit most recent records, oldest first.
func (s *Store) RecentWords(ctx context.Context, limit int) ([]*domain.WordRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, word, bold, italic, underline, newline, username, score, total_votes, pct, chunk_id
		FROM words ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent words: %w", err)
	}
	defer rows.Close()

	words, err := scanWords(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return words, nil
}

// Chunks returns up to limit sealed chunks, newest first.
func (s *Store) Chunks(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, hash, text, words
		FROM chunks ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var (
			chunk     domain.Chunk
			ts        int64
			wordsJSON string
		)
		if err := rows.Scan(&chunk.ID, &ts, &chunk.Hash, &chunk.Text, &wordsJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.TS = time.UnixMilli(ts)
		if err := json.Unmarshal([]byte(wordsJSON), &chunk.Words); err != nil {
			return nil, fmt.Errorf("unmarshalling word ids: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func scanWords(rows *sql.Rows) ([]*domain.WordRecord, error) {
	var words []*domain.WordRecord
	for rows.Next() {
		var (
			record                           domain.WordRecord
			ts                               int64
			bold, italic, underline, newline int
			chunkID                          sql.NullString
		)
		if err := rows.Scan(&record.ID, &ts, &record.Word, &bold, &italic, &underline, &newline,
			&record.Username, &record.Score, &record.TotalVotes, &record.Pct, &chunkID); err != nil {
			return nil, fmt.Errorf("scanning word: %w", err)
		}
		record.TS = time.UnixMilli(ts)
		record.Styles = domain.StyleSet{
			Bold:      bold == 1,
			Italic:    italic == 1,
			Underline: underline == 1,
			Newline:   newline == 1,
		}
		record.ChunkID = chunkID.String
		words = append(words, &record)
	}
	return words, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
