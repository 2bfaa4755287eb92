package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Chunk is an immutable, hash-identified batch of consecutively
// accepted words sealed out of the ledger.
type Chunk struct {
	ID    string    `json:"id"`
	TS    time.Time `json:"ts"` // timestamp of the first included word
	Hash  string    `json:"hash"`
	Text  string    `json:"text"`
	Words []string  `json:"words"` // IDs of the included word records
}

// ChunkHash computes the SHA-256 content hash over a canonical
// serialization of the ordered word list. An identical ordered list
// always produces an identical hash, so sealed chunks can be
// re-verified from their contents.
func ChunkHash(words []*WordRecord) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(strconv.FormatInt(w.TS.UnixMilli(), 10))
		b.WriteByte('|')
		b.WriteString(w.Word)
		b.WriteByte('|')
		b.WriteString(w.Styles.Signature())
		b.WriteByte('|')
		b.WriteString(w.Username)
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ChunkText joins the ordered words with single spaces.
func ChunkText(words []*WordRecord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}
