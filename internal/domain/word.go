package domain

import "time"

// WordRecord is one accepted word in the durable ledger. Records are
// immutable once created except for the single ChunkID stamp applied by
// the chunk sealer.
type WordRecord struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Word       string    `json:"word"`
	Styles     StyleSet  `json:"styles"`
	Username   string    `json:"username"`
	Score      int       `json:"score"`
	TotalVotes int       `json:"totalVotes"`
	Pct        float64   `json:"pct"`
	ChunkID    string    `json:"chunkId,omitempty"`
}
