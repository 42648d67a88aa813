package storage

import (
	"time"
)

// Store is an append-only journal of drain rounds. Nothing in the drain
// path reads it back; it exists for operators.
type Store interface {
	AppendRound(rec *RoundRecord) error
	ListRounds(limit int) ([]*RoundRecord, error)
	Close() error
}

// RoundRecord is one journal entry
type RoundRecord struct {
	Seq       uint64        `json:"seq"`
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Round     int           `json:"round"`
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Status      string   `json:"status,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Delta       float64  `json:"delta,omitempty"`
	TotalWeight float64  `json:"total_weight,omitempty"`
	Backfills   int      `json:"backfills,omitempty"`
	LatencyMs   *float64 `json:"latency_ms,omitempty"`
	Changes     []Change `json:"changes,omitempty"`
	Error       string   `json:"error,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Change is a weight mutation inside a round
type Change struct {
	OSD  string  `json:"osd"`
	From float64 `json:"from"`
	To   float64 `json:"to"`
}
