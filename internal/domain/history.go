package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one processed transcript.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	Text        string    `json:"text"`
	Sentences   int       `json:"sentences"`
	Influence   float64   `json:"influence"`
	Natural     Vector    `json:"natural"`
	Final       Vector    `json:"final"`
	AnchorName  string    `json:"anchor_name,omitempty"`
	EmptySignal bool      `json:"empty_signal"`
}

// HistoryRepository persists processed transcripts. Recent returns newest first.
type HistoryRepository interface {
	Record(ctx context.Context, entry HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)
}
