package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	received_at  TEXT NOT NULL,
	text         TEXT NOT NULL,
	sentences    INTEGER NOT NULL,
	influence    REAL NOT NULL,
	natural      TEXT NOT NULL,
	final        TEXT NOT NULL,
	anchor_name  TEXT NOT NULL DEFAULT '',
	empty_signal INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcripts_received_at ON transcripts(received_at);
`

// HistoryRepository persists processed transcripts in a SQLite file.
type HistoryRepository struct {
	db *sql.DB
}

var _ domain.HistoryRepository = (*HistoryRepository)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*HistoryRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize history database: %w", err)
		}
	}
	return &HistoryRepository{db: db}, nil
}

func (r *HistoryRepository) Record(ctx context.Context, entry domain.HistoryEntry) error {
	natural, err := json.Marshal(entry.Natural)
	if err != nil {
		return fmt.Errorf("failed to encode natural vibe: %w", err)
	}
	final, err := json.Marshal(entry.Final)
	if err != nil {
		return fmt.Errorf("failed to encode final vibe: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcripts
		(id, received_at, text, sentences, influence, natural, final, anchor_name, empty_signal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		entry.ReceivedAt.UTC().Format(time.RFC3339Nano),
		entry.Text,
		entry.Sentences,
		entry.Influence,
		string(natural),
		string(final),
		entry.AnchorName,
		entry.EmptySignal,
	)
	if err != nil {
		return fmt.Errorf("failed to record transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, received_at, text, sentences, influence, natural, final, anchor_name, empty_signal
		FROM transcripts
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e              domain.HistoryEntry
			id, receivedAt string
			natural, final string
		)
		if err := rows.Scan(&id, &receivedAt, &e.Text, &e.Sentences, &e.Influence,
			&natural, &final, &e.AnchorName, &e.EmptySignal); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid history id %q: %w", id, err)
		}
		if e.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt); err != nil {
			return nil, fmt.Errorf("invalid history timestamp %q: %w", receivedAt, err)
		}
		if err := json.Unmarshal([]byte(natural), &e.Natural); err != nil {
			return nil, fmt.Errorf("failed to decode natural vibe: %w", err)
		}
		if err := json.Unmarshal([]byte(final), &e.Final); err != nil {
			return nil, fmt.Errorf("failed to decode final vibe: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Health pings the database.
func (r *HistoryRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
