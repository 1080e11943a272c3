package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"intentgate/internal/types"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS turn_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	turn_id     TEXT NOT NULL,
	utterance   TEXT NOT NULL,
	source_tier INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	outcome     TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	latency_ns  INTEGER NOT NULL,
	at          DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_events_session ON turn_events(session_id);
`

// SQLiteSink appends events to a local database for offline analysis.
type SQLiteSink struct {
	db *sqlx.DB
}

// OpenSQLiteSink opens (and creates if needed) the event database.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	// The dispatcher is the only writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(eventsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create telemetry schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

type eventRow struct {
	SessionID  string    `db:"session_id"`
	TurnID     string    `db:"turn_id"`
	Utterance  string    `db:"utterance"`
	SourceTier int       `db:"source_tier"`
	Confidence float64   `db:"confidence"`
	Outcome    string    `db:"outcome"`
	Reason     string    `db:"reason"`
	LatencyNS  int64     `db:"latency_ns"`
	At         time.Time `db:"at"`
}

func (s *SQLiteSink) Write(ctx context.Context, ev Event) error {
	row := eventRow{
		SessionID:  ev.SessionID,
		TurnID:     ev.TurnID,
		Utterance:  ev.Utterance,
		SourceTier: int(ev.SourceTier),
		Confidence: ev.Confidence,
		Outcome:    string(ev.Outcome),
		Reason:     string(ev.Reason),
		LatencyNS:  int64(ev.Latency),
		At:         ev.At.UTC(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO turn_events (session_id, turn_id, utterance, source_tier, confidence, outcome, reason, latency_ns, at)
		VALUES (:session_id, :turn_id, :utterance, :source_tier, :confidence, :outcome, :reason, :latency_ns, :at)`, row)
	if err != nil {
		return fmt.Errorf("insert turn event: %w", err)
	}
	return nil
}

// Recent returns the latest events of a session, newest first. An empty
// session id returns events of all sessions.
func (s *SQLiteSink) Recent(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []eventRow
	var err error
	const cols = `session_id, turn_id, utterance, source_tier, confidence, outcome, reason, latency_ns, at`
	if sessionID == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+cols+` FROM turn_events ORDER BY id DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+cols+` FROM turn_events WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query turn events: %w", err)
	}

	out := make([]Event, len(rows))
	for i, r := range rows {
		out[i] = Event{
			SessionID:  r.SessionID,
			TurnID:     r.TurnID,
			Utterance:  r.Utterance,
			SourceTier: types.Tier(r.SourceTier),
			Confidence: r.Confidence,
			Outcome:    types.Status(r.Outcome),
			Reason:     types.ReasonCode(r.Reason),
			Latency:    time.Duration(r.LatencyNS),
			At:         r.At,
		}
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
