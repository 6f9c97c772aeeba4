package telemetry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// Store is an append-only sqlite-backed log of Frames, grounded on
// internal/checkpoint/store.go's migrate-then-insert shape. It
// implements actor.Sink so the application supervisor can subscribe it
// directly to the router's "telemetry" route.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (creating if necessary) a sqlite database at path and
// runs its migration. Uses modernc.org/sqlite, a pure-Go driver,
// instead of the teacher's cgo-based mattn/go-sqlite3 — the billboard
// target is a Raspberry-Pi-class e-ink controller, and a cgo
// cross-toolchain requirement there is a real deployment cost the
// teacher's server-class deployment never had to pay.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open telemetry store: %v", coreerr.Internal, err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS telemetry_frames (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			layer TEXT NOT NULL,
			state TEXT NOT NULL,
			track_id TEXT,
			message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_telemetry_frames_timestamp
			ON telemetry_frames(timestamp DESC);

		CREATE INDEX IF NOT EXISTS idx_telemetry_frames_layer
			ON telemetry_frames(layer);
	`)
	if err != nil {
		return fmt.Errorf("%w: migrate telemetry store: %v", coreerr.Internal, err)
	}
	return nil
}

// Accept implements actor.Sink: it persists any Frame it receives and
// ignores every other message type, since a router topic may in
// principle carry more than this store cares about.
func (s *Store) Accept(msg any) error {
	f, ok := msg.(Frame)
	if !ok {
		return nil
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO telemetry_frames (id, timestamp, layer, state, track_id, message) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Timestamp.UTC().Format(time.RFC3339Nano), f.Layer, f.State, f.TrackID, f.Message,
	)
	if err != nil {
		return fmt.Errorf("%w: insert telemetry frame: %v", coreerr.Internal, err)
	}
	return nil
}

// Recent returns up to limit frames, most recent first.
func (s *Store) Recent(limit int) ([]Frame, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, timestamp, layer, state, track_id, message FROM telemetry_frames ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query telemetry frames: %v", coreerr.Internal, err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var f Frame
		var ts string
		if err := rows.Scan(&f.ID, &ts, &f.Layer, &f.State, &f.TrackID, &f.Message); err != nil {
			return nil, fmt.Errorf("%w: scan telemetry frame: %v", coreerr.Internal, err)
		}
		f.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
