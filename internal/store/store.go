// Package store persists the audit trail and candle history in SQLite. The
// audit tables are write-only from the decision path; the candle table feeds
// warmup and historical replay.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/runtime"
	"github.com/maxrule98/simple-bot/internal/signal"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS signals (
    id TEXT PRIMARY KEY,
    instrument TEXT NOT NULL,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    confidence REAL NOT NULL,
    reason TEXT,
    close_fraction REAL DEFAULT 0,
    signal_time DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS position_transitions (
    id TEXT PRIMARY KEY,
    instrument TEXT NOT NULL,
    position_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    qty REAL NOT NULL,
    price REAL NOT NULL,
    transition_time DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS candles (
    instrument TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    open_time DATETIME NOT NULL,
    open REAL NOT NULL,
    high REAL NOT NULL,
    low REAL NOT NULL,
    close REAL NOT NULL,
    volume REAL NOT NULL,
    PRIMARY KEY (instrument, timeframe, open_time)
);

CREATE INDEX IF NOT EXISTS idx_signals_instrument_time
    ON signals(instrument, signal_time);
CREATE INDEX IF NOT EXISTS idx_transitions_position
    ON position_transitions(position_id);
`

// Store wraps the SQL handle for easier swapping/testing.
type Store struct {
	DB *sql.DB
}

// Open creates the database file (and parent directory) if needed and
// applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers a single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RecordSignal implements runtime.AuditSink.
func (s *Store) RecordSignal(instrument string, sig signal.Signal) error {
	_, err := s.DB.Exec(`
		INSERT INTO signals (id, instrument, type, source, confidence, reason, close_fraction, signal_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), instrument, string(sig.Type), string(sig.Source),
		sig.Confidence, sig.Reason, sig.CloseFraction, sig.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	return nil
}

// RecordTransition implements runtime.AuditSink.
func (s *Store) RecordTransition(instrument string, tr runtime.Transition) error {
	_, err := s.DB.Exec(`
		INSERT INTO position_transitions (id, instrument, position_id, kind, qty, price, transition_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), instrument, tr.PositionID, string(tr.Kind),
		tr.Quantity, tr.Price, tr.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// SaveBars upserts candles, so repeated backfills converge instead of
// erroring on overlap.
func (s *Store) SaveBars(ctx context.Context, instrument string, tf market.Timeframe, bars []market.Bar) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles (instrument, timeframe, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument, timeframe, open_time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx,
			instrument, string(tf), bar.OpenTime.UTC(),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			return fmt.Errorf("save bar %s: %w", bar.OpenTime, err)
		}
	}
	return tx.Commit()
}

// LoadBars returns candles ordered by open time, optionally bounded. A zero
// "until" means no upper bound; limit <= 0 means no limit.
func (s *Store) LoadBars(ctx context.Context, instrument string, tf market.Timeframe, from, until time.Time, limit int) ([]market.Bar, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE instrument = ? AND timeframe = ? AND open_time >= ?`
	args := []any{instrument, string(tf), from.UTC()}
	if !until.IsZero() {
		query += " AND open_time < ?"
		args = append(args, until.UTC())
	}
	query += " ORDER BY open_time ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		var bar market.Bar
		if err := rows.Scan(&bar.OpenTime, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, err
		}
		bar.OpenTime = bar.OpenTime.UTC()
		out = append(out, bar)
	}
	return out, rows.Err()
}

// LastBars returns the newest n candles in chronological order, for buffer
// warmup before going live.
func (s *Store) LastBars(ctx context.Context, instrument string, tf market.Timeframe, n int) ([]market.Bar, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE instrument = ? AND timeframe = ?
		ORDER BY open_time DESC LIMIT ?`,
		instrument, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("load last bars: %w", err)
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		var bar market.Bar
		if err := rows.Scan(&bar.OpenTime, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, err
		}
		bar.OpenTime = bar.OpenTime.UTC()
		out = append(out, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
