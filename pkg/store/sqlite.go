package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"pathplanner/pkg/db"
)

// Store defines the repository interface.
// Consumers should depend on the specific sub-interface they need.
type Store interface {
	StateStore
	TelemetryStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("Store: failed to read state", "key", key, "error", err)
		return "", false
	}
	return val.String, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Telemetry ---

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *SQLiteStore) SaveTelemetry(ctx context.Context, rec *TelemetryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_log (session, received_at, lat, lon, alt, heading, raw) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Session, rec.ReceivedAt.UTC(), nullFloat(rec.Lat), nullFloat(rec.Lon), nullFloat(rec.Alt), nullFloat(rec.Heading), rec.Raw)
	return err
}

// RecentTelemetry returns up to limit records of a session, oldest first.
func (s *SQLiteStore) RecentTelemetry(ctx context.Context, session string, limit int) ([]TelemetryRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session, received_at, lat, lon, alt, heading, raw FROM (
			SELECT id, session, received_at, lat, lon, alt, heading, raw FROM telemetry_log
			WHERE session = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryRecord
	for rows.Next() {
		var (
			rec                    TelemetryRecord
			lat, lon, alt, heading sql.NullFloat64
			raw                    sql.NullString
		)
		if err := rows.Scan(&rec.Session, &rec.ReceivedAt, &lat, &lon, &alt, &heading, &raw); err != nil {
			return nil, err
		}
		rec.Lat, rec.Lon, rec.Alt, rec.Heading = floatPtr(lat), floatPtr(lon), floatPtr(alt), floatPtr(heading)
		rec.Raw = raw.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneTelemetry removes records older than the specified duration.
func (s *SQLiteStore) PruneTelemetry(ctx context.Context, olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC()
	res, err := s.db.ExecContext(ctx, "DELETE FROM telemetry_log WHERE received_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
