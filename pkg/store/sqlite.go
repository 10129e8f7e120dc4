package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names.
const (
	// DriverCGO is the mattn/go-sqlite3 driver
	DriverCGO = "sqlite3"

	// DriverPure is the modernc.org/sqlite driver, which needs no C toolchain
	DriverPure = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects DriverCGO or DriverPure.
	// Default: DriverPure
	Driver string

	// Table is the table name (see TableName).
	// Default: "predictions"
	Table string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int
}

// SQLite implements Store on a SQLite database.
type SQLite struct {
	db     *sql.DB
	config SQLiteConfig
	table  string
	logger *slog.Logger
}

// NewSQLite opens the database at config.Path and creates the predictions
// table if it does not exist.
func NewSQLite(ctx context.Context, config SQLiteConfig, logger *slog.Logger) (*SQLite, error) {
	if config.Driver == "" {
		config.Driver = DriverPure
	}
	if config.Driver != DriverCGO && config.Driver != DriverPure {
		return nil, newError("sqlite", "open", fmt.Errorf("unknown driver %q", config.Driver))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	table, err := TableName(config.Table)
	if err != nil {
		return nil, newError("sqlite", "open", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, newError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLite{
		db:     db,
		config: config,
		table:  table,
		logger: logger.With("component", "store.sqlite"),
	}

	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"table", table,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	if s.config.WALMode {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return newError("sqlite", "enable_wal", err)
		}
	}

	busy := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
	if _, err := s.db.ExecContext(ctx, busy); err != nil {
		return newError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.ExecContext(ctx, sqliteSchema(s.table)); err != nil {
		return newError("sqlite", "create_schema", err)
	}
	return nil
}

func sqliteSchema(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    prediction_id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    model_type TEXT NOT NULL,
    prediction_type TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    result TEXT NOT NULL,
    importance TEXT
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
CREATE INDEX IF NOT EXISTS idx_%[1]s_patient_id ON %[1]s(patient_id);
`, table)
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return newError("sqlite", "put", err)
	}

	importance, err := encodeImportance(record.Importance)
	if err != nil {
		return newError("sqlite", "put", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (prediction_id, patient_id, model_type, prediction_type, created_at, result, importance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(prediction_id) DO UPDATE SET
			patient_id = excluded.patient_id,
			model_type = excluded.model_type,
			prediction_type = excluded.prediction_type,
			created_at = excluded.created_at,
			result = excluded.result,
			importance = excluded.importance
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		record.PredictionID, record.PatientID, record.ModelType, record.PredictionType,
		record.CreatedAt.UnixNano(), string(record.Result), importance,
	)
	if err != nil {
		return newError("sqlite", "put", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, predictionID string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT prediction_id, patient_id, model_type, prediction_type, created_at, result, importance
		FROM %s WHERE prediction_id = ?
	`, s.table)

	var (
		r          Record
		createdAt  int64
		result     string
		importance sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, predictionID).Scan(
		&r.PredictionID, &r.PatientID, &r.ModelType, &r.PredictionType,
		&createdAt, &result, &importance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newError("sqlite", "get", err)
	}

	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.Result = json.RawMessage(result)
	if importance.Valid {
		if err := json.Unmarshal([]byte(importance.String), &r.Importance); err != nil {
			return nil, newError("sqlite", "get", err)
		}
	}
	return &r, nil
}

// DeleteBefore implements Store.
func (s *SQLite) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", s.table)
	result, err := s.db.ExecContext(ctx, query, cutoff.UnixNano())
	if err != nil {
		return 0, newError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, newError("sqlite", "delete", err)
	}
	return count, nil
}

// Count implements Store.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, newError("sqlite", "count", err)
	}
	return count, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return newError("sqlite", "close", err)
	}
	s.logger.Info("SQLite store closed")
	return nil
}

// encodeImportance returns nil for an empty vector so the column stays NULL.
func encodeImportance(importance map[string]float64) (any, error) {
	if len(importance) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(importance)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
