package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig contains configuration for the PostgreSQL store.
type PostgresConfig struct {
	// DSN is the connection string.
	DSN string

	// Table is the table name (see TableName).
	// Default: "predictions"
	Table string

	// MaxConns is the maximum pool size.
	// Default: 10
	MaxConns int32
}

// Postgres implements Store on a PostgreSQL database through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// NewPostgres connects to the database and creates the predictions table if
// it does not exist.
func NewPostgres(ctx context.Context, config PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	table, err := TableName(config.Table)
	if err != nil {
		return nil, newError("postgres", "open", err)
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, newError("postgres", "parse_dsn", err)
	}
	poolConfig.MaxConns = config.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, newError("postgres", "open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, newError("postgres", "ping", err)
	}

	p := &Postgres{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger.With("component", "store.postgres"),
	}

	if _, err := pool.Exec(ctx, postgresSchema(p.table, table)); err != nil {
		pool.Close()
		return nil, newError("postgres", "create_schema", err)
	}

	p.logger.Info("Postgres store initialized", "table", table, "max_conns", config.MaxConns)
	return p, nil
}

func postgresSchema(quoted, raw string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    prediction_id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    model_type TEXT NOT NULL,
    prediction_type TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    result JSONB NOT NULL,
    importance JSONB
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (created_at);
`, quoted, pgx.Identifier{"idx_" + raw + "_created_at"}.Sanitize())
}

// Put implements Store.
func (p *Postgres) Put(ctx context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return newError("postgres", "put", err)
	}

	var importance []byte
	if len(record.Importance) > 0 {
		data, err := json.Marshal(record.Importance)
		if err != nil {
			return newError("postgres", "put", err)
		}
		importance = data
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (prediction_id, patient_id, model_type, prediction_type, created_at, result, importance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (prediction_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			model_type = EXCLUDED.model_type,
			prediction_type = EXCLUDED.prediction_type,
			created_at = EXCLUDED.created_at,
			result = EXCLUDED.result,
			importance = EXCLUDED.importance
	`, p.table)

	_, err := p.pool.Exec(ctx, query,
		record.PredictionID, record.PatientID, record.ModelType, record.PredictionType,
		record.CreatedAt, string(record.Result), importance,
	)
	if err != nil {
		return newError("postgres", "put", err)
	}
	return nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, predictionID string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT prediction_id, patient_id, model_type, prediction_type, created_at, result, importance
		FROM %s WHERE prediction_id = $1
	`, p.table)

	var (
		r          Record
		result     []byte
		importance []byte
	)
	err := p.pool.QueryRow(ctx, query, predictionID).Scan(
		&r.PredictionID, &r.PatientID, &r.ModelType, &r.PredictionType,
		&r.CreatedAt, &result, &importance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newError("postgres", "get", err)
	}

	r.Result = json.RawMessage(result)
	if len(importance) > 0 {
		if err := json.Unmarshal(importance, &r.Importance); err != nil {
			return nil, newError("postgres", "get", err)
		}
	}
	return &r, nil
}

// DeleteBefore implements Store.
func (p *Postgres) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", p.table)
	tag, err := p.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, newError("postgres", "delete", err)
	}
	return tag.RowsAffected(), nil
}

// Count implements Store.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table)
	if err := p.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, newError("postgres", "count", err)
	}
	return count, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	p.logger.Info("Postgres store closed")
	return nil
}
