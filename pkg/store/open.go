package store

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/prognos/pkg/config"
)

// Open creates the store selected by cfg.Backend. name is the predictions
// store name; it becomes the SQL table or blob container.
func Open(ctx context.Context, cfg config.StoreConfig, name string, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := NewSQLite(ctx, SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			Table:       name,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    name,
			MaxConns: cfg.Postgres.MaxConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "azblob":
		s, err := NewAzureBlob(ctx, AzureBlobConfig{
			Container:        name,
			ConnectionString: cfg.Azure.ConnectionString,
			AccountURL:       cfg.Azure.AccountURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
