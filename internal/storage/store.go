package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"rockguard/internal/config"
	"rockguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveReport(ctx context.Context, rec model.ReportRecord) error
	// ListReports returns up to limit records, newest first.
	ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error)
}

// NewStore returns nil when storage is disabled.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) initSchema(ctx context.Context, stmts []string) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func decodeRecord(rec *model.ReportRecord, readingJSON, reportJSON string) error {
	if err := json.Unmarshal([]byte(readingJSON), &rec.Reading); err != nil {
		return err
	}
	return json.Unmarshal([]byte(reportJSON), &rec.Report)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 10000 {
		return 100
	}
	return limit
}
