package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rockguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/rockguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	return s.initSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL,
			risk_probability DOUBLE PRECISION NOT NULL,
			reading_json JSONB NOT NULL,
			report_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_ts ON reports(ts)`,
	})
}

func (s *postgresStore) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, ts, source, risk_probability, reading_json, report_json)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID,
		rec.GeneratedAt.UTC(),
		rec.Source,
		rec.Report.RiskProbability,
		encodeJSON(rec.Reading),
		encodeJSON(rec.Report),
	)
	return err
}

func (s *postgresStore) ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, source, reading_json::text, report_json::text FROM reports ORDER BY ts DESC LIMIT $1`,
		clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReportRecord
	for rows.Next() {
		var rec model.ReportRecord
		var readingJSON, reportJSON string
		if err := rows.Scan(&rec.ID, &rec.GeneratedAt, &rec.Source, &readingJSON, &reportJSON); err != nil {
			return nil, err
		}
		rec.GeneratedAt = rec.GeneratedAt.UTC()
		if err := decodeRecord(&rec, readingJSON, reportJSON); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
