package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rockguard/internal/model"
)

// Fixed-width UTC timestamps sort lexically in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:rockguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	return s.initSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			source TEXT NOT NULL,
			risk_probability REAL NOT NULL,
			reading_json TEXT NOT NULL,
			report_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_ts ON reports(ts)`,
	})
}

func (s *sqliteStore) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, ts, source, risk_probability, reading_json, report_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.GeneratedAt.UTC().Format(sqliteTimeLayout),
		rec.Source,
		rec.Report.RiskProbability,
		encodeJSON(rec.Reading),
		encodeJSON(rec.Report),
	)
	return err
}

func (s *sqliteStore) ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, source, reading_json, report_json FROM reports ORDER BY ts DESC LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReportRecord
	for rows.Next() {
		var rec model.ReportRecord
		var ts, readingJSON, reportJSON string
		if err := rows.Scan(&rec.ID, &ts, &rec.Source, &readingJSON, &reportJSON); err != nil {
			return nil, err
		}
		if rec.GeneratedAt, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, err
		}
		if err := decodeRecord(&rec, readingJSON, reportJSON); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
