package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/domain/repository"
	pkgch "EconCast/pkg/clickhouse"
	applogger "EconCast/pkg/logger"
)

const insertChunk = 2000

// ClickHouseSeriesStore implements Storage over a ReplacingMergeTree keyed by
// (indicator, date). Re-ingesting a date replaces its value.
type ClickHouseSeriesStore struct {
	db     *sql.DB
	table  string
	source string
	l      *applogger.Logger
}

// NewClickHouseSeriesStore creates the store on the client's database.
func NewClickHouseSeriesStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseSeriesStore {
	return &ClickHouseSeriesStore{
		db:     ch.DB(),
		table:  pkgch.QuoteIdent(ch.Database()) + ".observations",
		source: "bcb",
		l:      l.Component("series_store"),
	}
}

var _ repository.Storage = (*ClickHouseSeriesStore)(nil)

func schema(table string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
            indicator   LowCardinality(String),
            date        Date,
            value       Float64,
            source      LowCardinality(String),
            ingested_at DateTime64(3) DEFAULT now64(3)
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (indicator, date)`,
	}
}

func (s *ClickHouseSeriesStore) Init(ctx context.Context) error {
	for _, stmt := range schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSeriesStore) StoreBatch(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	start := time.Now()
	now := start.UTC()

	for lo := 0; lo < len(obs); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(obs) {
			hi = len(obs)
		}

		args := make([]interface{}, 0, (hi-lo)*5)
		for _, o := range obs[lo:hi] {
			args = append(args, string(o.Indicator), models.Day(o.Date), o.Value, s.source, now)
		}
		if _, err := s.db.ExecContext(ctx, insertQuery(s.table, hi-lo), args...); err != nil {
			s.l.Error("clickhouse insert error",
				applogger.Int("rows", hi-lo),
				applogger.Error(err))
			return fmt.Errorf("insert observations: %w", err)
		}
	}

	s.l.Debug("clickhouse insert ok",
		applogger.Int("rows", len(obs)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Load returns the latest limit points of ind within [from, to], oldest first.
func (s *ClickHouseSeriesStore) Load(ctx context.Context, ind models.Indicator, from, to time.Time, limit int) (models.TimeSeries, error) {
	start := time.Now()
	q, args := loadQuery(s.table, ind, from, to, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse load query error",
			applogger.String("indicator", string(ind)),
			applogger.Error(err))
		return nil, fmt.Errorf("load %s: %w", ind, err)
	}
	defer rows.Close()

	out := make(models.TimeSeries, 0, 256)
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		p.Date = models.Day(p.Date)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// query is DESC so LIMIT keeps the newest points
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse load ok",
		applogger.String("indicator", string(ind)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// LastDate returns the newest stored date, or the zero time when none.
func (s *ClickHouseSeriesStore) LastDate(ctx context.Context, ind models.Indicator) (time.Time, error) {
	var last sql.NullTime
	q := "SELECT maxOrNull(date) FROM " + s.table + " WHERE indicator = ?"
	if err := s.db.QueryRowContext(ctx, q, string(ind)).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("last date %s: %w", ind, err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return models.Day(last.Time), nil
}

func (s *ClickHouseSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSeriesStore) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}

func insertQuery(table string, rows int) string {
	values := make([]string, rows)
	for i := range values {
		values[i] = "(?, ?, ?, ?, ?)"
	}
	return fmt.Sprintf("INSERT INTO %s (indicator, date, value, source, ingested_at) VALUES %s",
		table, strings.Join(values, ","))
}

func loadQuery(table string, ind models.Indicator, from, to time.Time, limit int) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{string(ind)}

	b.WriteString("SELECT date, argMax(value, ingested_at) AS value FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE indicator = ?")
	if !from.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, models.Day(from))
	}
	if !to.IsZero() {
		b.WriteString(" AND date <= ?")
		args = append(args, models.Day(to))
	}
	b.WriteString(" GROUP BY date ORDER BY date DESC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return b.String(), args
}
