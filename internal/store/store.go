// Package store persists daily records, source summaries and Places rankings in Postgres.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
)

var (
	ErrInvalidMetric  = eris.New("store: invalid metric")
	ErrInvalidGroupBy = eris.New("store: invalid group_by")
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_records (
	id           BIGSERIAL PRIMARY KEY,
	product      TEXT NOT NULL,
	location     TEXT NOT NULL,
	is_city      BOOLEAN NOT NULL,
	total_count  INTEGER NOT NULL DEFAULT 0,
	ai_platform  TEXT NOT NULL,
	date         CHAR(6) NOT NULL,
	day          CHAR(2) NOT NULL,
	competitor_1 INTEGER NOT NULL DEFAULT 0,
	competitor_2 INTEGER NOT NULL DEFAULT 0,
	competitor_3 INTEGER NOT NULL DEFAULT 0,
	competitor_4 INTEGER NOT NULL DEFAULT 0,
	rank         INTEGER,
	sentiment    DOUBLE PRECISION,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS daily_records_month_idx ON daily_records (date, is_city, ai_platform);

CREATE TABLE IF NOT EXISTS source_summaries (
	id          BIGSERIAL PRIMARY KEY,
	ai_platform TEXT NOT NULL,
	date        CHAR(6) NOT NULL,
	day         CHAR(2) NOT NULL,
	sources     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS source_summaries_month_idx ON source_summaries (ai_platform, date);

CREATE TABLE IF NOT EXISTS maps (
	id         BIGSERIAL PRIMARY KEY,
	product    TEXT NOT NULL,
	location   TEXT NOT NULL,
	is_city    BOOLEAN NOT NULL,
	date       CHAR(6) NOT NULL,
	day        CHAR(2) NOT NULL,
	rank       INTEGER,
	rating     DOUBLE PRECISION,
	reviews    INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS maps_month_idx ON maps (date, is_city);
`

// Store is the sqlx-backed persistence layer
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and applies pool settings
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, eris.Wrap(err, "store: connect")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return eris.Wrap(err, "store: migrate")
	}
	return nil
}

// InsertDailyRecord stores one cell row and returns it with its id
func (s *Store) InsertDailyRecord(ctx context.Context, rec *models.DailyRecord) (*models.DailyRecord, error) {
	const q = `INSERT INTO daily_records
		(product, location, is_city, total_count, ai_platform, date, day,
		 competitor_1, competitor_2, competitor_3, competitor_4, rank, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	stored := *rec
	err := s.db.QueryRowxContext(ctx, q,
		rec.Product, rec.Location, rec.IsCity, rec.TotalCount, rec.AIPlatform, rec.Date, rec.Day,
		rec.Competitor1, rec.Competitor2, rec.Competitor3, rec.Competitor4, rec.Rank, rec.Sentiment,
	).Scan(&stored.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: insert daily record %s/%s/%s", rec.AIPlatform, rec.Product, rec.Location)
	}
	return &stored, nil
}

// InsertSourceSummary stores the day's domain counts for one provider
func (s *Store) InsertSourceSummary(ctx context.Context, sum *models.SourceSummary) (*models.SourceSummary, error) {
	payload, err := json.Marshal(sum.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal sources")
	}

	const q = `INSERT INTO source_summaries (ai_platform, date, day, sources)
		VALUES ($1, $2, $3, $4) RETURNING id`

	stored := *sum
	if err := s.db.QueryRowxContext(ctx, q, sum.AIPlatform, sum.Date, sum.Day, payload).Scan(&stored.ID); err != nil {
		return nil, eris.Wrapf(err, "store: insert source summary %s", sum.AIPlatform)
	}
	return &stored, nil
}

// where renders the shared month/partition filter starting at $1
func where(f models.AggregateFilter) (string, []any) {
	clauses := []string{"date = $1"}
	args := []any{f.Date}

	if f.IsCity != nil {
		args = append(args, *f.IsCity)
		clauses = append(clauses, fmt.Sprintf("is_city = $%d", len(args)))
	}
	if len(f.Locations) > 0 {
		args = append(args, pq.Array(f.Locations))
		clauses = append(clauses, fmt.Sprintf("location = ANY($%d)", len(args)))
	}
	if f.Provider != "" {
		args = append(args, f.Provider)
		clauses = append(clauses, fmt.Sprintf("ai_platform = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ScoreInputs returns the sum, distinct counts and averages for a filter
func (s *Store) ScoreInputs(ctx context.Context, f models.AggregateFilter) (*models.ScoreInputs, error) {
	metric, ok := f.MetricColumn()
	if !ok {
		return nil, ErrInvalidMetric
	}
	w, args := where(f)
	q := `SELECT COALESCE(SUM(` + metric + `), 0) AS total_sum,
		COUNT(DISTINCT location) AS n_locations,
		COUNT(DISTINCT product) AS n_products,
		COUNT(DISTINCT ai_platform) AS n_platforms,
		COUNT(DISTINCT day) AS n_days,
		AVG(rank) AS avg_rank,
		AVG(sentiment) AS avg_sentiment
		FROM daily_records` + w

	var in models.ScoreInputs
	if err := s.db.GetContext(ctx, &in, q, args...); err != nil {
		return nil, eris.Wrap(err, "store: score inputs")
	}
	return &in, nil
}

// Aggregate sums the metric grouped by the requested dimensions plus platform and day
func (s *Store) Aggregate(ctx context.Context, f models.AggregateFilter) ([]models.AggregateRow, error) {
	metric, ok := f.MetricColumn()
	if !ok {
		return nil, ErrInvalidMetric
	}

	var dims string
	switch f.GroupBy {
	case models.GroupByProduct, "":
		dims = "product"
	case models.GroupByLocation:
		dims = "location"
	case models.GroupByProductLocation:
		dims = "product, location"
	default:
		return nil, ErrInvalidGroupBy
	}

	w, args := where(f)
	q := `SELECT ` + dims + `, ai_platform, day, SUM(` + metric + `) AS total
		FROM daily_records` + w + `
		GROUP BY ` + dims + `, ai_platform, day
		ORDER BY ` + dims + `, ai_platform, day`

	rows := []models.AggregateRow{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, eris.Wrap(err, "store: aggregate")
	}
	return rows, nil
}

// LocationTotals sums the metric per location
func (s *Store) LocationTotals(ctx context.Context, f models.AggregateFilter) ([]models.LocationTotal, error) {
	metric, ok := f.MetricColumn()
	if !ok {
		return nil, ErrInvalidMetric
	}
	w, args := where(f)
	q := `SELECT location, SUM(` + metric + `) AS total FROM daily_records` + w +
		` GROUP BY location ORDER BY location`

	rows := []models.LocationTotal{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, eris.Wrap(err, "store: location totals")
	}
	return rows, nil
}

// PlatformTotals sums the metric per AI platform
func (s *Store) PlatformTotals(ctx context.Context, f models.AggregateFilter) ([]models.PlatformTotal, error) {
	metric, ok := f.MetricColumn()
	if !ok {
		return nil, ErrInvalidMetric
	}
	w, args := where(f)
	q := `SELECT ai_platform, SUM(` + metric + `) AS total FROM daily_records` + w +
		` GROUP BY ai_platform ORDER BY ai_platform`

	rows := []models.PlatformTotal{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, eris.Wrap(err, "store: platform totals")
	}
	return rows, nil
}

// DistinctDays lists the days with at least one persisted record in a month
func (s *Store) DistinctDays(ctx context.Context, month string) ([]string, error) {
	days := []string{}
	if err := s.db.SelectContext(ctx, &days,
		`SELECT DISTINCT day FROM daily_records WHERE date = $1 ORDER BY day`, month); err != nil {
		return nil, eris.Wrap(err, "store: distinct days")
	}
	return days, nil
}

type sourceSummaryRow struct {
	ID         int64  `db:"id"`
	AIPlatform string `db:"ai_platform"`
	Date       string `db:"date"`
	Day        string `db:"day"`
	Sources    []byte `db:"sources"`
}

// SourceSummaries returns one provider's summaries for a month, ordered by day
func (s *Store) SourceSummaries(ctx context.Context, provider, month string) ([]models.SourceSummary, error) {
	var rows []sourceSummaryRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, ai_platform, date, day, sources FROM source_summaries
		WHERE ai_platform = $1 AND date = $2 ORDER BY day, id`, provider, month); err != nil {
		return nil, eris.Wrap(err, "store: source summaries")
	}

	out := make([]models.SourceSummary, 0, len(rows))
	for _, r := range rows {
		sum := models.SourceSummary{ID: r.ID, AIPlatform: r.AIPlatform, Date: r.Date, Day: r.Day}
		if err := json.Unmarshal(r.Sources, &sum.Sources); err != nil {
			return nil, eris.Wrapf(err, "store: decode sources for summary %d", r.ID)
		}
		out = append(out, sum)
	}
	return out, nil
}

// InsertMapsRecord stores one Places ranking row and returns it with its id
func (s *Store) InsertMapsRecord(ctx context.Context, rec *models.MapsRecord) (*models.MapsRecord, error) {
	const q = `INSERT INTO maps (product, location, is_city, date, day, rank, rating, reviews)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	stored := *rec
	if err := s.db.QueryRowxContext(ctx, q,
		rec.Product, rec.Location, rec.IsCity, rec.Date, rec.Day, rec.Rank, rec.Rating, rec.Reviews,
	).Scan(&stored.ID); err != nil {
		return nil, eris.Wrapf(err, "store: insert maps record %s/%s", rec.Product, rec.Location)
	}
	return &stored, nil
}

// MapsSummaries averages the month's Places rankings per product and location.
// AVG skips days where the brand was not found.
func (s *Store) MapsSummaries(ctx context.Context, month string, isCity *bool) ([]models.MapsSummary, error) {
	w, args := where(models.AggregateFilter{Date: month, IsCity: isCity})
	q := `SELECT product, location,
		AVG(rank) AS avg_rank,
		AVG(rating) AS avg_rating,
		AVG(reviews) AS avg_reviews,
		COUNT(DISTINCT day) AS n_days
		FROM maps` + w + `
		GROUP BY product, location
		ORDER BY location, product`

	rows := []models.MapsSummary{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, eris.Wrap(err, "store: maps summaries")
	}
	return rows, nil
}
