package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-insights/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which is how the Postgres store is unit tested without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contractors (
	id                        BIGSERIAL PRIMARY KEY,
	contractor_id             TEXT NOT NULL UNIQUE,
	name                      TEXT,
	rating                    DOUBLE PRECISION,
	reviews                   INTEGER,
	phone                     TEXT,
	city                      TEXT,
	state                     TEXT,
	postal_code               TEXT,
	certifications            TEXT NOT NULL DEFAULT '[]',
	type                      TEXT,
	url                       TEXT,
	insight                   TEXT,
	relevance_score           INTEGER,
	actionability_score       INTEGER,
	accuracy_score            INTEGER,
	clarity_score             INTEGER,
	evaluation_comment        TEXT,
	manual_evaluation_comment TEXT,
	business_summary          TEXT,
	sales_tip                 TEXT,
	risk_alert                TEXT,
	priority_suggestion       TEXT,
	next_action               TEXT,
	latitude                  DOUBLE PRECISION,
	longitude                 DOUBLE PRECISION,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS collection_runs (
	id                     TEXT PRIMARY KEY,
	started_at             TIMESTAMPTZ NOT NULL,
	finished_at            TIMESTAMPTZ,
	fetched                INTEGER NOT NULL DEFAULT 0,
	inserted               INTEGER NOT NULL DEFAULT 0,
	skipped                INTEGER NOT NULL DEFAULT 0,
	missing_name           INTEGER NOT NULL DEFAULT 0,
	missing_rating         INTEGER NOT NULL DEFAULT 0,
	missing_phone          INTEGER NOT NULL DEFAULT 0,
	missing_certifications INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_contractors_city ON contractors(city);
CREATE INDEX IF NOT EXISTS idx_contractors_state ON contractors(state);
CREATE INDEX IF NOT EXISTS idx_contractors_rating ON contractors(rating);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertNew(ctx context.Context, contractors []model.Contractor) (model.InsertStats, error) {
	stats := model.InsertStats{Fetched: len(contractors)}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: begin insert batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range contractors {
		tallyQuality(&stats, &c)

		if c.ContractorID == "" {
			stats.Skipped++
			continue
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO contractors (contractor_id, name, rating, reviews, phone, city, state, postal_code, certifications, type, url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (contractor_id) DO NOTHING`,
			c.ContractorID, c.Name, c.Rating, c.Reviews, c.Phone, c.City, c.State, c.PostalCode,
			model.EncodeCertifications(c.Certifications), c.Type, c.URL,
		)
		if err != nil {
			return stats, eris.Wrapf(err, "postgres: insert contractor %s", c.ContractorID)
		}
		if tag.RowsAffected() == 0 {
			stats.Skipped++
		} else {
			stats.Inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, eris.Wrap(err, "postgres: commit insert batch")
	}
	return stats, nil
}

func (s *PostgresStore) RecordCollectionRun(ctx context.Context, run model.CollectionRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collection_runs (id, started_at, finished_at, fetched, inserted, skipped, missing_name, missing_rating, missing_phone, missing_certifications)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Fetched, run.Inserted, run.Skipped,
		run.MissingName, run.MissingRating, run.MissingPhone, run.MissingCertifications,
	)
	return eris.Wrap(err, "postgres: record collection run")
}

func (s *PostgresStore) Get(ctx context.Context, contractorID string) (*model.Contractor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE contractor_id = $1`,
		contractorID,
	)
	c, err := scanContractor(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contractor %s", contractorID)
	}
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ContractorFilter) ([]model.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.City != "" {
		query += ` AND city = ` + arg(filter.City)
	}
	if filter.State != "" {
		query += ` AND state = ` + arg(filter.State)
	}
	if filter.MinRating != nil {
		query += ` AND rating >= ` + arg(*filter.MinRating)
	}
	if filter.MaxRating != nil {
		query += ` AND rating <= ` + arg(*filter.MaxRating)
	}
	if filter.Certification != "" {
		query += ` AND certifications LIKE ` + arg("%"+filter.Certification+"%")
	}

	if filter.OrderBy != "" {
		col, ok := OrderColumn(filter.OrderBy)
		if !ok {
			return nil, eris.Errorf("postgres: invalid order column %q", filter.OrderBy)
		}
		dir := "ASC"
		if filter.OrderDesc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", col, dir)
	} else {
		query += ` ORDER BY id`
	}

	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ` + arg(filter.Offset)
		}
	}

	return s.queryContractors(ctx, query, args...)
}

func (s *PostgresStore) ListInsightPending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+insightPendingCond+` ORDER BY id`)
}

func (s *PostgresStore) ListEvaluationPending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors
		 WHERE insight IS NOT NULL AND insight != '' AND `+scoresPendingCond+` ORDER BY id`)
}

func (s *PostgresStore) ListLowScore(ctx context.Context, threshold int) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors
		 WHERE relevance_score <= $1 OR actionability_score <= $1 OR accuracy_score <= $1 OR clarity_score <= $1
		 ORDER BY id`,
		threshold)
}

func (s *PostgresStore) ListNarrativePending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+narrativePendingCond+` ORDER BY id`)
}

func (s *PostgresStore) ListGeocodePending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+geocodePendingCond+` ORDER BY id`)
}

func (s *PostgresStore) UpdateInsight(ctx context.Context, contractorID, insight string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contractors SET insight = $1, updated_at = now() WHERE contractor_id = $2`,
		insight, contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update insight %s", contractorID)
	}
	return checkTag(tag, contractorID)
}

func (s *PostgresStore) UpdateScores(ctx context.Context, contractorID string, scores model.InsightScores) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contractors
		 SET relevance_score = $1, actionability_score = $2, accuracy_score = $3, clarity_score = $4,
		     evaluation_comment = $5, updated_at = now()
		 WHERE contractor_id = $6`,
		scores.Relevance, scores.Actionability, scores.Accuracy, scores.Clarity,
		scores.Comment, contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update scores %s", contractorID)
	}
	return checkTag(tag, contractorID)
}

func (s *PostgresStore) UpdateNarrative(ctx context.Context, contractorID string, field model.Narrative, value string) error {
	col, ok := narrativeColumns[field]
	if !ok {
		return eris.Errorf("postgres: unknown narrative field %q", field)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contractors SET `+col+` = $1, updated_at = now() WHERE contractor_id = $2`,
		value, contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s for %s", col, contractorID)
	}
	return checkTag(tag, contractorID)
}

func (s *PostgresStore) UpdateCoordinates(ctx context.Context, contractorID string, lat, lng float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contractors SET latitude = $1, longitude = $2, updated_at = now() WHERE contractor_id = $3`,
		lat, lng, contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update coordinates %s", contractorID)
	}
	return checkTag(tag, contractorID)
}

func (s *PostgresStore) UpdateManualComment(ctx context.Context, contractorID, comment string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contractors SET manual_evaluation_comment = $1, updated_at = now() WHERE contractor_id = $2`,
		comment, contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update manual comment %s", contractorID)
	}
	return checkTag(tag, contractorID)
}

func (s *PostgresStore) Status(ctx context.Context) (*model.PipelineStatus, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE `+insightPendingCond+`),
		       COUNT(*) FILTER (WHERE insight IS NOT NULL AND insight != '' AND `+scoresPendingCond+`),
		       COUNT(*) FILTER (WHERE relevance_score <= 2 OR actionability_score <= 2 OR accuracy_score <= 2 OR clarity_score <= 2),
		       COUNT(*) FILTER (WHERE `+narrativePendingCond+`),
		       COUNT(*) FILTER (WHERE `+geocodePendingCond+`)
		FROM contractors`)

	var st model.PipelineStatus
	if err := row.Scan(&st.Total, &st.PendingInsight, &st.PendingEvaluation, &st.LowScore, &st.PendingNarratives, &st.PendingGeocode); err != nil {
		return nil, eris.Wrap(err, "postgres: status")
	}
	st.Geocoded = st.Total - st.PendingGeocode
	return &st, nil
}

func (s *PostgresStore) queryContractors(ctx context.Context, query string, args ...any) ([]model.Contractor, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query contractors")
	}
	defer rows.Close()

	var out []model.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan contractor")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate contractors")
}

func checkTag(tag pgconn.CommandTag, contractorID string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contractor not found: %s", contractorID)
	}
	return nil
}
