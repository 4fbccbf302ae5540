package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contractor-insights/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contractors (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	contractor_id             TEXT NOT NULL UNIQUE,
	name                      TEXT,
	rating                    REAL,
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
	latitude                  REAL,
	longitude                 REAL,
	created_at                DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS collection_runs (
	id                     TEXT PRIMARY KEY,
	started_at             DATETIME NOT NULL,
	finished_at            DATETIME,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// contractorColumns is the select list for scanContractor, in table order.
const contractorColumns = `id, contractor_id, name, rating, reviews, phone, city, state, postal_code,
	certifications, type, url, insight, relevance_score, actionability_score, accuracy_score,
	clarity_score, evaluation_comment, manual_evaluation_comment, business_summary, sales_tip,
	risk_alert, priority_suggestion, next_action, latitude, longitude, created_at, updated_at`

// InsertNew inserts records whose contractor_id is not yet present. The whole
// batch commits in one transaction; the conflict target on contractor_id makes
// the dedup safe against concurrent runs. Data-quality counters cover every
// incoming record, duplicates included.
func (s *SQLiteStore) InsertNew(ctx context.Context, contractors []model.Contractor) (model.InsertStats, error) {
	stats := model.InsertStats{Fetched: len(contractors)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: begin insert batch")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, c := range contractors {
		tallyQuality(&stats, &c)

		if c.ContractorID == "" {
			stats.Skipped++
			continue
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO contractors (contractor_id, name, rating, reviews, phone, city, state, postal_code, certifications, type, url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(contractor_id) DO NOTHING`,
			c.ContractorID, c.Name, c.Rating, c.Reviews, c.Phone, c.City, c.State, c.PostalCode,
			model.EncodeCertifications(c.Certifications), c.Type, c.URL, now, now,
		)
		if err != nil {
			return stats, eris.Wrapf(err, "sqlite: insert contractor %s", c.ContractorID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stats, eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			stats.Skipped++
		} else {
			stats.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, eris.Wrap(err, "sqlite: commit insert batch")
	}
	return stats, nil
}

func tallyQuality(stats *model.InsertStats, c *model.Contractor) {
	if c.Name == nil || *c.Name == "" {
		stats.MissingName++
	}
	if c.Rating == nil {
		stats.MissingRating++
	}
	if c.Phone == nil || *c.Phone == "" {
		stats.MissingPhone++
	}
	if len(c.Certifications) == 0 {
		stats.MissingCertifications++
	}
}

func (s *SQLiteStore) RecordCollectionRun(ctx context.Context, run model.CollectionRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_runs (id, started_at, finished_at, fetched, inserted, skipped, missing_name, missing_rating, missing_phone, missing_certifications)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Fetched, run.Inserted, run.Skipped,
		run.MissingName, run.MissingRating, run.MissingPhone, run.MissingCertifications,
	)
	return eris.Wrap(err, "sqlite: record collection run")
}

func (s *SQLiteStore) Get(ctx context.Context, contractorID string) (*model.Contractor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE contractor_id = ?`,
		contractorID,
	)
	c, err := scanContractor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contractor %s", contractorID)
	}
	return c, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter ContractorFilter) ([]model.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.MinRating != nil {
		query += ` AND rating >= ?`
		args = append(args, *filter.MinRating)
	}
	if filter.MaxRating != nil {
		query += ` AND rating <= ?`
		args = append(args, *filter.MaxRating)
	}
	if filter.Certification != "" {
		query += ` AND certifications LIKE ?`
		args = append(args, "%"+filter.Certification+"%")
	}

	if filter.OrderBy != "" {
		col, ok := OrderColumn(filter.OrderBy)
		if !ok {
			return nil, eris.Errorf("sqlite: invalid order column %q", filter.OrderBy)
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
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	return s.queryContractors(ctx, query, args...)
}

const (
	insightPendingCond   = `(insight IS NULL OR insight = '')`
	scoresPendingCond    = `(relevance_score IS NULL OR actionability_score IS NULL OR accuracy_score IS NULL OR clarity_score IS NULL)`
	narrativePendingCond = `(business_summary IS NULL OR business_summary = '' OR sales_tip IS NULL OR sales_tip = '' OR risk_alert IS NULL OR risk_alert = '' OR priority_suggestion IS NULL OR priority_suggestion = '' OR next_action IS NULL OR next_action = '')`
	geocodePendingCond   = `(latitude IS NULL OR longitude IS NULL)`
)

func (s *SQLiteStore) ListInsightPending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+insightPendingCond+` ORDER BY id`)
}

func (s *SQLiteStore) ListEvaluationPending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors
		 WHERE insight IS NOT NULL AND insight != '' AND `+scoresPendingCond+` ORDER BY id`)
}

func (s *SQLiteStore) ListLowScore(ctx context.Context, threshold int) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors
		 WHERE relevance_score <= ? OR actionability_score <= ? OR accuracy_score <= ? OR clarity_score <= ?
		 ORDER BY id`,
		threshold, threshold, threshold, threshold)
}

func (s *SQLiteStore) ListNarrativePending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+narrativePendingCond+` ORDER BY id`)
}

func (s *SQLiteStore) ListGeocodePending(ctx context.Context) ([]model.Contractor, error) {
	return s.queryContractors(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE `+geocodePendingCond+` ORDER BY id`)
}

func (s *SQLiteStore) UpdateInsight(ctx context.Context, contractorID, insight string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contractors SET insight = ?, updated_at = ? WHERE contractor_id = ?`,
		insight, time.Now().UTC(), contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update insight %s", contractorID)
	}
	return checkRowsAffected(res, contractorID)
}

func (s *SQLiteStore) UpdateScores(ctx context.Context, contractorID string, scores model.InsightScores) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contractors
		 SET relevance_score = ?, actionability_score = ?, accuracy_score = ?, clarity_score = ?,
		     evaluation_comment = ?, updated_at = ?
		 WHERE contractor_id = ?`,
		scores.Relevance, scores.Actionability, scores.Accuracy, scores.Clarity,
		scores.Comment, time.Now().UTC(), contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update scores %s", contractorID)
	}
	return checkRowsAffected(res, contractorID)
}

func (s *SQLiteStore) UpdateNarrative(ctx context.Context, contractorID string, field model.Narrative, value string) error {
	col, ok := narrativeColumns[field]
	if !ok {
		return eris.Errorf("sqlite: unknown narrative field %q", field)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contractors SET `+col+` = ?, updated_at = ? WHERE contractor_id = ?`,
		value, time.Now().UTC(), contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s for %s", col, contractorID)
	}
	return checkRowsAffected(res, contractorID)
}

func (s *SQLiteStore) UpdateCoordinates(ctx context.Context, contractorID string, lat, lng float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contractors SET latitude = ?, longitude = ?, updated_at = ? WHERE contractor_id = ?`,
		lat, lng, time.Now().UTC(), contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update coordinates %s", contractorID)
	}
	return checkRowsAffected(res, contractorID)
}

func (s *SQLiteStore) UpdateManualComment(ctx context.Context, contractorID, comment string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contractors SET manual_evaluation_comment = ?, updated_at = ? WHERE contractor_id = ?`,
		comment, time.Now().UTC(), contractorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update manual comment %s", contractorID)
	}
	return checkRowsAffected(res, contractorID)
}

func (s *SQLiteStore) Status(ctx context.Context) (*model.PipelineStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN `+insightPendingCond+` THEN 1 ELSE 0 END),
		       SUM(CASE WHEN insight IS NOT NULL AND insight != '' AND `+scoresPendingCond+` THEN 1 ELSE 0 END),
		       SUM(CASE WHEN relevance_score <= 2 OR actionability_score <= 2 OR accuracy_score <= 2 OR clarity_score <= 2 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN `+narrativePendingCond+` THEN 1 ELSE 0 END),
		       SUM(CASE WHEN `+geocodePendingCond+` THEN 1 ELSE 0 END)
		FROM contractors`)

	var st model.PipelineStatus
	var pendingInsight, pendingEval, lowScore, pendingNarr, pendingGeo sql.NullInt64
	if err := row.Scan(&st.Total, &pendingInsight, &pendingEval, &lowScore, &pendingNarr, &pendingGeo); err != nil {
		return nil, eris.Wrap(err, "sqlite: status")
	}
	st.PendingInsight = int(pendingInsight.Int64)
	st.PendingEvaluation = int(pendingEval.Int64)
	st.LowScore = int(lowScore.Int64)
	st.PendingNarratives = int(pendingNarr.Int64)
	st.PendingGeocode = int(pendingGeo.Int64)
	st.Geocoded = st.Total - st.PendingGeocode
	return &st, nil
}

// helpers

func (s *SQLiteStore) queryContractors(ctx context.Context, query string, args ...any) ([]model.Contractor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query contractors")
	}
	defer rows.Close()

	var out []model.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contractor")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate contractors")
}

func checkRowsAffected(res sql.Result, contractorID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("contractor not found: %s", contractorID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContractor(row scannable) (*model.Contractor, error) {
	var c model.Contractor
	var (
		name, phone, city, state, postal, typ, url           sql.NullString
		rating, latitude, longitude                          sql.NullFloat64
		reviews, relevance, actionability, accuracy, clarity sql.NullInt64
		certs                                                string
		insight, evalComment, manualComment                  sql.NullString
		bizSummary, salesTip, riskAlert, priority, next      sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.ContractorID, &name, &rating, &reviews, &phone, &city, &state, &postal,
		&certs, &typ, &url, &insight, &relevance, &actionability, &accuracy,
		&clarity, &evalComment, &manualComment, &bizSummary, &salesTip,
		&riskAlert, &priority, &next, &latitude, &longitude, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Name = nullStr(name)
	c.Rating = nullFloat(rating)
	c.Reviews = nullInt(reviews)
	c.Phone = nullStr(phone)
	c.City = nullStr(city)
	c.State = nullStr(state)
	c.PostalCode = nullStr(postal)
	c.Certifications = model.DecodeCertifications(certs)
	c.Type = nullStr(typ)
	c.URL = nullStr(url)
	c.Insight = insight.String
	c.RelevanceScore = nullInt(relevance)
	c.ActionabilityScore = nullInt(actionability)
	c.AccuracyScore = nullInt(accuracy)
	c.ClarityScore = nullInt(clarity)
	c.EvaluationComment = evalComment.String
	c.ManualEvaluationComment = manualComment.String
	c.BusinessSummary = bizSummary.String
	c.SalesTip = salesTip.String
	c.RiskAlert = riskAlert.String
	c.PrioritySuggestion = priority.String
	c.NextAction = next.String
	c.Latitude = nullFloat(latitude)
	c.Longitude = nullFloat(longitude)

	return &c, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
