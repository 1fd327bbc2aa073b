package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for use by the pipeline
// subsystems that need direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// postgresMigration creates the star schema: one dimension table per
// categorical attribute, two fact tables, the bulk-load staging table, the
// two denormalized cache tables, and the operational tables. Every location
// dimension is seeded with the 999999 "Unknown" row so fact rows can always
// reference something.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS dim_subregions (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_countries (
	id           BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name         TEXT NOT NULL UNIQUE,
	subregion_id BIGINT NOT NULL REFERENCES dim_subregions(id)
);

CREATE TABLE IF NOT EXISTS dim_states (
	id         BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name       TEXT NOT NULL,
	country_id BIGINT NOT NULL REFERENCES dim_countries(id),
	UNIQUE (name, country_id)
);

CREATE TABLE IF NOT EXISTS dim_cities (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_addresses (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_zipcodes (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_industries (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_manlevels (
	id   BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dim_jobtitles (
	id          BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name        TEXT NOT NULL UNIQUE,
	manlevel_id BIGINT NOT NULL REFERENCES dim_manlevels(id)
);

CREATE TABLE IF NOT EXISTS dim_emailstatus (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS fact_companies (
	id             BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	name           TEXT,
	domain         TEXT,
	linkedin       TEXT,
	phone          TEXT,
	annual_revenue BIGINT NOT NULL DEFAULT 0,
	emp_size       BIGINT NOT NULL DEFAULT 0,
	address_id     BIGINT NOT NULL REFERENCES dim_addresses(id),
	city_id        BIGINT NOT NULL REFERENCES dim_cities(id),
	state_id       BIGINT NOT NULL REFERENCES dim_states(id),
	zipcode_id     BIGINT NOT NULL REFERENCES dim_zipcodes(id),
	country_id     BIGINT NOT NULL REFERENCES dim_countries(id),
	industry_id    BIGINT NOT NULL REFERENCES dim_industries(id),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fact_companies_domain ON fact_companies(domain);
CREATE INDEX IF NOT EXISTS idx_fact_companies_name ON fact_companies(name);

CREATE TABLE IF NOT EXISTS fact_contacts (
	id             BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	full_name      TEXT,
	firstname      TEXT,
	lastname       TEXT,
	email          TEXT,
	linkedin       TEXT,
	company_id     BIGINT NOT NULL REFERENCES fact_companies(id),
	jobtitle_id    BIGINT NOT NULL REFERENCES dim_jobtitles(id),
	manlevel_id    BIGINT NOT NULL REFERENCES dim_manlevels(id),
	emailstatus_id BIGINT NOT NULL REFERENCES dim_emailstatus(id),
	address_id     BIGINT NOT NULL REFERENCES dim_addresses(id),
	city_id        BIGINT NOT NULL REFERENCES dim_cities(id),
	state_id       BIGINT NOT NULL REFERENCES dim_states(id),
	zipcode_id     BIGINT NOT NULL REFERENCES dim_zipcodes(id),
	country_id     BIGINT NOT NULL REFERENCES dim_countries(id),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fact_contacts_email ON fact_contacts(email);
CREATE INDEX IF NOT EXISTS idx_fact_contacts_linkedin ON fact_contacts(linkedin);
CREATE INDEX IF NOT EXISTS idx_fact_contacts_company_id ON fact_contacts(company_id);

CREATE TABLE IF NOT EXISTS staging_campaign_upload (
	id             BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	comp_name      TEXT,
	comp_domain    TEXT,
	annrev         TEXT,
	comp_industry  TEXT,
	comp_linkedin  TEXT,
	firstname      TEXT,
	lastname       TEXT,
	jobtitle       TEXT,
	manlevel       TEXT,
	empemail       TEXT,
	emplinkedin    TEXT,
	country_code   TEXT,
	comp_phone     TEXT,
	comp_street    TEXT,
	comp_city      TEXT,
	comp_state     TEXT,
	comp_country   TEXT,
	comp_zipcode   TEXT,
	qa_disposition TEXT,
	empsize        TEXT
);

CREATE TABLE IF NOT EXISTS cached_full_contacts_data (
	id             BIGINT PRIMARY KEY,
	full_name      TEXT,
	firstname      TEXT,
	lastname       TEXT,
	email          TEXT,
	linkedin       TEXT,
	jobtitle       TEXT,
	manlevel       TEXT,
	emailstatus    TEXT,
	comp_name      TEXT,
	comp_domain    TEXT,
	comp_linkedin  TEXT,
	comp_phone     TEXT,
	annual_revenue BIGINT,
	emp_size       BIGINT,
	comp_industry  TEXT,
	comp_street    TEXT,
	comp_city      TEXT,
	comp_state     TEXT,
	comp_country   TEXT,
	comp_zipcode   TEXT,
	last_updated   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cached_filters_contacts_data (
	id             BIGINT PRIMARY KEY,
	jobtitle       TEXT,
	manlevel       TEXT,
	emailstatus    TEXT,
	comp_industry  TEXT,
	comp_city      TEXT,
	comp_state     TEXT,
	comp_country   TEXT,
	annual_revenue BIGINT,
	emp_size       BIGINT,
	last_updated   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dim_savedqueries (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	filters     JSONB NOT NULL,
	campaign_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS upload_runs (
	id         TEXT PRIMARY KEY,
	report     JSONB NOT NULL,
	log        JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

INSERT INTO dim_subregions (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_countries (id, name, subregion_id) VALUES (999999, 'Unknown', 999999) ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_states (id, name, country_id) VALUES (999999, 'Unknown', 999999) ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_cities (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_addresses (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_zipcodes (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_industries (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_manlevels (id, name) VALUES (999999, 'Unknown') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_jobtitles (id, name, manlevel_id) VALUES (999999, 'Unknown', 999999) ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_emailstatus (id, name) VALUES (1, 'Qualified') ON CONFLICT (id) DO NOTHING;
INSERT INTO dim_emailstatus (id, name) VALUES (4, 'Not Qualified') ON CONFLICT (id) DO NOTHING;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) SaveQuery(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	filtersJSON, err := json.Marshal(q.Filters)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal filters")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dim_savedqueries (id, name, filters, campaign_id, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET filters = $3, campaign_id = $4`,
		q.ID, q.Name, filtersJSON, q.CampaignID, q.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save query %s", q.Name)
	}
	return &q, nil
}

func (s *PostgresStore) GetQuery(ctx context.Context, id string) (*model.SavedQuery, error) {
	var q model.SavedQuery
	var filtersJSON []byte
	var campaignID *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, filters, campaign_id, created_at FROM dim_savedqueries WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.Name, &filtersJSON, &campaignID, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get query %s", id)
	}
	if campaignID != nil {
		q.CampaignID = *campaignID
	}
	if err := json.Unmarshal(filtersJSON, &q.Filters); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal filters")
	}
	return &q, nil
}

func (s *PostgresStore) ListQueries(ctx context.Context) ([]model.SavedQuery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, filters, campaign_id, created_at FROM dim_savedqueries ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queries")
	}
	defer rows.Close()

	var queries []model.SavedQuery
	for rows.Next() {
		var q model.SavedQuery
		var filtersJSON []byte
		var campaignID *string
		if err := rows.Scan(&q.ID, &q.Name, &filtersJSON, &campaignID, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan query")
		}
		if campaignID != nil {
			q.CampaignID = *campaignID
		}
		if err := json.Unmarshal(filtersJSON, &q.Filters); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal filters")
		}
		queries = append(queries, q)
	}
	return queries, eris.Wrap(rows.Err(), "postgres: list queries iterate")
}

func (s *PostgresStore) DeleteQuery(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dim_savedqueries WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete query %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("query not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, report model.RunReport, log *model.RunLog) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	var logJSON []byte
	if log != nil {
		logJSON, err = json.Marshal(log)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run log")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO upload_runs (id, report, log, created_at) VALUES ($1, $2, $3, $4)`,
		report.RunID, reportJSON, logJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", report.RunID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunReport, *model.RunLog, error) {
	var reportJSON []byte
	var logJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT report, log FROM upload_runs WHERE id = $1`,
		runID,
	).Scan(&reportJSON, &logJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var report model.RunReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	var log *model.RunLog
	if logJSON != nil {
		log = &model.RunLog{}
		if err := json.Unmarshal(*logJSON, log); err != nil {
			return nil, nil, eris.Wrap(err, "postgres: unmarshal run log")
		}
	}
	return &report, log, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM upload_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var report model.RunReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, report)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
