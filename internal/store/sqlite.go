package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/final-funnel/funnel-cli/internal/model"
)

// SQLiteStore implements QueryStore using modernc.org/sqlite. It keeps saved
// queries usable offline, without a warehouse connection.
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
CREATE TABLE IF NOT EXISTS saved_queries (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	filters     TEXT NOT NULL,
	campaign_id TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveQuery(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	filtersJSON, err := json.Marshal(q.Filters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal filters")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_queries (id, name, filters, campaign_id, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET filters = excluded.filters, campaign_id = excluded.campaign_id`,
		q.ID, q.Name, string(filtersJSON), q.CampaignID, q.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save query %s", q.Name)
	}
	return &q, nil
}

func (s *SQLiteStore) GetQuery(ctx context.Context, id string) (*model.SavedQuery, error) {
	var q model.SavedQuery
	var filtersJSON string
	var campaignID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, filters, campaign_id, created_at FROM saved_queries WHERE id = ?`,
		id,
	).Scan(&q.ID, &q.Name, &filtersJSON, &campaignID, &q.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get query %s", id)
	}
	q.CampaignID = campaignID.String
	if err := json.Unmarshal([]byte(filtersJSON), &q.Filters); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal filters")
	}
	return &q, nil
}

func (s *SQLiteStore) ListQueries(ctx context.Context) ([]model.SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, filters, campaign_id, created_at FROM saved_queries ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queries")
	}
	defer rows.Close()

	var queries []model.SavedQuery
	for rows.Next() {
		var q model.SavedQuery
		var filtersJSON string
		var campaignID sql.NullString
		if err := rows.Scan(&q.ID, &q.Name, &filtersJSON, &campaignID, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan query")
		}
		q.CampaignID = campaignID.String
		if err := json.Unmarshal([]byte(filtersJSON), &q.Filters); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal filters")
		}
		queries = append(queries, q)
	}
	return queries, eris.Wrap(rows.Err(), "sqlite: list queries iterate")
}

func (s *SQLiteStore) DeleteQuery(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete query %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("query not found: %s", id)
	}
	return nil
}
