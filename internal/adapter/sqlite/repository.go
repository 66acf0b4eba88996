// Package sqlite persists the login session and a cache of known jobs.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/reel/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    token             TEXT NOT NULL,
    user_id           TEXT NOT NULL DEFAULT '',
    email             TEXT NOT NULL DEFAULT '',
    name              TEXT NOT NULL DEFAULT '',
    subscription_tier TEXT NOT NULL DEFAULT '',
    saved_at          DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS jobs (
    id              TEXT PRIMARY KEY,
    prompt          TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    video_asset     TEXT NOT NULL DEFAULT '',
    thumbnail_asset TEXT NOT NULL DEFAULT '',
    created_at      DATETIME,
    updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`

// Session is the stored login.
type Session struct {
	Token            string
	UserID           string
	Email            string
	Name             string
	SubscriptionTier string
	SavedAt          time.Time
}

// Repository stores the session and job cache in SQLite. It implements
// domain.Credentials.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveSession replaces the stored session.
func (r *Repository) SaveSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, user_id, email, name, subscription_tier, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   token = excluded.token, user_id = excluded.user_id, email = excluded.email,
		   name = excluded.name, subscription_tier = excluded.subscription_tier,
		   saved_at = excluded.saved_at`,
		s.Token, s.UserID, s.Email, s.Name, s.SubscriptionTier, time.Now(),
	)
	return err
}

// Session returns the stored session or domain.ErrNoCredentials.
func (r *Repository) Session(ctx context.Context) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, email, name, subscription_tier, saved_at FROM sessions WHERE id = 1`,
	).Scan(&s.Token, &s.UserID, &s.Email, &s.Name, &s.SubscriptionTier, &s.SavedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ClearSession removes the stored session. Cached jobs belong to the old
// account and are dropped too.
func (r *Repository) ClearSession(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return err
	}
	return tx.Commit()
}

// Token implements domain.Credentials.
func (r *Repository) Token(ctx context.Context) (string, error) {
	s, err := r.Session(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// SaveJob inserts or updates the cached copy of job. Rows already in a
// terminal status are left as they are.
func (r *Repository) SaveJob(ctx context.Context, job domain.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, prompt, status, video_asset, thumbnail_asset, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   video_asset = excluded.video_asset,
		   thumbnail_asset = excluded.thumbnail_asset,
		   updated_at = excluded.updated_at
		 WHERE jobs.status NOT IN (?, ?)`,
		job.ID, job.Prompt, job.Status, job.VideoAsset, job.ThumbnailAsset, createdAt(job.CreatedAt), time.Now(),
		domain.StatusCompleted, domain.StatusFailed,
	)
	return err
}

// GetJob retrieves a cached job by ID.
func (r *Repository) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, prompt, status, video_asset, thumbnail_asset, created_at
		 FROM jobs WHERE id = ?`, id,
	)
	return scanJob(row)
}

// ListJobs returns up to limit cached jobs, newest first, skipping offset.
func (r *Repository) ListJobs(ctx context.Context, offset, limit int) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, prompt, status, video_asset, thumbnail_asset, created_at
		 FROM jobs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// createdAt normalizes t so rows sort by their text form.
func createdAt(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(time.Second), Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	var created sql.NullTime
	err := row.Scan(&job.ID, &job.Prompt, &status, &job.VideoAsset, &job.ThumbnailAsset, &created)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if created.Valid {
		job.CreatedAt = created.Time
	}
	return &job, nil
}
