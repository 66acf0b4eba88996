package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwygoda/reel/internal/domain"
)

func setupTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cleanup := func() {
		repo.Close()
		os.Remove(dbPath)
	}
	return repo, cleanup
}

func TestRepository_NewCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "reel.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer repo.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestRepository_Session(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := repo.Token(ctx); !errors.Is(err, domain.ErrNoCredentials) {
		t.Errorf("Token() on empty db error = %v, want ErrNoCredentials", err)
	}

	if err := repo.SaveSession(ctx, Session{Token: "t1", Email: "a@b.c", Name: "Ada"}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := repo.SaveSession(ctx, Session{Token: "t2", Email: "a@b.c", Name: "Ada"}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	token, err := repo.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "t2" {
		t.Errorf("Token() = %q, want %q", token, "t2")
	}

	s, err := repo.Session(ctx)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if s.Email != "a@b.c" || s.Name != "Ada" {
		t.Errorf("Session() = %+v", s)
	}
	if s.SavedAt.IsZero() {
		t.Error("Session().SavedAt is zero")
	}
}

func TestRepository_ClearSession(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	repo.SaveSession(ctx, Session{Token: "t1"})
	repo.SaveJob(ctx, domain.Job{ID: "v1", Status: domain.StatusPending})

	if err := repo.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}

	if _, err := repo.Token(ctx); !errors.Is(err, domain.ErrNoCredentials) {
		t.Errorf("Token() error = %v, want ErrNoCredentials", err)
	}
	jobs, _ := repo.ListJobs(ctx, 0, 10)
	if len(jobs) != 0 {
		t.Errorf("ListJobs() len = %d, want 0", len(jobs))
	}
}

func TestRepository_SaveJob(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	created := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	job := domain.Job{ID: "v1", Prompt: "circle", Status: domain.StatusProcessing, CreatedAt: created}
	if err := repo.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	job.Status = domain.StatusCompleted
	job.VideoAsset = "https://cdn/v1.mp4"
	if err := repo.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := repo.GetJob(ctx, "v1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusCompleted)
	}
	if got.VideoAsset != "https://cdn/v1.mp4" {
		t.Errorf("VideoAsset = %q", got.VideoAsset)
	}
	if got.Prompt != "circle" {
		t.Errorf("Prompt = %q, want %q", got.Prompt, "circle")
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestRepository_SaveJob_TerminalRowIsFinal(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	repo.SaveJob(ctx, domain.Job{ID: "v1", Status: domain.StatusFailed})

	if err := repo.SaveJob(ctx, domain.Job{ID: "v1", Status: domain.StatusProcessing}); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, _ := repo.GetJob(ctx, "v1")
	if got.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusFailed)
	}
}

func TestRepository_GetJob_NotFound(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := repo.GetJob(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetJob() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListJobs(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"v1", "v2", "v3"} {
		repo.SaveJob(ctx, domain.Job{ID: id, Status: domain.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	jobs, err := repo.ListJobs(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "v3" || jobs[1].ID != "v2" {
		t.Errorf("ListJobs(0, 2) = %+v, want [v3 v2]", jobs)
	}

	jobs, _ = repo.ListJobs(ctx, 2, 2)
	if len(jobs) != 1 || jobs[0].ID != "v1" {
		t.Errorf("ListJobs(2, 2) = %+v, want [v1]", jobs)
	}
}

func TestRepository_StoreObserver(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	store := domain.NewStore(domain.WithObserver(func(j domain.Job) {
		if err := repo.SaveJob(ctx, j); err != nil {
			t.Errorf("SaveJob() error = %v", err)
		}
	}))

	store.Insert(domain.Job{ID: "v1", Status: domain.StatusProcessing})
	done := domain.StatusCompleted
	store.Update("v1", domain.Patch{Status: &done})

	got, err := repo.GetJob(ctx, "v1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusCompleted)
	}
}
