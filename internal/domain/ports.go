package domain

import "context"

// Credentials is the driven port for the session token store.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// Submission is the backend's answer to a generate request.
type Submission struct {
	ID      string
	Status  string
	Message string
}

// Generator creates jobs on the backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Submission, error)
}

// StatusSource returns the authoritative record for one job.
type StatusSource interface {
	GetVideo(ctx context.Context, id string) (*Job, error)
}

// Lister returns one page of the user's jobs, newest first.
type Lister interface {
	ListVideos(ctx context.Context, page, perPage int) ([]Job, error)
}

// CodeSource returns generated source and backend-served file URLs.
type CodeSource interface {
	GetCode(ctx context.Context, id string) (string, error)
	FileURL(id string) string
}

// Tracker starts status tracking for a job id.
type Tracker interface {
	Start(id string) error
	Active(id string) bool
}
