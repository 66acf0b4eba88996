package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Submitter turns prompts into tracked jobs.
type Submitter struct {
	gen     Generator
	store   *Store
	tracker Tracker
	now     func() time.Time
}

// NewSubmitter creates a new Submitter. tracker may be nil, in which case
// non-terminal jobs are inserted but not polled.
func NewSubmitter(gen Generator, store *Store, tracker Tracker) *Submitter {
	return &Submitter{gen: gen, store: store, tracker: tracker, now: time.Now}
}

// Submit sends prompt to the backend, inserts the resulting job at the front
// of the store, selects it and starts tracking it if it is not finished.
func (s *Submitter) Submit(ctx context.Context, prompt string) (Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Job{}, ErrEmptyPrompt
	}

	sub, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Job{}, submitError(err)
	}
	if sub.ID == "" {
		return Job{}, &SubmissionError{Message: GenericSubmitMessage, Err: errors.New("backend returned no video id")}
	}

	status := StatusProcessing
	if sub.Status != "" {
		status, err = ParseStatus(sub.Status)
		if err != nil {
			return Job{}, &SubmissionError{Message: GenericSubmitMessage, Err: err}
		}
	}

	job := Job{
		ID:        sub.ID,
		Prompt:    prompt,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(job); err != nil {
		return Job{}, fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	if err := s.store.Select(job.ID); err != nil {
		return Job{}, err
	}
	log.Printf("job %s: submitted (%s)", job.ID, job.Status)

	if !status.IsTerminal() && s.tracker != nil {
		if err := s.tracker.Start(job.ID); err != nil {
			return job, fmt.Errorf("track job %s: %w", job.ID, err)
		}
	}
	return job, nil
}

// submitError classifies a failed generate call. Authentication problems
// are not job errors and pass through unchanged.
func submitError(err error) error {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoCredentials) {
		return err
	}
	msg := GenericSubmitMessage
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		msg = be.Message
	}
	return &SubmissionError{Message: msg, Err: err}
}
