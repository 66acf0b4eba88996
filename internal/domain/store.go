package domain

import (
	"errors"
	"fmt"
	"sync"
)

var errEmptyID = errors.New("job id is empty")

// Store holds the jobs known to the client, newest first, and the current
// selection. Each method is atomic; failures leave the store untouched.
type Store struct {
	mu        sync.RWMutex
	jobs      []Job
	index     map[string]int
	current   string
	observers []func(Job)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithObserver registers fn to be called with the resulting job after every
// successful insert or effective update. Observers run outside the lock.
func WithObserver(fn func(Job)) StoreOption {
	return func(s *Store) {
		s.observers = append(s.observers, fn)
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{index: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds job at the front of the collection.
func (s *Store) Insert(job Job) error {
	if err := s.add(job, true); err != nil {
		return err
	}
	s.notify(job)
	return nil
}

// Append adds job at the back of the collection. Used when backfilling
// older jobs from a listing.
func (s *Store) Append(job Job) error {
	if err := s.add(job, false); err != nil {
		return err
	}
	s.notify(job)
	return nil
}

func (s *Store) add(job Job, front bool) error {
	if job.ID == "" {
		return errEmptyID
	}
	if !job.Status.Valid() {
		return fmt.Errorf("%w: job %s has status %q", ErrInvalidTransition, job.ID, job.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
	}
	if front {
		s.jobs = append([]Job{job}, s.jobs...)
	} else {
		s.jobs = append(s.jobs, job)
	}
	s.reindex()
	return nil
}

// Update applies patch to the job with the given id. Moving a terminal job
// anywhere, or rewriting its assets, fails with ErrInvalidTransition.
func (s *Store) Update(id string, patch Patch) (Job, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur := s.jobs[i]
	next, changed := patch.apply(cur)
	if !cur.Status.CanTransition(next.Status) {
		s.mu.Unlock()
		return cur, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, id, cur.Status, next.Status)
	}
	if changed && cur.Status.IsTerminal() {
		s.mu.Unlock()
		return cur, fmt.Errorf("%w: job %s is %s and immutable", ErrInvalidTransition, id, cur.Status)
	}
	s.jobs[i] = next
	s.mu.Unlock()

	if changed {
		s.notify(next)
	}
	return next, nil
}

// Get returns the job with the given id.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Job{}, false
	}
	return s.jobs[i], true
}

// Select marks the job with the given id as current.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.current = id
	return nil
}

// Current returns the latest state of the selected job. The selection is
// kept by id, so updates are visible without reselecting.
func (s *Store) Current() (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return Job{}, false
	}
	return s.jobs[s.index[s.current]], true
}

// List returns a copy of the jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Len returns the number of jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) reindex() {
	for i, j := range s.jobs {
		s.index[j.ID] = i
	}
}

func (s *Store) notify(job Job) {
	for _, fn := range s.observers {
		fn(job)
	}
}
