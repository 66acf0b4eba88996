package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cwygoda/reel/internal/domain"
)

const (
	DefaultInterval       = 5 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// EventKind describes what happened to a tracked job.
type EventKind int

const (
	// EventUpdated means a non-terminal status was applied to the store.
	EventUpdated EventKind = iota
	// EventFinished means a terminal status was applied and tracking ended.
	EventFinished
	// EventFailed means a query failed and tracking ended without a
	// terminal status.
	EventFailed
)

// Event is emitted after the poller touched the store or gave up on a job.
type Event struct {
	Kind  EventKind
	JobID string
	Job   domain.Job
	Err   error
}

// Poller tracks non-terminal jobs by repeatedly querying their status
// until they finish. Each job id has at most one live handle.
type Poller struct {
	source   domain.StatusSource
	store    *domain.Store
	interval time.Duration
	timeout  time.Duration
	onEvent  func(Event)

	// writeMu serialises store writes so that responses land in the
	// order they were checked. mu is never held across a store write.
	writeMu  sync.Mutex
	mu       sync.Mutex
	handles  map[string]*handle
	applied  map[string]uint64
	failures map[string]error
	seq      uint64
	wg       sync.WaitGroup
}

type handle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay before each status query.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRequestTimeout bounds every status query.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithEventHandler registers fn to receive events. fn is called from poll
// goroutines and must not block for long.
func WithEventHandler(fn func(Event)) Option {
	return func(p *Poller) {
		p.onEvent = fn
	}
}

// New creates a new poller.
func New(source domain.StatusSource, store *domain.Store, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		store:    store,
		interval: DefaultInterval,
		timeout:  DefaultRequestTimeout,
		handles:  make(map[string]*handle),
		applied:  make(map[string]uint64),
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins tracking the job with the given id. A live handle for the
// same id is cancelled first. Jobs that are already terminal are not
// tracked.
func (p *Poller) Start(id string) error {
	job, ok := p.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{id: id, ctx: ctx, cancel: cancel}

	p.mu.Lock()
	if old, ok := p.handles[id]; ok {
		old.cancel()
		log.Printf("job %s: superseding previous poll", id)
	}
	p.handles[id] = h
	delete(p.failures, id)
	p.wg.Add(1)
	p.mu.Unlock()

	log.Printf("job %s: polling every %s", id, p.interval)
	go p.run(h)
	return nil
}

// Stop cancels tracking for id. It is a no-op if nothing is tracked.
func (p *Poller) Stop(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.handles[id]; ok {
		h.cancel()
		delete(p.handles, id)
	}
}

// StopAll cancels every live handle. Owners call it on teardown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, h := range p.handles {
		h.cancel()
		delete(p.handles, id)
	}
}

// Wait blocks until every poll goroutine has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Active reports whether id has a live handle.
func (p *Poller) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handles[id]
	return ok
}

// ActiveCount returns the number of live handles.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Failure returns the error that stopped tracking of id, if any. It is
// cleared when tracking restarts.
func (p *Poller) Failure(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[id]
}

func (p *Poller) run(h *handle) {
	defer p.wg.Done()

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-timer.C:
		}

		if done := p.tick(h); done {
			return
		}
		timer.Reset(p.interval)
	}
}

// tick runs one status query. It returns true when the handle is finished.
func (p *Poller) tick(h *handle) bool {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(h.ctx, p.timeout)
	remote, err := p.source.GetVideo(ctx, h.id)
	cancel()

	if err != nil {
		var te *domain.TransportError
		if errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &te) {
			err = &domain.TransportError{Op: "GET status " + h.id, Err: err}
		}
		return p.fail(h, err)
	}

	ev, done, ok := p.apply(h, seq, remote)
	if !ok {
		return true
	}
	p.emit(ev)
	return done
}

// apply writes remote into the store if h is still the live handle for its
// job and seq is newer than anything applied before. ok is false when the
// response was stale and discarded.
func (p *Poller) apply(h *handle, seq uint64, remote *domain.Job) (ev Event, done, ok bool) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if p.handles[h.id] != h || h.ctx.Err() != nil || seq <= p.applied[h.id] {
		p.mu.Unlock()
		log.Printf("job %s: discarding stale status response", h.id)
		return Event{}, true, false
	}
	p.applied[h.id] = seq
	p.mu.Unlock()

	// Store observers may write to disk; Start, Stop and Active stay
	// responsive meanwhile.
	job, err := p.store.Update(h.id, domain.PatchFrom(*remote))

	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.handles[h.id] == h

	if err != nil {
		if !live {
			return Event{}, true, false
		}
		p.dropLocked(h, err)
		return Event{Kind: EventFailed, JobID: h.id, Job: job, Err: err}, true, true
	}

	if job.Status.IsTerminal() {
		log.Printf("job %s: %s", h.id, job.Status)
		h.cancel()
		if live {
			delete(p.handles, h.id)
		}
		return Event{Kind: EventFinished, JobID: h.id, Job: job}, true, true
	}
	return Event{Kind: EventUpdated, JobID: h.id, Job: job}, false, true
}

func (p *Poller) fail(h *handle, err error) bool {
	p.mu.Lock()
	if p.handles[h.id] != h || h.ctx.Err() != nil {
		p.mu.Unlock()
		return true
	}
	p.dropLocked(h, err)
	p.mu.Unlock()

	job, _ := p.store.Get(h.id)
	p.emit(Event{Kind: EventFailed, JobID: h.id, Job: job, Err: err})
	return true
}

func (p *Poller) dropLocked(h *handle, err error) {
	log.Printf("job %s: polling stopped: %v", h.id, err)
	h.cancel()
	delete(p.handles, h.id)
	p.failures[h.id] = err
}

func (p *Poller) emit(ev Event) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
}
