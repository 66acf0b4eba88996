package domain

import (
	"context"
	"errors"
	"log"
)

// Library populates the store from the backend listing.
type Library struct {
	lister  Lister
	store   *Store
	tracker Tracker
}

// NewLibrary creates a new Library. tracker may be nil.
func NewLibrary(lister Lister, store *Store, tracker Tracker) *Library {
	return &Library{lister: lister, store: store, tracker: tracker}
}

// RefreshResult summarises one Refresh call.
type RefreshResult struct {
	Added    int
	Updated  int
	Tracking int
}

// Refresh fetches one page of jobs and merges it into the store. Unknown
// jobs are appended in listing order, known jobs are reconciled, and every
// unfinished job is handed to the tracker.
func (l *Library) Refresh(ctx context.Context, page, perPage int) (RefreshResult, error) {
	var res RefreshResult

	jobs, err := l.lister.ListVideos(ctx, page, perPage)
	if err != nil {
		return res, err
	}

	for _, job := range jobs {
		if _, ok := l.store.Get(job.ID); ok {
			if _, err := l.store.Update(job.ID, PatchFrom(job)); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					log.Printf("job %s: listing conflicts with local state: %v", job.ID, err)
					continue
				}
				return res, err
			}
			res.Updated++
		} else {
			if err := l.store.Append(job); err != nil {
				return res, err
			}
			res.Added++
		}

		current, _ := l.store.Get(job.ID)
		if current.Status.IsTerminal() || l.tracker == nil {
			continue
		}
		if l.tracker.Active(job.ID) {
			res.Tracking++
			continue
		}
		if err := l.tracker.Start(job.ID); err != nil {
			return res, err
		}
		res.Tracking++
	}

	if _, ok := l.store.Current(); !ok {
		if all := l.store.List(); len(all) > 0 {
			if err := l.store.Select(all[0].ID); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
