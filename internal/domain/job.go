package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the rendering state of a job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ParseStatus converts a wire value into a JobStatus.
func ParseStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// IsTerminal returns true for completed and failed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job in status s may move to next.
// Terminal statuses only accept themselves.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !next.Valid() {
		return false
	}
	if s.IsTerminal() {
		return s == next
	}
	return true
}

// Job represents one prompt-to-video generation request.
type Job struct {
	ID             string
	Prompt         string
	Status         JobStatus
	CreatedAt      time.Time
	VideoAsset     string
	ThumbnailAsset string
}

// Patch is a partial update applied by Store.Update. Nil fields are left
// untouched.
type Patch struct {
	Status         *JobStatus
	VideoAsset     *string
	ThumbnailAsset *string
}

// PatchFrom builds a patch carrying every mutable field of j.
func PatchFrom(j Job) Patch {
	p := Patch{Status: &j.Status}
	if j.VideoAsset != "" {
		p.VideoAsset = &j.VideoAsset
	}
	if j.ThumbnailAsset != "" {
		p.ThumbnailAsset = &j.ThumbnailAsset
	}
	return p
}

// apply returns a copy of j with the patch applied and whether anything
// changed.
func (p Patch) apply(j Job) (Job, bool) {
	out := j
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.VideoAsset != nil {
		out.VideoAsset = *p.VideoAsset
	}
	if p.ThumbnailAsset != nil {
		out.ThumbnailAsset = *p.ThumbnailAsset
	}
	return out, out != j
}
