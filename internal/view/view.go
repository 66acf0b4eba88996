// Package view derives render-ready state from store contents. Everything
// here is a pure function of its arguments.
package view

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cwygoda/reel/internal/domain"
)

// Tone is the colour family of a status badge.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
	ToneWarning Tone = "warning"
)

// DefaultPoster is shown for jobs without a thumbnail.
const DefaultPoster = "/video-thumbnail.jpg"

// CanDownload reports whether the download action is enabled.
func CanDownload(job domain.Job) bool {
	return job.Status == domain.StatusCompleted
}

// CanViewCode reports whether the view-code action is enabled.
func CanViewCode(job domain.Job) bool {
	return job.Status == domain.StatusCompleted
}

// StatusLabel returns the human label for the job's status.
func StatusLabel(job domain.Job) string {
	switch job.Status {
	case domain.StatusPending:
		return "Waiting in queue…"
	case domain.StatusProcessing:
		return "Processing your video…"
	case domain.StatusCompleted:
		return "Completed"
	case domain.StatusFailed:
		return "Failed"
	}
	return string(job.Status)
}

// BadgeTone returns the badge colour family for the job's status.
func BadgeTone(job domain.Job) Tone {
	switch job.Status {
	case domain.StatusCompleted:
		return ToneSuccess
	case domain.StatusFailed:
		return ToneError
	}
	return ToneWarning
}

// Row is one entry of the job list.
type Row struct {
	ID       string
	Prompt   string
	Status   domain.JobStatus
	Label    string
	Tone     Tone
	Created  string
	Selected bool
	Busy     bool
}

// Detail describes the current job panel.
type Detail struct {
	ID          string
	Prompt      string
	Status      domain.JobStatus
	Label       string
	Tone        Tone
	Created     string
	CanDownload bool
	CanViewCode bool
	// VideoAsset and Poster are only set once the job is completed.
	VideoAsset string
	Poster     string
}

// Model is the full render-ready view.
type Model struct {
	Rows    []Row
	Current *Detail
	Empty   bool
}

// Project builds the view model for jobs with current selected. now is used
// for relative timestamps so the result is deterministic.
func Project(jobs []domain.Job, current string, now time.Time) Model {
	m := Model{Rows: make([]Row, 0, len(jobs)), Empty: len(jobs) == 0}
	for _, job := range jobs {
		m.Rows = append(m.Rows, Row{
			ID:       job.ID,
			Prompt:   job.Prompt,
			Status:   job.Status,
			Label:    StatusLabel(job),
			Tone:     BadgeTone(job),
			Created:  created(job, now),
			Selected: job.ID == current,
			Busy:     !job.Status.IsTerminal(),
		})
		if job.ID == current {
			d := detail(job, now)
			m.Current = &d
		}
	}
	return m
}

func detail(job domain.Job, now time.Time) Detail {
	d := Detail{
		ID:          job.ID,
		Prompt:      job.Prompt,
		Status:      job.Status,
		Label:       StatusLabel(job),
		Tone:        BadgeTone(job),
		Created:     created(job, now),
		CanDownload: CanDownload(job),
		CanViewCode: CanViewCode(job),
	}
	if job.Status == domain.StatusCompleted {
		d.VideoAsset = job.VideoAsset
		d.Poster = job.ThumbnailAsset
		if d.Poster == "" {
			d.Poster = DefaultPoster
		}
	}
	return d
}

func created(job domain.Job, now time.Time) string {
	if job.CreatedAt.IsZero() {
		return ""
	}
	return humanize.RelTime(job.CreatedAt, now, "ago", "from now")
}
