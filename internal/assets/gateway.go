// Package assets gives access to the artifacts of completed jobs: generated
// source code and the rendered video file.
package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/cwygoda/reel/internal/domain"
)

// Downloader saves the body behind url as filename and returns the local
// path.
type Downloader interface {
	Download(ctx context.Context, url, filename string) (string, error)
}

// Backend serves job records and the assets behind them.
type Backend interface {
	domain.StatusSource
	domain.CodeSource
}

var errNoDownloader = errors.New("downloads are not configured")

// Gateway gates asset access on job status.
type Gateway struct {
	store *domain.Store
	code  Backend
	dl    Downloader
	copy  func(string) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(g *Gateway) {
		g.copy = fn
	}
}

// NewGateway creates a new Gateway. dl may be nil when downloads are not
// needed.
func NewGateway(store *domain.Store, code Backend, dl Downloader, opts ...Option) *Gateway {
	g := &Gateway{store: store, code: code, dl: dl, copy: clipboard.WriteAll}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchCode returns the generated source for id. Jobs the store knows to
// be unfinished fail with ErrNotReady without asking for the code. The
// status of jobs the store does not know is read from the backend first.
func (g *Gateway) FetchCode(ctx context.Context, id string) (string, error) {
	job, ok := g.store.Get(id)
	if !ok {
		remote, err := g.code.GetVideo(ctx, id)
		if err != nil {
			return "", err
		}
		job = *remote
	}
	if job.Status != domain.StatusCompleted {
		return "", fmt.Errorf("%w: job %s is %s", domain.ErrNotReady, id, job.Status)
	}
	code, err := g.code.GetCode(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("code for job %s: %w", id, domain.ErrNotFound)
		}
		return "", err
	}
	return code, nil
}

// CopyCode fetches the source for id and puts it on the clipboard.
func (g *Gateway) CopyCode(ctx context.Context, id string) (string, error) {
	code, err := g.FetchCode(ctx, id)
	if err != nil {
		return "", err
	}
	if err := g.copy(code); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	return code, nil
}

// ResolveDownloadURL returns the URL to download the video of id from,
// preferring the externally hosted asset over the backend's file endpoint.
func (g *Gateway) ResolveDownloadURL(id string) (string, error) {
	job, ok := g.store.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if job.Status != domain.StatusCompleted {
		return "", fmt.Errorf("%w: job %s is %s", domain.ErrNotReady, id, job.Status)
	}
	if job.VideoAsset != "" {
		return job.VideoAsset, nil
	}
	return g.code.FileURL(id), nil
}

// TriggerDownload saves url locally as suggestedFilename. Failures are
// returned to the caller and never touch the store.
func (g *Gateway) TriggerDownload(ctx context.Context, url, suggestedFilename string) (string, error) {
	if g.dl == nil {
		return "", errNoDownloader
	}
	return g.dl.Download(ctx, url, suggestedFilename)
}

// Download resolves and downloads the video of id under its suggested
// filename.
func (g *Gateway) Download(ctx context.Context, id string) (string, error) {
	url, err := g.ResolveDownloadURL(id)
	if err != nil {
		return "", err
	}
	return g.TriggerDownload(ctx, url, SuggestedFilename(id))
}

// SuggestedFilename is the local file name for the video of id.
func SuggestedFilename(id string) string {
	return "manim-animation-" + id + ".mp4"
}
