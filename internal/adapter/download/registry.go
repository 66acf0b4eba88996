package download

import (
	"context"
	"io"
)

// Fetcher retrieves the body behind a URL.
type Fetcher interface {
	Name() string
	Match(url string) bool
	Fetch(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Registry holds registered fetchers.
type Registry struct {
	fetchers []Fetcher
}

// NewRegistry creates a new fetcher registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a fetcher to the registry.
func (r *Registry) Register(f Fetcher) {
	r.fetchers = append(r.fetchers, f)
}

// Match returns the first fetcher that matches the URL, or nil.
func (r *Registry) Match(url string) Fetcher {
	for _, f := range r.fetchers {
		if f.Match(url) {
			return f
		}
	}
	return nil
}
