package download

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwygoda/reel/internal/domain"
)

// HTTPFetcher downloads over HTTP. Only fetchers built with credentials
// send a bearer token.
type HTTPFetcher struct {
	name   string
	prefix string
	creds  domain.Credentials
	client *http.Client
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Minute}
}

// NewBackendFetcher matches URLs served by the API at baseURL and
// authenticates them with creds.
func NewBackendFetcher(baseURL string, creds domain.Credentials) *HTTPFetcher {
	return &HTTPFetcher{
		name:   "backend",
		prefix: strings.TrimRight(baseURL, "/") + "/",
		creds:  creds,
		client: defaultClient(),
	}
}

// NewPublicFetcher matches any http(s) URL and never sends credentials.
func NewPublicFetcher() *HTTPFetcher {
	return &HTTPFetcher{name: "public", client: defaultClient()}
}

func (f *HTTPFetcher) Name() string {
	return f.name
}

func (f *HTTPFetcher) Match(url string) bool {
	if f.prefix != "" {
		return strings.HasPrefix(url, f.prefix)
	}
	return strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if f.creds != nil {
		token, err := f.creds.Token(ctx)
		if err != nil {
			return 0, err
		}
		if token == "" {
			return 0, domain.ErrNoCredentials
		}
		// net/http drops this header on redirects to another host
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &domain.TransportError{Op: "GET " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &domain.BackendError{StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &domain.TransportError{Op: "GET " + url, Err: err}
	}
	return n, nil
}
