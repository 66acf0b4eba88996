// Package api is the HTTP client for the video generation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cwygoda/reel/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client talks to the REST backend. It implements the domain ports for
// generation, status, listing and code access.
type Client struct {
	baseURL string
	http    *http.Client
	creds   domain.Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a new Client for baseURL. creds may be nil for clients that
// only register or log in.
func New(baseURL string, creds domain.Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generateRequest is the body of POST /api/videos/generate.
type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Message  string `json:"message"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
}

// videoResponse is the JSON record for one video.
type videoResponse struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	Prompt        string   `json:"prompt"`
	VideoPath     string   `json:"video_path"`
	ThumbnailPath string   `json:"thumbnail_path"`
	CreatedAt     flexTime `json:"created_at"`
	Status        string   `json:"status"`
	S3VideoURL    string   `json:"s3_video_url"`
}

type codeResponse struct {
	Code string `json:"code"`
}

// errorResponse covers both the API's {"error"} and the JWT layer's {"msg"}.
type errorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"msg"`
}

// Generate submits a prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (*domain.Submission, error) {
	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/videos/generate", generateRequest{Prompt: prompt}, &resp, true); err != nil {
		return nil, err
	}
	return &domain.Submission{ID: resp.VideoID, Status: resp.Status, Message: resp.Message}, nil
}

// GetVideo returns the backend's record for id.
func (c *Client) GetVideo(ctx context.Context, id string) (*domain.Job, error) {
	var resp videoResponse
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id), nil, &resp, true); err != nil {
		return nil, err
	}
	job, err := resp.toJob()
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListVideos returns one page of videos, newest first.
func (c *Client) ListVideos(ctx context.Context, page, perPage int) ([]domain.Job, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var resp []videoResponse
	if err := c.do(ctx, http.MethodGet, "/api/videos?"+q.Encode(), nil, &resp, true); err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(resp))
	for _, v := range resp {
		job, err := v.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetCode returns the generated source for id.
func (c *Client) GetCode(ctx context.Context, id string) (string, error) {
	var resp codeResponse
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id)+"/code", nil, &resp, true); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// FileURL returns the backend's streaming endpoint for id.
func (c *Client) FileURL(id string) string {
	return c.baseURL + "/api/videos/" + url.PathEscape(id) + "/file"
}

func (v videoResponse) toJob() (domain.Job, error) {
	status := domain.StatusPending
	if v.Status != "" {
		var err error
		if status, err = domain.ParseStatus(v.Status); err != nil {
			return domain.Job{}, fmt.Errorf("video %s: %w", v.ID, err)
		}
	}
	return domain.Job{
		ID:             v.ID,
		Prompt:         v.Prompt,
		Status:         status,
		CreatedAt:      time.Time(v.CreatedAt),
		VideoAsset:     v.S3VideoURL,
		ThumbnailAsset: v.ThumbnailPath,
	}, nil
}

// do performs one JSON request. When auth is set the bearer token is
// required and its absence stops the request before it is sent.
func (c *Client) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &domain.TransportError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.creds == nil {
		return domain.ErrNoCredentials
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return domain.ErrNoCredentials
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func decodeError(resp *http.Response) error {
	be := &domain.BackendError{StatusCode: resp.StatusCode}
	var er errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &er); err == nil {
		be.Message = er.Error
		if be.Message == "" {
			be.Message = er.Msg
		}
	}
	return be
}

// flexTime accepts RFC 3339 and the RFC 1123 dates produced by Flask.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			return nil
		}
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, http.TimeFormat, time.RFC1123Z, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed.UTC())
			return nil
		}
	}
	return errors.New("unrecognised time " + strconv.Quote(s))
}
