package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrSubmissionFailed  = errors.New("submission failed")
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("job is not completed")
	ErrDuplicateID       = errors.New("duplicate job id")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("not authenticated")
	ErrNoCredentials     = errors.New("no session token, run `reel login` first")
)

// GenericSubmitMessage is shown when a submission fails without a message
// from the backend.
const GenericSubmitMessage = "failed to generate video, please try again"

// BackendError is a non-2xx response from the API.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is maps well-known status codes onto the sentinel errors so callers can
// use errors.Is without caring about HTTP.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// TransportError wraps network failures and timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SubmissionError is returned by Submitter.Submit when the backend call
// fails. Message is the backend's message or GenericSubmitMessage.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}
