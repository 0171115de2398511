package main

import (
	"errors"
	"fmt"
)

// ErrBatchRunning is returned when a batch is started while another is in progress
var ErrBatchRunning = errors.New("a batch is already running")

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// FetchError means a post listing was unreachable or could not be parsed
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("listing %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError means no content region could be isolated from a post page
type ExtractionError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting %s: %s", e.URL, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TransformError wraps a completion service failure or an unusable response
type TransformError struct {
	Step string // "markdown" or "slug"
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform (%s): %v", e.Step, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// IOError wraps a staging filesystem failure
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PublishError wraps a hosting API failure on a branch, file or pull request
type PublishError struct {
	Op   string
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("publish %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
