package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned by sinks asked to persist zero records.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrNoRecords is returned when pagination finished without a single record.
	ErrNoRecords = errors.New("no records fetched")
)

// TransientError reports a retryable failure (transport, timeout, 5xx) that
// persisted after every allowed attempt.
type TransientError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure after %d attempts (status %d) for %s: %v", e.Attempts, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("transient failure after %d attempts for %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RequestError reports a non-retryable client error (4xx): the category or
// parameters were rejected by the API.
type RequestError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request rejected with status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("request rejected with status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// MalformedResponseError reports a payload that could not be decoded into the
// expected page structure.
type MalformedResponseError struct {
	URL string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IOError reports a sink write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PaginationError wraps the error that aborted a run at a given page.
type PaginationError struct {
	Page int
	Err  error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

