package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout       = errors.New("request timed out")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNotFound      = errors.New("not found")
	ErrDisallowed    = errors.New("disallowed by robots.txt")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError is returned when a page cannot be turned into a document tree.
// Missing rows or fields inside a parsed document are not errors.
type ParseError struct {
	URL     string
	Backend string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (backend=%s): %v", e.URL, e.Backend, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldError describes one failed check on a scrape run.
type FieldError struct {
	Field string
	Rule  string
	Value any
}

// ValidationError is returned when a scrape run fails its schema checks.
type ValidationError struct {
	RunID  string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return fmt.Sprintf("validation failed for run %s: %s", e.RunID, strings.Join(parts, "; "))
}

// StorageError wraps errors that occur in a storage backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the entry pipeline.
type PipelineError struct {
	Stage string
	Entry *Entry
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
