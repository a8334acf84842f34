package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource is returned for URLs outside the provider
	// allowlist, before any network activity happens.
	ErrUnsupportedSource = errors.New("unsupported source URL")

	// ErrNoMatch is the normal outcome of recognizing a chunk the
	// service could not identify. It is never logged as an error.
	ErrNoMatch = errors.New("no match")
)

// DownloadError wraps a provider or network failure while fetching a
// source URL. Fatal for that source; a batch continues with the next one.
type DownloadError struct {
	URL   string
	Cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s: %v", e.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// DecodeError indicates the source file is not a valid or readable
// audio container. It aborts the whole chunk sequence for that file.
type DecodeError struct {
	Path  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Path, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ServiceError is a transient recognition failure (network, timeout,
// rate limit). Retryable per chunk; after the attempt budget it is
// demoted to a no-match outcome so one chunk never sinks a whole scan.
type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("recognition service error: %v", e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// IsServiceError reports whether err is, or wraps, a *ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
