package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrScrapeNotFound indicates a timestamped scrape does not exist
	ErrScrapeNotFound = errors.New("scrape not found")

	// ErrSnapshotMissing indicates the site has no current snapshot
	ErrSnapshotMissing = errors.New("current snapshot missing")

	// ErrMetadataCorrupt indicates a manifest or snapshot metadata file
	// exists but cannot be decoded
	ErrMetadataCorrupt = errors.New("metadata corrupt")

	// ErrUploadStateMissing indicates no upload status has been recorded
	ErrUploadStateMissing = errors.New("upload status missing")

	// ErrConfidenceTooLow indicates a remote-state rebuild fell below the
	// configured confidence threshold and was rejected
	ErrConfidenceTooLow = errors.New("rebuild confidence too low")

	// ErrCollectionNotFound indicates the remote knowledge collection
	// could not be located
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheExpired indicates the cached entry has expired
	ErrCacheExpired = errors.New("cache entry expired")

	// ErrRateLimited indicates rate limiting was encountered
	ErrRateLimited = errors.New("rate limited")

	// ErrBlocked indicates the request was blocked (e.g., by Cloudflare)
	ErrBlocked = errors.New("request blocked")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")

	// ErrInvalidURL indicates an invalid URL was provided
	ErrInvalidURL = errors.New("invalid URL")

	// ErrEmptyContent indicates a page produced no usable content
	ErrEmptyContent = errors.New("empty content")

	// ErrConversionFailed indicates HTML to Markdown conversion failed
	ErrConversionFailed = errors.New("conversion failed")

	// ErrWriteFailed indicates writing output failed
	ErrWriteFailed = errors.New("write failed")
)

// FetchError represents an error during fetching
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// RemoteError represents an error returned by the knowledge service
type RemoteError struct {
	Op         string // e.g. "upload", "delete", "list"
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s failed: %s", e.Op, e.Message)
}

// NewRemoteError creates a new RemoteError
func NewRemoteError(op string, statusCode int, message string) *RemoteError {
	return &RemoteError{
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case 429, 503, 502, 504:
			return true
		}
		// Cloudflare error range
		if fetchErr.StatusCode >= 520 && fetchErr.StatusCode <= 530 {
			return true
		}
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		switch remoteErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
