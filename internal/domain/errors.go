package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrMissingCredentials is returned when a remote provider has no API key configured
	ErrMissingCredentials = errors.New("provider credentials not configured")

	// ErrTransientRemote marks rate-limit and overload failures that may be retried
	ErrTransientRemote = errors.New("transient remote error")

	// ErrTerminalRemote marks remote failures that must not be retried
	ErrTerminalRemote = errors.New("terminal remote error")

	// ErrRemoteFailure is returned once the retry budget is exhausted
	ErrRemoteFailure = errors.New("remote call failed")

	// ErrParse is returned when a structured remote response does not match its schema
	ErrParse = errors.New("malformed structured response")

	// ErrFetchFailed is returned when page content cannot be retrieved
	ErrFetchFailed = errors.New("content fetch failed")
)

// IsTransient reports whether err is eligible for automatic retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientRemote)
}
