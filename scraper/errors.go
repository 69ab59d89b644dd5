package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError is the failure the fetcher reports to the pipeline. The
// run aborts on it; retrying is the fetcher's business and has already
// happened by the time one surfaces.
type FetchError struct {
	URL  string
	Kind string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Error kind labels, used for logs and the errors metric.
const (
	kindTimeout     = "timeout"
	kindConnection  = "connection"
	kindForbidden   = "forbidden"
	kindNotFound    = "not_found"
	kindRateLimited = "rate_limited"
	kindParse       = "parse"
	kindOther       = "other"
)

// classifyKind buckets a request failure for metrics and retry
// decisions.
func classifyKind(err error, statusCode int) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return kindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return kindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return kindConnection
	}

	switch statusCode {
	case http.StatusForbidden:
		return kindForbidden
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusTooManyRequests:
		return kindRateLimited
	}
	return kindOther
}

// retryable reports whether a failure kind is worth another attempt.
// Auth failures and missing pages will not fix themselves.
func retryable(kind string) bool {
	switch kind {
	case kindForbidden, kindNotFound:
		return false
	}
	return true
}
