// Package scrapeerr defines the failure taxonomy shared by the fetchers, the
// router and the worker that classifies outcomes into item states.
package scrapeerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrInvalidURL     = errors.New("invalid product URL")
	ErrElementMissing = errors.New("element missing")
	ErrNoBrowser      = errors.New("dynamic rendering required but no browser session available")
)

// UnregisteredDomainError reports a hostname without a registered extractor.
type UnregisteredDomainError struct {
	Domain string
}

func (e UnregisteredDomainError) Error() string {
	return fmt.Sprintf("no extractor registered for domain %q", e.Domain)
}

// NotFoundError indicates the product page is gone (HTTP 404/410).
type NotFoundError struct {
	URL        string
	StatusCode int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("not_found: %s returned %d", e.URL, e.StatusCode)
}

// BlockedError indicates an HTTP 403/429 or an anti-bot challenge page.
type BlockedError struct {
	StatusCode int
	Reason     string
}

func (e BlockedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("blocked: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("blocked: %s", e.Reason)
}

// TimeoutError indicates a navigation or interactive wait exceeded its bound.
type TimeoutError struct {
	Op  string
	Err error
}

func (e TimeoutError) Error() string {
	return fmt.Errorf("timeout during %s: %w", e.Op, e.Err).Error()
}

func (e TimeoutError) Unwrap() error {
	return e.Err
}

// ExtractionError indicates a required structure was absent or structured
// data could not be parsed.
type ExtractionError struct {
	Field string
	Err   error
}

func (e ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Errorf("extraction: %w", e.Err).Error()
	}
	return fmt.Errorf("extraction of %s: %w", e.Field, e.Err).Error()
}

func (e ExtractionError) Unwrap() error {
	return e.Err
}

// RouteError annotates any routing failure with the URL and normalized domain.
type RouteError struct {
	URL    string
	Domain string
	Err    error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route %s (domain %s): %v", e.URL, e.Domain, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Kind returns a stable label for metrics and logs.
func Kind(err error) string {
	if err == nil {
		return "none"
	}
	var unregistered UnregisteredDomainError
	if errors.As(err, &unregistered) {
		return "unregistered_domain"
	}
	var notFound NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var blocked BlockedError
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var timeout TimeoutError
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var extraction ExtractionError
	if errors.As(err, &extraction) {
		return "extraction"
	}
	if errors.Is(err, ErrInvalidURL) {
		return "invalid_url"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// IsNotFound reports whether err confirms the page no longer exists.
func IsNotFound(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound)
}

// IsStructural reports whether err came from a selector that is absent from
// the page, as opposed to a transient wait failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrElementMissing)
}

// FromStatus maps an HTTP status to the taxonomy. It returns nil for 2xx/3xx.
func FromStatus(statusCode int, url string) error {
	switch {
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return NotFoundError{URL: url, StatusCode: statusCode}
	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		return BlockedError{StatusCode: statusCode, Reason: http.StatusText(statusCode)}
	case statusCode >= 400:
		return fmt.Errorf("unexpected status %d for %s", statusCode, url)
	}
	return nil
}

// IsTimeout reports whether err is a network or context deadline failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
