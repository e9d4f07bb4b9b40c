package scrapeerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"unregistered", UnregisteredDomainError{Domain: "shop.test"}, "unregistered_domain"},
		{"not found", NotFoundError{URL: "https://a.test/p", StatusCode: 404}, "not_found"},
		{"blocked", BlockedError{Reason: "captcha"}, "blocked"},
		{"timeout", TimeoutError{Op: "navigate", Err: context.DeadlineExceeded}, "timeout"},
		{"extraction", ExtractionError{Field: "price", Err: ErrElementMissing}, "extraction"},
		{"invalid url", fmt.Errorf("parse: %w", ErrInvalidURL), "invalid_url"},
		{"plain", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestRouteError_Unwraps(t *testing.T) {
	err := error(&RouteError{
		URL:    "https://www.brand.test/p/1",
		Domain: "brand.test",
		Err:    NotFoundError{URL: "https://www.brand.test/p/1", StatusCode: 404},
	})

	assert.True(t, IsNotFound(err))
	assert.Equal(t, "not_found", Kind(err))
	assert.Contains(t, err.Error(), "brand.test")
}

func TestFromStatus(t *testing.T) {
	assert.NoError(t, FromStatus(200, "u"))
	assert.NoError(t, FromStatus(301, "u"))
	assert.True(t, IsNotFound(FromStatus(404, "u")))
	assert.True(t, IsNotFound(FromStatus(410, "u")))
	assert.Equal(t, "blocked", Kind(FromStatus(403, "u")))
	assert.Equal(t, "blocked", Kind(FromStatus(429, "u")))
	assert.Equal(t, "other", Kind(FromStatus(502, "u")))
}

func TestIsStructural(t *testing.T) {
	assert.True(t, IsStructural(ExtractionError{Field: "size selector", Err: ErrElementMissing}))
	assert.False(t, IsStructural(TimeoutError{Op: "wait", Err: context.DeadlineExceeded}))
	assert.True(t, IsTimeout(fmt.Errorf("x: %w", context.DeadlineExceeded)))
}
