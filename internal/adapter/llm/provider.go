// Package llm adapts text-generation providers used for trend synthesis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Request is a single text-generation call
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider generates text from a prompt
type Provider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// Generate returns the raw text produced for the request
	Generate(ctx context.Context, req Request) (string, error)
}

// ProviderError reports a non-success HTTP status from a provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimited reports whether the provider rejected the call with 429
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("provider returned no text")

// IsRateLimited reports whether err is a provider 429
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited()
}

// RetryAfter returns the provider-advertised delay for a rate-limited error, or zero
func RetryAfter(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// IsTransient reports whether err is worth retrying: a 5xx status or a
// transport-level failure. Rate limits, other 4xx statuses and caller
// cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode >= 500
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var de *decodeError
	return !errors.As(err, &de)
}

// decodeError marks a response body that could not be decoded; retrying does not help
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// TruncateRunes cuts s to at most n runes without splitting a character
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
