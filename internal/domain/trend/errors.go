package trend

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies discovery failures
type Kind string

const (
	KindAuthFailure        Kind = "auth_failure"
	KindSourceFetchFailure Kind = "source_fetch_failure"
	KindNoQualityItems     Kind = "no_quality_items"
	KindSynthesisFailure   Kind = "synthesis_failure"
	KindRateLimited        Kind = "rate_limited"
	KindPersistenceFailure Kind = "persistence_failure"
	KindInvalidCategory    Kind = "invalid_category"
)

// Error is a classified discovery error
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// RetryAfter is set for rate-limited errors when the provider advertised a delay
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Common errors
var (
	ErrNoQualityItems = errors.New("no quality posts found")
	ErrNoTrends       = errors.New("no distinct trends identified")
	ErrTrendNotFound  = errors.New("trend not found")
)
