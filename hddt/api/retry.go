package api

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// DefaultAttempts is the attempt budget for most portal calls. Document
// downloads use a larger budget because their timeout is deliberately short.
const DefaultAttempts = 3

type permanentError struct {
	err error
}

func (p *permanentError) Error() string {
	return p.err.Error()
}

func (p *permanentError) Unwrap() error {
	return p.err
}

// Permanent marks an error as non-retryable for Retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry invokes op up to attempts times and returns the first success. It
// stops early on errors that retrying cannot fix: Permanent-wrapped errors,
// credential rejections, missing original records and malformed bodies. On
// exhaustion the last failure is propagated.
func Retry[T any](attempts int, op func() (T, error)) (T, error) {
	var zero T
	var last error

	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		last = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrRecordNotFound) {
			return zero, err
		}
		var parse *ParseError
		if errors.As(err, &parse) {
			return zero, err
		}

		if attempt < attempts {
			log.Debugf("retry %d/%d after error: %v", attempt, attempts, err)
		}
	}
	return zero, last
}
