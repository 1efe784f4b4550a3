package api

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned by login when the portal rejects the
// username/password pair. Never retried.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrRecordNotFound is returned when the portal reports that no original
// document exists for an invoice. Expected condition, triggers the detail
// fallback instead of a retry.
var ErrRecordNotFound = errors.New("original invoice record does not exist")

// RequestError carries a non-2xx portal response.
type RequestError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status: %d err: %v message: %s", r.StatusCode, r.Err, r.Message)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

// CaptchaError signals that the portal rejected the submitted captcha value.
// Retryable by fetching a fresh challenge.
type CaptchaError struct {
	Message string
}

func (c *CaptchaError) Error() string {
	return fmt.Sprintf("captcha rejected: %s", c.Message)
}

// ParseError signals a malformed response body. Retrying won't fix a schema
// mismatch, so Retry treats it as permanent.
type ParseError struct {
	Op    string
	Cause error
}

func (p *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", p.Op, p.Cause)
}

func (p *ParseError) Unwrap() error {
	return p.Cause
}
