package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audiencepulse/internal/core/links"
	perr "audiencepulse/internal/platform/errors"
)

// ErrorKind classifies adapter failures
type ErrorKind string

// Adapter error kinds
const (
	KindNotFound            ErrorKind = "NotFound"
	KindPrivate             ErrorKind = "PrivateOrInaccessible"
	KindRateLimited         ErrorKind = "RateLimited"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
)

// AdapterError is a platform fetch failure
type AdapterError struct {
	Kind       ErrorKind      `json:"kind"`
	Platform   links.Platform `json:"platform"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
	Message    string         `json:"message"`
	// Permanent marks failures waiting cannot fix, such as missing credentials
	Permanent bool  `json:"permanent,omitempty"`
	Err       error `json:"-"`
}

// NewAdapterError builds an AdapterError
func NewAdapterError(kind ErrorKind, p links.Platform, msg string, err error) *AdapterError {
	return &AdapterError{Kind: kind, Platform: p, Message: msg, Err: err}
}

// RateLimited builds a RateLimited error carrying its retry hint
func RateLimited(p links.Platform, retryAfter time.Duration, msg string) *AdapterError {
	return &AdapterError{Kind: KindRateLimited, Platform: p, RetryAfter: retryAfter, Message: msg}
}

// NotConfigured is the error of a platform whose credentials are missing or rejected
func NotConfigured(p links.Platform, msg string, err error) *AdapterError {
	return &AdapterError{Kind: KindUpstreamUnavailable, Platform: p, Message: msg, Permanent: true, Err: err}
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Kind, e.Message)
}

// Unwrap exposes the upstream error
func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether waiting may help
func (e *AdapterError) Retryable() bool {
	if e.Permanent {
		return false
	}
	return e.Kind == KindRateLimited || e.Kind == KindUpstreamUnavailable
}

// Code maps the kind onto the platform error codes
func (e *AdapterError) Code() perr.ErrorCode {
	switch e.Kind {
	case KindNotFound:
		return perr.ErrorCodeNotFound
	case KindPrivate:
		return perr.ErrorCodeForbidden
	case KindRateLimited:
		return perr.ErrorCodeTooManyRequests
	default:
		return perr.ErrorCodeUnavailable
	}
}

// AsAdapterError unwraps err into an *AdapterError
func AsAdapterError(err error) (*AdapterError, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Classify turns any fetch error into an AdapterError; perr codes and retry hints carry over
func Classify(p links.Platform, err error) *AdapterError {
	if err == nil {
		return nil
	}
	if ae, ok := AsAdapterError(err); ok {
		return ae
	}
	kind := KindUpstreamUnavailable
	switch perr.CodeOf(err) {
	case perr.ErrorCodeNotFound:
		kind = KindNotFound
	case perr.ErrorCodeForbidden:
		kind = KindPrivate
	case perr.ErrorCodeTooManyRequests:
		kind = KindRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindUpstreamUnavailable
	}
	return &AdapterError{Kind: kind, Platform: p, RetryAfter: perr.RetryAfterOf(err), Message: err.Error(), Err: err}
}
