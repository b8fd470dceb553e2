// Package strategy defines the resolution capability contract and its
// three implementations: the quota-metered official API, the
// innertube-mimicking headless library, and the browser-automation
// fallback. The three differ in cost and reliability, not in contract
// shape; the router stays ignorant of backend detail.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tunedeck/tunedeck/pkg/cache"
)

// Class categorizes a failed resolution attempt. The router turns
// classes into fallback and circuit-breaking decisions; a class is
// never collapsed into a generic failure.
type Class string

const (
	// ClassRateLimited indicates the upstream throttled the request.
	ClassRateLimited Class = "rate_limited"

	// ClassBlocked indicates a bot-detection signal: a challenge page,
	// a login wall, or an anomalous empty response. Distinct from
	// ordinary rate limiting.
	ClassBlocked Class = "blocked"

	// ClassQuotaExceeded indicates the local ledger denied the
	// reservation; the strategy was never invoked.
	ClassQuotaExceeded Class = "quota_exceeded"

	// ClassTransient indicates a retriable failure: 5xx, network
	// error, or deadline exceeded.
	ClassTransient Class = "transient"

	// ClassPermanent indicates the request can never succeed as given:
	// malformed input or a resource that does not exist.
	ClassPermanent Class = "permanent"
)

// Request carries the resource key plus the parameters a strategy
// needs to resolve it.
type Request struct {
	// Key is the cache/singleflight key for this resource.
	Key cache.Key

	// Query is the search query (search namespace only).
	Query string

	// VideoID is the target video (details, comments, stream).
	VideoID string

	// Cursor is the pagination cursor, empty for the first page.
	Cursor string

	// Limit is the requested page size; 0 means the default.
	Limit int
}

// Strategy is one interchangeable method of resolving a resource
// request from an upstream source.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and circuit state.
	Name() string

	// Supports reports whether the strategy can serve a namespace.
	Supports(ns cache.Namespace) bool

	// Resolve fetches the resource and returns its JSON payload. A
	// non-nil error is always a *strategy.Error.
	Resolve(ctx context.Context, req Request) ([]byte, error)
}

// Error is a classified resolution failure.
type Error struct {
	// Class drives the router's fallback decision.
	Class Class

	// Status is the upstream HTTP status, if any.
	Status int

	// PreNetwork marks a pure local validation failure that occurred
	// before any upstream call; the quota reservation for it is
	// refundable.
	PreNetwork bool

	// InvalidRequest marks the request itself as malformed. The router
	// surfaces such failures immediately instead of trying further
	// strategies.
	InvalidRequest bool

	// Message is a short human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf extracts the class from a resolution error. Context
// cancellation and deadline expiry count as transient; so does any
// unclassified error, since nothing marked it permanent.
func ClassOf(err error) Class {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}
	return ClassTransient
}

// IsInvalidRequest reports whether the error marks the request itself
// as malformed.
func IsInvalidRequest(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.InvalidRequest
}

// IsPreNetwork reports whether the failure occurred before any
// upstream call.
func IsPreNetwork(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.PreNetwork
}

// errInvalidVideoID builds the shared malformed-ID failure. It is
// PreNetwork: no upstream call was made, so the reservation is
// refundable.
func errInvalidVideoID(id string) *Error {
	return &Error{
		Class:          ClassPermanent,
		PreNetwork:     true,
		InvalidRequest: true,
		Message:        fmt.Sprintf("malformed video id %q", id),
	}
}
