// Package apperror defines the error taxonomy shared by services and the HTTP layer.
// Services return these typed errors; the HTTP layer maps them to status codes.
package apperror

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies the error class for callers and for the HTTP status mapping.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindConflict            Kind = "CONFLICT"
	KindInsufficientCredits Kind = "INSUFFICIENT_CREDITS"
	KindNotFound            Kind = "NOT_FOUND"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindPersistence         Kind = "PERSISTENCE"
)

// ValidationError reports a missing or out-of-range request field. Not retryable.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Detail
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
}

// Validation returns a ValidationError for the given field.
func Validation(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// ConflictError reports a duplicate-state conflict, e.g. an existing PENDING mint
// for a device. ExistingID carries the id of the conflicting record.
type ConflictError struct {
	Detail     string
	ExistingID string
}

func (e *ConflictError) Error() string {
	if e.ExistingID == "" {
		return "conflict: " + e.Detail
	}
	return fmt.Sprintf("conflict: %s (existing %s)", e.Detail, e.ExistingID)
}

// InsufficientCreditsError reports that a sell or mint exceeds availability.
// Available is the last-known available amount so the caller can retry adjusted.
type InsufficientCreditsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: requested %s, available %s",
		e.Requested.String(), e.Available.String())
}

// NotFoundError reports an unknown device, company, transaction, or API key.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound returns a NotFoundError for the given resource and id.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// UpstreamError reports a time-series or relational store timeout/network failure.
// Retryable at the next tick for accrual; 503 for synchronous requests.
type UpstreamError struct {
	Upstream string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for the named upstream.
func Upstream(upstream string, err error) error {
	return &UpstreamError{Upstream: upstream, Err: err}
}

// PersistenceError reports a write that failed after passing validation.
// Never swallowed; the caller logs it with full context.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for the named operation.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// KindOf classifies err into the taxonomy. Unknown errors map to KindPersistence.
func KindOf(err error) Kind {
	var (
		v *ValidationError
		c *ConflictError
		i *InsufficientCreditsError
		n *NotFoundError
		u *UpstreamError
	)
	switch {
	case errors.As(err, &v):
		return KindValidation
	case errors.As(err, &c):
		return KindConflict
	case errors.As(err, &i):
		return KindInsufficientCredits
	case errors.As(err, &n):
		return KindNotFound
	case errors.As(err, &u):
		return KindUpstreamUnavailable
	default:
		return KindPersistence
	}
}
