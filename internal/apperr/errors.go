// Package apperr defines the error taxonomy shared by the domain services.
//
// Every error a service returns to its caller is one of ValidationError,
// NotFoundError, ConflictError or StoreError. Callers branch on the kind with
// errors.Is against the sentinel values, or errors.As for the details.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store failure")
)

// FieldError is a single violated rule on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries one message per violated field.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a field violation.
func (e *ValidationError) Add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// OrNil returns nil when no violations were recorded, so callers can write
// `return verr.OrNil()` without the typed-nil interface trap.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError with a single field violation.
func Invalid(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

// NotFoundError reports a missing resource, or a resource that exists but is
// not in a state the requested operation accepts.
type NotFoundError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s not found: %s", e.Resource, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports that the request is well-formed but collides with
// current state. Guidance tells the user how to resolve it.
type ConflictError struct {
	Resource string
	Field    string
	Message  string
	Guidance string
}

func (e *ConflictError) Error() string {
	if e.Guidance != "" {
		return e.Message + " (" + e.Guidance + ")"
	}
	return e.Message
}

// Unwrap reports ErrConflict. A conflict scoped to a request field is also a
// failed precondition on that field and therefore matches ErrValidation.
func (e *ConflictError) Unwrap() []error {
	if e.Field != "" {
		return []error{ErrConflict, ErrValidation}
	}
	return []error{ErrConflict}
}

// StoreError wraps a persistence failure. Its detail is for logs only.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// Store wraps err as a StoreError unless it already belongs to the taxonomy.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsDomain reports whether err is already one of the taxonomy kinds.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStore)
}
