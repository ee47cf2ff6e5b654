package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence warning")
)

// Reason identifies why an input was rejected.
type Reason string

const (
	ReasonEmptyField        Reason = "empty_field"
	ReasonInvalidAmount     Reason = "invalid_amount"
	ReasonInvalidDate       Reason = "invalid_date"
	ReasonUserDeclined      Reason = "user_declined"
	ReasonAmbiguousCategory Reason = "ambiguous_category"
	ReasonInvalidCharacter  Reason = "invalid_character"
	ReasonInvalidRange      Reason = "invalid_range"
	ReasonReservedCategory  Reason = "reserved_category"
	ReasonTooLong           Reason = "too_long"
)

// ValidationError reports rejected input. The operation that returned it
// made no state change.
type ValidationError struct {
	Reason Reason
	Field  string
	Value  string
}

func NewValidationError(reason Reason, field, value string) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Value: value}
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmptyField:
		return fmt.Sprintf("%s cannot be empty", e.Field)
	case ReasonInvalidAmount:
		return fmt.Sprintf("invalid amount %q: use digits with optional thousands separators and up to 2 decimals (e.g. 1,000.00)", e.Value)
	case ReasonInvalidDate:
		return fmt.Sprintf("invalid %s %q: use YYYY-MM-DD", e.Field, e.Value)
	case ReasonUserDeclined:
		return fmt.Sprintf("category %q not registered: transaction canceled", e.Value)
	case ReasonAmbiguousCategory:
		return fmt.Sprintf("category %q matches both a top-level category and a subcategory", e.Value)
	case ReasonInvalidCharacter:
		return fmt.Sprintf("%s %q contains a comma or line break", e.Field, e.Value)
	case ReasonInvalidRange:
		return fmt.Sprintf("invalid date range %s", e.Value)
	case ReasonReservedCategory:
		return fmt.Sprintf("category %q is the subcategory container: name one of its subcategories instead", e.Value)
	case ReasonTooLong:
		return fmt.Sprintf("%s is too long: use at most %d characters", e.Field, MaxNameLength)
	default:
		return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RejectionReason extracts the Reason from a validation error chain.
func RejectionReason(err error) (Reason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}

// PersistenceWarning is a non-fatal storage problem: a ledger line that
// could not be loaded, or an append that failed after the in-memory commit.
type PersistenceWarning struct {
	UserID string
	Line   int // 1-based line number for load warnings, 0 for writes
	Op     string
	Err    error
}

func (w *PersistenceWarning) Error() string {
	if w.Line > 0 {
		return fmt.Sprintf("ledger %s line %d: %s: %v", w.UserID, w.Line, w.Op, w.Err)
	}
	return fmt.Sprintf("ledger %s: %s: %v", w.UserID, w.Op, w.Err)
}

func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

func (w *PersistenceWarning) Is(target error) bool {
	return target == ErrPersistence
}

// NotFoundError reports a lookup of a category or user that does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
