package takarik

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("takarik: record not found")
)

// InvalidConditionError reports malformed predicate input. It is a caller
// bug and is never retried.
type InvalidConditionError struct {
	Reason string
	Value  any
}

// Error returns the error string.
func (e *InvalidConditionError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("takarik: invalid condition: %s (%T)", e.Reason, e.Value)
	}
	return fmt.Sprintf("takarik: invalid condition: %s", e.Reason)
}

// NewInvalidConditionError returns a new InvalidConditionError.
func NewInvalidConditionError(reason string, value any) *InvalidConditionError {
	return &InvalidConditionError{Reason: reason, Value: value}
}

// IsInvalidCondition returns true if the error is an InvalidConditionError.
func IsInvalidCondition(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidConditionError
	return errors.As(err, &e)
}

// AssociationNotFoundError reports a reference to an association name that
// was never registered for the entity type.
type AssociationNotFoundError struct {
	Entity string
	Name   string
}

// Error returns the error string.
func (e *AssociationNotFoundError) Error() string {
	return fmt.Sprintf("takarik: association %q not found on %s", e.Name, e.Entity)
}

// NewAssociationNotFoundError returns a new AssociationNotFoundError.
func NewAssociationNotFoundError(entity, name string) *AssociationNotFoundError {
	return &AssociationNotFoundError{Entity: entity, Name: name}
}

// IsAssociationNotFound returns true if the error is an AssociationNotFoundError.
func IsAssociationNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *AssociationNotFoundError
	return errors.As(err, &e)
}

// UnsupportedJoinError reports an attempt to build a direct SQL join over an
// association that cannot be joined, such as a polymorphic association.
type UnsupportedJoinError struct {
	Entity string
	Name   string
	Reason string
}

// Error returns the error string.
func (e *UnsupportedJoinError) Error() string {
	return fmt.Sprintf("takarik: cannot join %q on %s: %s", e.Name, e.Entity, e.Reason)
}

// NewUnsupportedJoinError returns a new UnsupportedJoinError.
func NewUnsupportedJoinError(entity, name, reason string) *UnsupportedJoinError {
	return &UnsupportedJoinError{Entity: entity, Name: name, Reason: reason}
}

// IsUnsupportedJoin returns true if the error is an UnsupportedJoinError.
func IsUnsupportedJoin(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedJoinError
	return errors.As(err, &e)
}

// RecordNotFoundError reports a finder that found zero rows where one or
// more was required.
type RecordNotFoundError struct {
	entity string
	id     any // Optional: the primary key that was searched for
}

// Error returns the error string.
func (e *RecordNotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("takarik: %s not found (id=%v)", e.entity, e.id)
	}
	return fmt.Sprintf("takarik: %s not found", e.entity)
}

// Is reports whether the target error matches RecordNotFoundError.
// This allows errors.Is(err, ErrNotFound) to return true.
func (e *RecordNotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Entity returns the entity type name.
func (e *RecordNotFoundError) Entity() string {
	return e.entity
}

// ID returns the primary key that was searched for, if available.
func (e *RecordNotFoundError) ID() any {
	return e.id
}

// NewRecordNotFoundError returns a new RecordNotFoundError for the given
// entity type.
func NewRecordNotFoundError(entity string) *RecordNotFoundError {
	return &RecordNotFoundError{entity: entity}
}

// NewRecordNotFoundErrorWithID returns a new RecordNotFoundError with the
// primary key that was searched for.
func NewRecordNotFoundErrorWithID(entity string, id any) *RecordNotFoundError {
	return &RecordNotFoundError{entity: entity, id: id}
}

// IsRecordNotFound returns true if the error is a RecordNotFoundError.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *RecordNotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ReadOnlyRecordError reports a mutating call on a record marked read-only.
type ReadOnlyRecordError struct {
	Entity string
}

// Error returns the error string.
func (e *ReadOnlyRecordError) Error() string {
	return fmt.Sprintf("takarik: %s is marked read-only", e.Entity)
}

// NewReadOnlyRecordError returns a new ReadOnlyRecordError.
func NewReadOnlyRecordError(entity string) *ReadOnlyRecordError {
	return &ReadOnlyRecordError{Entity: entity}
}

// IsReadOnlyRecord returns true if the error is a ReadOnlyRecordError.
func IsReadOnlyRecord(err error) bool {
	if err == nil {
		return false
	}
	var e *ReadOnlyRecordError
	return errors.As(err, &e)
}

// StrictLoadingViolationError reports a lazy association access on a record
// marked for strict loading.
type StrictLoadingViolationError struct {
	Entity      string
	Association string
}

// Error returns the error string.
func (e *StrictLoadingViolationError) Error() string {
	return fmt.Sprintf("takarik: strict loading violation: %s.%s was not eager-loaded", e.Entity, e.Association)
}

// NewStrictLoadingViolationError returns a new StrictLoadingViolationError.
func NewStrictLoadingViolationError(entity, association string) *StrictLoadingViolationError {
	return &StrictLoadingViolationError{Entity: entity, Association: association}
}

// IsStrictLoadingViolation returns true if the error is a StrictLoadingViolationError.
func IsStrictLoadingViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *StrictLoadingViolationError
	return errors.As(err, &e)
}

// ValidationError carries the full field-to-messages map of a failed
// validation. It is returned by the bang save variants only; the non-bang
// variants report validation failure as a false return.
type ValidationError struct {
	Entity string
	Fields map[string][]string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("takarik: validation failed for %s", e.Entity)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	fmt.Fprintf(&sb, "takarik: validation failed for %s:", e.Entity)
	for _, name := range names {
		for _, msg := range e.Fields[name] {
			fmt.Fprintf(&sb, " %s %s;", name, msg)
		}
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// NewValidationError returns a new ValidationError carrying the per-field
// error map.
func NewValidationError(entity string, fields map[string][]string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: fields}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// StaleObjectError reports an optimistic-lock conflict: an UPDATE carrying a
// stale lock version affected zero rows. The caller must reload and retry;
// this layer never retries on its own.
type StaleObjectError struct {
	Entity string
	ID     any
}

// Error returns the error string.
func (e *StaleObjectError) Error() string {
	return fmt.Sprintf("takarik: stale object: attempted to update %s (id=%v) with a stale lock version", e.Entity, e.ID)
}

// NewStaleObjectError returns a new StaleObjectError.
func NewStaleObjectError(entity string, id any) *StaleObjectError {
	return &StaleObjectError{Entity: entity, ID: id}
}

// IsStaleObject returns true if the error is a StaleObjectError.
func IsStaleObject(err error) bool {
	if err == nil {
		return false
	}
	var e *StaleObjectError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("takarik: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}
