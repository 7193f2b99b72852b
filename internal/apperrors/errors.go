// Package apperrors holds the error kinds shared by the repositories,
// services and handlers.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrDependency = errors.New("dependency failure")
)

// ValidationError reports caller-supplied data that violates an invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Dependency(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependency, op, err)
}

// CompensationError means a multi-step write partially succeeded and the
// rollback step failed too. The store is left inconsistent.
type CompensationError struct {
	Op          string
	Cause       error
	RollbackErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: compensation failed after %v: %v", e.Op, e.Cause, e.RollbackErr)
}

func (e *CompensationError) Unwrap() []error { return []error{e.Cause, e.RollbackErr} }

// uniqueViolation is SQLSTATE unique_violation.
const uniqueViolation = "23505"

// FromDB translates store errors into the kinds above. Unknown errors are
// returned unchanged.
func FromDB(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Conflict("duplicate %s", entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Conflict("duplicate %s (%s)", entity, pgErr.ConstraintName)
	}
	return err
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }

func IsCompensation(err error) bool {
	var ce *CompensationError
	return errors.As(err, &ce)
}
