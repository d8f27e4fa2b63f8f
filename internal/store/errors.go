package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Domain error kinds raised by repositories. Handlers map these onto
// HTTP status codes; anything unwrapped falls through as internal.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("duplicate key")

	// ErrValidation is returned for malformed or out-of-range input,
	// including rejected references (e.g. an issue naming a project
	// that does not exist).
	ErrValidation = errors.New("invalid input")

	// ErrInconsistent is returned when stored data contradicts itself,
	// e.g. an issue whose project row is missing.
	ErrInconsistent = errors.New("inconsistent data")
)

// Postgres error codes of interest.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// translate maps driver-level constraint failures onto domain errors.
// Everything else passes through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: missing referenced row (%s)", ErrValidation, pqErr.Constraint)
		case pqCheckViolation:
			return fmt.Errorf("%w: constraint %s", ErrValidation, pqErr.Constraint)
		}
	}
	return err
}
