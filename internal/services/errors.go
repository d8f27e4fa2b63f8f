package services

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the handler layer. Store errors
// (not-found, conflict) pass through services unwrapped.
var (
	// ErrInvalidInput marks a request rejected by service-level
	// validation before it reaches the database.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is the single failure mode for login:
	// unknown username and wrong password are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
