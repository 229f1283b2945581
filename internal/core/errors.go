// internal/core/errors.go
//
// Error taxonomy shared by the engine and its boundary.
// Families:
//   - not found:      unknown session, game, dictionary or user id.
//   - validation:     bad parameters, rejected before any state is touched.
//   - conflict:       operation invalid for the current status.
//   - exhaustion:     word pool or session game budget used up.
//   - auth:           credentials, tokens and ownership.
//
// Specific errors wrap their family root, so errors.Is works on both levels.

package core

import (
	"errors"
	"fmt"
)

// Family roots.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("state conflict")
	ErrExhausted  = errors.New("resource exhausted")
	ErrAuth       = errors.New("authentication failed")
)

// Not found.
var (
	ErrSessionNotFound    = fmt.Errorf("%w: session", ErrNotFound)
	ErrGameNotFound       = fmt.Errorf("%w: game", ErrNotFound)
	ErrDictionaryNotFound = fmt.Errorf("%w: dictionary", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
)

// Validation.
var (
	ErrInvalidWord          = fmt.Errorf("%w: invalid secret word", ErrValidation)
	ErrInvalidGuess         = fmt.Errorf("%w: invalid guess", ErrValidation)
	ErrInvalidSessionParams = fmt.Errorf("%w: invalid session parameters", ErrValidation)
	ErrInvalidPeriod        = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrInvalidMetric        = fmt.Errorf("%w: invalid metric", ErrValidation)
	ErrInvalidUser          = fmt.Errorf("%w: invalid user", ErrValidation)
)

// State conflicts.
var (
	ErrGameFinished           = fmt.Errorf("%w: game already finished", ErrConflict)
	ErrDuplicateGuess         = fmt.Errorf("%w: letter already guessed", ErrConflict)
	ErrWordGuessNotAllowed    = fmt.Errorf("%w: word guessing not allowed", ErrConflict)
	ErrSessionNotActive       = fmt.Errorf("%w: session not active", ErrConflict)
	ErrSessionAlreadyFinished = fmt.Errorf("%w: session already finished", ErrConflict)
	ErrMaxSessionsExceeded    = fmt.Errorf("%w: maximum active sessions exceeded", ErrConflict)
	ErrUsernameTaken          = fmt.Errorf("%w: username taken", ErrConflict)
)

// Resource exhaustion.
var (
	ErrSessionGameLimitReached = fmt.Errorf("%w: session game limit reached", ErrExhausted)
	ErrWordPoolExhausted       = fmt.Errorf("%w: no unused word available", ErrExhausted)
)

// Auth.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrAuth)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrAuth)
	ErrForbidden          = errors.New("access forbidden")
)

// NewNotFoundError decorates a not-found sentinel with the offending id.
func NewNotFoundError(sentinel error, id string) error {
	return fmt.Errorf("%w: id %s", sentinel, id)
}

// NewValidationError decorates a validation sentinel with a field and reason.
func NewValidationError(sentinel error, field, reason string) error {
	return fmt.Errorf("%w: %s %s", sentinel, field, reason)
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsExhausted(err error) bool  { return errors.Is(err, ErrExhausted) }
func IsAuth(err error) bool       { return errors.Is(err, ErrAuth) }
func IsForbidden(err error) bool  { return errors.Is(err, ErrForbidden) }
