package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInternal           = errors.New("internal error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrIncompleteIdentity = errors.New("incomplete identity")
	ErrHashingFailure     = errors.New("password hashing failure")
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

// NewIncompleteIdentity names the first missing identity field.
func NewIncompleteIdentity(field string) error {
	return fmt.Errorf("%w: missing %s", ErrIncompleteIdentity, field)
}

func WrapHashing(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrHashingFailure, context, err)
}

// NewInvalidToken keeps the cause reachable through errors.Is so callers can
// tell an expired token from a tampered one when they need to.
func NewInvalidToken(cause error) error {
	if cause == nil {
		return ErrInvalidToken
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

func IsIncompleteIdentity(err error) bool {
	return errors.Is(err, ErrIncompleteIdentity)
}

func IsHashingFailure(err error) bool {
	return errors.Is(err, ErrHashingFailure)
}
