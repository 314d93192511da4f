// Package service provides business logic for the application.
package service

import "errors"

// Service errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidSurname     = errors.New("invalid surname")
	ErrEntryNotFound      = errors.New("journal entry not found")
	ErrMalformedCommand   = errors.New("malformed command")
	ErrNothingExtracted   = errors.New("no rounds or events recognized")
	ErrNothingToRemove    = errors.New("nothing in the entry matches")
)
