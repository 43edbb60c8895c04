package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Sync engine errors
	ErrRecordNotFound = errors.New("record not found")
	ErrValidation     = errors.New("validation failed")
	ErrScopeViolation = errors.New("record outside caller scope")
	ErrStoreUnhealthy = errors.New("backing store unavailable")

	// Trash related errors
	ErrTrashEntryNotFound = errors.New("trash entry not found")
	ErrAlreadyRestored    = errors.New("trash entry already restored")

	// Deletion approval errors
	ErrDeletionNotFound   = errors.New("deletion request not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrDuplicateReference = errors.New("deletion reference already used")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
