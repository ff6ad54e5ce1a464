package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLicenseRestricted marks content that may not be imported under its license.
	ErrLicenseRestricted = errors.New("license restricted")
	// ErrCancelled marks work abandoned because its job was cancelled.
	ErrCancelled = errors.New("cancelled")
)
