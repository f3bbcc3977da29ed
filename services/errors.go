package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	ErrLocationNotSet = errors.New("location not set")
	ErrLocationStale  = fmt.Errorf("%w: last fix is too old, update your location", ErrLocationNotSet)

	ErrJobNotFound = fmt.Errorf("service request %w", ErrNotFound)

	ErrJobNoLongerAvailable  = fmt.Errorf("%w: job no longer available", ErrConflict)
	ErrInvalidTransition     = fmt.Errorf("%w: invalid transition", ErrConflict)
	ErrPriceAlreadyFinalized = fmt.Errorf("%w: price already finalized", ErrConflict)
	ErrPriceNotFinalized     = fmt.Errorf("%w: price not finalized", ErrConflict)
	ErrAlreadyPaid           = fmt.Errorf("%w: already paid", ErrConflict)
	ErrNotWithdrawable       = fmt.Errorf("%w: request can no longer be withdrawn", ErrConflict)
)

// ValidationError names the offending input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func transitionError(current, requested string) error {
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, current, requested)
}

// Kind is the coarse class of an engine error
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindLocationNotSet Kind = "location_not_set"
	KindForbidden      Kind = "forbidden"
	KindInternal       Kind = "internal"
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrLocationNotSet):
		return KindLocationNotSet
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
