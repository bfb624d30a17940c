package tracker

import (
	"errors"
	"fmt"

	"github.com/erazemk/gametracker/internal/model"
)

// Sentinels matched with errors.Is.
var (
	ErrNotFound      = errors.New("item not found")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrDuplicateName = errors.New("duplicate title")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrValidation    = errors.New("invalid item")
)

// NotFoundError reports a missing item id.
type NotFoundError struct {
	Kind model.Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// LimitExceededError reports that the limited status is full.
type LimitExceededError struct {
	Kind  model.Kind
	Limit int
}

func (e *LimitExceededError) Error() string {
	if e.Kind == model.KindBook {
		return fmt.Sprintf("cannot exceed reading limit of %d books", e.Limit)
	}
	return fmt.Sprintf("cannot exceed limit of %d active games", e.Limit)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// DuplicateNameError reports a title clash within the limited status.
type DuplicateNameError struct {
	Kind  model.Kind
	Title string
}

func (e *DuplicateNameError) Error() string {
	if e.Kind == model.KindBook {
		return fmt.Sprintf("a book titled '%s' is already being read", e.Title)
	}
	return fmt.Sprintf("game '%s' already exists in active games", e.Title)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// InvalidLimitError reports a limit outside the allowed range, or below the
// number of items already in the limited status (Count > 0).
type InvalidLimitError struct {
	Kind  model.Kind
	Limit int
	Max   int
	Count int
}

func (e *InvalidLimitError) Error() string {
	if e.Count > 0 {
		return fmt.Sprintf("limit %d is below the %d %s already %s",
			e.Limit, e.Count, e.Kind.Plural(), e.Kind.LimitedStatus())
	}
	return fmt.Sprintf("limit must be between 1 and %d, got %d", e.Max, e.Limit)
}

func (e *InvalidLimitError) Is(target error) bool { return target == ErrInvalidLimit }

// ValidationError reports a malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
