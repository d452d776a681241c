package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow error taxonomy. Typed errors below match
// these through errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

// NewNotFound returns a NotFoundError for entity/id.
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a state or uniqueness conflict.
type ConflictError struct {
	Message string `json:"message"`
}

// NewConflict returns a ConflictError with a formatted message.
func NewConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ForbiddenError reports an actor acting outside its authority.
type ForbiddenError struct {
	ActorID string `json:"actor_id"`
	Action  string `json:"action"`
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s may not %s", e.ActorID, e.Action)
}

// Is matches ErrForbidden.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
