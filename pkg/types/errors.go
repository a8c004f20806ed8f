package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrCollision      = errors.New("storage collision")
	ErrValidation     = errors.New("validation failed")
	ErrReconstruction = errors.New("reconstruction failed")
	ErrCollaborator   = errors.New("collaborator failed")
	ErrPredefined     = errors.New("predefined media cannot be deleted")
	ErrCapacity       = errors.New("session capacity exceeded")
)

// NotFoundError reports an unknown id together with the ids that do exist, so
// a caller can recover. Known is nil when enumerating alternatives makes no
// sense (e.g. database lookups).
type NotFoundError struct {
	Kind  string   // "model" or "media"
	ID    string
	Known []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.ID)
	if e.Known == nil {
		return msg
	}
	if len(e.Known) == 0 {
		return msg + " (no " + e.Kind + " records exist)"
	}
	return msg + "; available: " + strings.Join(e.Known, ", ")
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageCollisionError is returned when an id is already taken, or when id
// generation exhausted its retries.
type StorageCollisionError struct {
	Kind     string
	ID       string
	Attempts int
}

func (e *StorageCollisionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("could not generate a unique %s id after %d attempts", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%s id %q already exists", e.Kind, e.ID)
}

func (e *StorageCollisionError) Unwrap() error { return ErrCollision }

// ValidationError reports a malformed parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReconstructionError is returned when an external engine rejects its input.
type ReconstructionError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *ReconstructionError) Error() string {
	if e.Stage == "" {
		return "reconstruction rejected input: " + e.Message
	}
	return fmt.Sprintf("%s stage rejected input: %s", e.Stage, e.Message)
}

func (e *ReconstructionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReconstruction}
	}
	return []error{ErrReconstruction, e.Err}
}

// CollaboratorError wraps a failure of an external collaborator (solver,
// gapfilling or correction service) with its original message attached.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCollaborator}
	}
	return []error{ErrCollaborator, e.Err}
}

// PredefinedMediaError rejects deletion of a predefined media record.
type PredefinedMediaError struct {
	ID string
}

func (e *PredefinedMediaError) Error() string {
	return fmt.Sprintf("media %q is predefined and cannot be deleted", e.ID)
}

func (e *PredefinedMediaError) Unwrap() error { return ErrPredefined }

// CapacityError is returned when a session has reached its configured size.
type CapacityError struct {
	Kind  string
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session already holds the maximum of %d %s records", e.Limit, e.Kind)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }
