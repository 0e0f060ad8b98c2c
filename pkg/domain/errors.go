package domain

import (
	"errors"
	"fmt"

	"github.com/aretw0/scoserv/pkg/attribute"
)

var (
	// ErrNotFound is returned when an identifier does not resolve to a record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference is returned when a composite entity references a missing related record.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrIllegalPropertyOperation is returned when an immutable or mandatory property would be violated.
	ErrIllegalPropertyOperation = errors.New("illegal property operation")

	// ErrInvalidRunState is returned when a model run state transition is not permitted.
	ErrInvalidRunState = errors.New("invalid run state")

	// ErrDispatch is returned when a run could not be handed to a worker.
	ErrDispatch = errors.New("dispatch failed")

	// ErrComputation marks failures raised by the external model computation.
	ErrComputation = errors.New("computation failed")

	// ErrUnsupportedFile is returned when an uploaded file has an unexpected type.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrDuplicateImage is returned when an image group lists the same folder and name twice.
	ErrDuplicateImage = errors.New("duplicate image in group")

	// ErrInvalidProperty is returned when record properties break the record invariants.
	ErrInvalidProperty = errors.New("invalid property")
)

// Schema violations are owned by the attribute package; they are re-exported
// here so callers can match the full taxonomy from one place.
var (
	ErrUnknownAttribute      = attribute.ErrUnknownAttribute
	ErrInvalidAttributeValue = attribute.ErrInvalidAttributeValue
	ErrDuplicateAttribute    = attribute.ErrDuplicateAttribute
)

// ComputationError is the failure raised by a model computation.
// Category names the failure class and is recorded in the run's error list.
type ComputationError struct {
	Category string
	Message  string
	Err      error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ComputationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrComputation, e.Err}
	}
	return []error{ErrComputation}
}

// ReferenceError names the missing record behind an ErrInvalidReference.
type ReferenceError struct {
	Kind Kind
	ID   string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind.Label(), e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrInvalidReference }
