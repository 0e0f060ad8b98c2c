package attribute

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAttribute is returned when an attribute name is absent from the schema.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrInvalidAttributeValue is returned when a value does not satisfy its definition.
	ErrInvalidAttributeValue = errors.New("invalid attribute value")
	// ErrDuplicateAttribute is returned when caller input repeats an attribute name.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
)

// Error describes a single schema violation. It wraps one of the sentinel
// errors above so callers can match with errors.Is.
type Error struct {
	Kind   error  // ErrUnknownAttribute, ErrInvalidAttributeValue or ErrDuplicateAttribute
	Name   string // Attribute name
	Reason string // Optional detail
	Value  any
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Name, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }
