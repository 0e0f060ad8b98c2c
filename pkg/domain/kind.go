package domain

import "fmt"

// Kind identifies the type of a stored record.
type Kind string

const (
	KindSubject        Kind = "subject"
	KindImage          Kind = "image"
	KindImageGroup     Kind = "image_group"
	KindExperiment     Kind = "experiment"
	KindFunctionalData Kind = "functional_data"
	KindModelRun       Kind = "model_run"
)

// Kinds lists every record kind.
var Kinds = []Kind{
	KindSubject,
	KindImage,
	KindImageGroup,
	KindExperiment,
	KindFunctionalData,
	KindModelRun,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSubject, KindImage, KindImageGroup, KindExperiment, KindFunctionalData, KindModelRun:
		return true
	}
	return false
}

// Label is the human-readable name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindImageGroup:
		return "image group"
	case KindFunctionalData:
		return "functional data"
	case KindModelRun:
		return "model run"
	default:
		return string(k)
	}
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown record kind: %q", s)
	}
	return k, nil
}
