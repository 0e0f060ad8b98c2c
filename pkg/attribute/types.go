package attribute

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Type defines the contract for attribute value validation.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "float", "[float]").
	Name() string
	// Validate checks if a value conforms to this type. It has no side effects.
	Validate(value any) error
}

// FloatType validates numeric values. Integers are accepted as floats.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch v := value.(type) {
	case float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return fmt.Errorf("expected float, got %q", v.String())
		}
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

// IntType validates integer values.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON decoding yields float64 for every number.
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return fmt.Errorf("expected int, got %q", v.String())
		}
		return nil
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

// ArrayType validates a list of fixed-length tuples. Every tuple element must
// validate against the element type and every tuple must have the length of
// the first one.
type ArrayType struct {
	elemType Type
}

func (t *ArrayType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

// Elem returns the tuple element type.
func (t *ArrayType) Elem() Type { return t.elemType }

func (t *ArrayType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected array, got %T", value)
	}

	tupleLen := -1
	for i := 0; i < rv.Len(); i++ {
		tuple := reflect.ValueOf(rv.Index(i).Interface())
		if !tuple.IsValid() || (tuple.Kind() != reflect.Slice && tuple.Kind() != reflect.Array) {
			return fmt.Errorf("element %d: expected tuple, got %T", i, rv.Index(i).Interface())
		}
		if tupleLen < 0 {
			tupleLen = tuple.Len()
		} else if tuple.Len() != tupleLen {
			return fmt.Errorf("element %d: tuple length %d, want %d", i, tuple.Len(), tupleLen)
		}
		for j := 0; j < tuple.Len(); j++ {
			if err := t.elemType.Validate(tuple.Index(j).Interface()); err != nil {
				return fmt.Errorf("element %d.%d: %w", i, j, err)
			}
		}
	}
	return nil
}

// Float creates a float type validator.
func Float() Type { return &FloatType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Array creates a tuple-array validator for elements of the given type.
func Array(elemType Type) Type {
	return &ArrayType{elemType: elemType}
}

// Valid reports whether value conforms to typ.
func Valid(typ Type, value any) bool {
	return typ.Validate(value) == nil
}

// ParseType converts a type name produced by Type.Name back into a Type.
func ParseType(name string) (Type, error) {
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return Array(elem), nil
	}
	switch name {
	case "float":
		return Float(), nil
	case "int":
		return Int(), nil
	default:
		return nil, fmt.Errorf("unknown attribute type: %s", name)
	}
}
