package attribute

import (
	"fmt"
	"sort"
)

// Attribute is a named value.
type Attribute struct {
	Name  string `json:"name" mapstructure:"name"`
	Value any    `json:"value" mapstructure:"value"`
}

// Definition declares the name, type and optional default of an attribute.
type Definition struct {
	Name       string
	Type       Type
	Default    any
	HasDefault bool
}

// DefinitionOption configures a Definition.
type DefinitionOption func(*Definition)

// WithDefault sets the default value of a definition.
func WithDefault(value any) DefinitionOption {
	return func(d *Definition) {
		d.Default = value
		d.HasDefault = true
	}
}

// NewDefinition creates an attribute definition. It fails if a default is given
// that does not satisfy the type.
func NewDefinition(name string, typ Type, opts ...DefinitionOption) (Definition, error) {
	def := Definition{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&def)
	}
	if typ == nil {
		return Definition{}, fmt.Errorf("attribute %s: type is nil", name)
	}
	if def.HasDefault {
		if err := typ.Validate(def.Default); err != nil {
			return Definition{}, &Error{Kind: ErrInvalidAttributeValue, Name: name, Reason: "default: " + err.Error(), Value: def.Default}
		}
	}
	return def, nil
}

// MustDefine is like NewDefinition but panics on error. Intended for package-level schemas.
func MustDefine(name string, typ Type, opts ...DefinitionOption) Definition {
	def, err := NewDefinition(name, typ, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// Validate checks a value against the definition's type.
func (d Definition) Validate(value any) error {
	return d.Type.Validate(value)
}

// Schema maps attribute names to their definitions.
type Schema map[string]Definition

// Defaults returns an attribute for every definition that carries a default.
func (s Schema) Defaults() map[string]Attribute {
	result := make(map[string]Attribute)
	for name, def := range s {
		if def.HasDefault {
			result[name] = Attribute{Name: name, Value: def.Default}
		}
	}
	return result
}

// Build creates a validated attribute set: defaults first, then the caller's
// attributes on top.
func (s Schema) Build(attrs []Attribute) (map[string]Attribute, error) {
	result := s.Defaults()
	seen := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		if _, dup := seen[attr.Name]; dup {
			return nil, &Error{Kind: ErrDuplicateAttribute, Name: attr.Name}
		}
		seen[attr.Name] = struct{}{}

		if err := s.check(attr); err != nil {
			return nil, err
		}
		result[attr.Name] = attr
	}
	return result, nil
}

// Validate checks an existing attribute set, e.g. one read back from storage.
func (s Schema) Validate(set map[string]Attribute) error {
	for _, name := range sortedNames(set) {
		if err := s.check(set[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s Schema) check(attr Attribute) error {
	def, ok := s[attr.Name]
	if !ok {
		return &Error{Kind: ErrUnknownAttribute, Name: attr.Name}
	}
	if err := def.Validate(attr.Value); err != nil {
		return &Error{Kind: ErrInvalidAttributeValue, Name: attr.Name, Reason: err.Error(), Value: attr.Value}
	}
	return nil
}

// Merge returns base overlaid with override; override wins on name collision.
func Merge(base, override map[string]Attribute) map[string]Attribute {
	result := make(map[string]Attribute, len(base)+len(override))
	for name, attr := range base {
		result[name] = attr
	}
	for name, attr := range override {
		result[name] = attr
	}
	return result
}

// Values flattens an attribute set into a plain name->value map.
func Values(set map[string]Attribute) map[string]any {
	result := make(map[string]any, len(set))
	for name, attr := range set {
		result[name] = attr.Value
	}
	return result
}

func sortedNames(set map[string]Attribute) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
