package attribute

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ToList converts an attribute set into its persisted list form, ordered by name.
func ToList(set map[string]Attribute) []Attribute {
	list := make([]Attribute, 0, len(set))
	for _, name := range sortedNames(set) {
		list = append(list, set[name])
	}
	return list
}

// FromList converts the persisted list form back into an attribute set.
// Duplicate names fail with ErrDuplicateAttribute.
func FromList(list []Attribute) (map[string]Attribute, error) {
	set := make(map[string]Attribute, len(list))
	for _, attr := range list {
		if _, dup := set[attr.Name]; dup {
			return nil, &Error{Kind: ErrDuplicateAttribute, Name: attr.Name}
		}
		set[attr.Name] = attr
	}
	return set, nil
}

// Decode reads an attribute list from a generic document value (as produced by
// a JSON or YAML decoder).
func Decode(raw any) (map[string]Attribute, error) {
	if raw == nil {
		return map[string]Attribute{}, nil
	}
	var list []Attribute
	if err := mapstructure.Decode(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return FromList(list)
}

// Encode produces the generic document value for an attribute set.
func Encode(set map[string]Attribute) []any {
	list := ToList(set)
	out := make([]any, 0, len(list))
	for _, attr := range list {
		out = append(out, map[string]any{"name": attr.Name, "value": attr.Value})
	}
	return out
}
