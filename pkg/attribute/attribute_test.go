package attribute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefinition_InvalidDefault(t *testing.T) {
	_, err := NewDefinition("orientations", Int(), WithDefault("eight"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAttributeValue)

	def, err := NewDefinition("orientations", Int(), WithDefault(8))
	require.NoError(t, err)
	assert.True(t, def.HasDefault)
	assert.Equal(t, 8, def.Default)
}

func TestMustDefine_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustDefine("gamma", Array(Float()), WithDefault([]any{[]any{1.0}, []any{1.0, 2.0}}))
	})
}

func TestSchema_Build(t *testing.T) {
	schema := ModelParameters()

	t.Run("defaults only", func(t *testing.T) {
		set, err := schema.Build(nil)
		require.NoError(t, err)
		assert.Len(t, set, 2)
		assert.Equal(t, 8, set["gabor_orientations"].Value)
		assert.Equal(t, 12, set["max_eccentricity"].Value)
	})

	t.Run("caller overrides default", func(t *testing.T) {
		set, err := schema.Build([]Attribute{{Name: "max_eccentricity", Value: 10.5}})
		require.NoError(t, err)
		assert.Equal(t, 10.5, set["max_eccentricity"].Value)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := schema.Build([]Attribute{{Name: "speed", Value: 1.0}})
		assert.ErrorIs(t, err, ErrUnknownAttribute)

		var attrErr *Error
		require.True(t, errors.As(err, &attrErr))
		assert.Equal(t, "speed", attrErr.Name)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := schema.Build([]Attribute{{Name: "gabor_orientations", Value: 2.5}})
		assert.ErrorIs(t, err, ErrInvalidAttributeValue)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := schema.Build([]Attribute{
			{Name: "max_eccentricity", Value: 1.0},
			{Name: "max_eccentricity", Value: 2.0},
		})
		assert.ErrorIs(t, err, ErrDuplicateAttribute)
	})
}

func TestSchema_Validate(t *testing.T) {
	schema := ImageGroupOptions()

	assert.NoError(t, schema.Validate(map[string]Attribute{
		"stimulus_gamma": {Name: "stimulus_gamma", Value: []any{[]any{1.0, 2.0}}},
	}))
	assert.ErrorIs(t, schema.Validate(map[string]Attribute{
		"stimulus_gamma": {Name: "stimulus_gamma", Value: []any{[]any{1.0}, []any{2.0, 3.0}}},
	}), ErrInvalidAttributeValue)
}

func TestMerge_OverrideWins(t *testing.T) {
	base := map[string]Attribute{
		"a": {Name: "a", Value: 1},
		"b": {Name: "b", Value: 2},
	}
	override := map[string]Attribute{"b": {Name: "b", Value: 3}}

	merged := Merge(base, override)
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, Values(merged))
	assert.Equal(t, 2, base["b"].Value, "base must not be mutated")
}

func TestEncodeDecode(t *testing.T) {
	set := map[string]Attribute{
		"b": {Name: "b", Value: 2.0},
		"a": {Name: "a", Value: []any{[]any{1.0}}},
	}

	encoded := Encode(set)
	require.Len(t, encoded, 2)
	assert.Equal(t, "a", encoded[0].(map[string]any)["name"])

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, set, decoded)

	_, err = Decode([]any{
		map[string]any{"name": "a", "value": 1},
		map[string]any{"name": "a", "value": 2},
	})
	assert.ErrorIs(t, err, ErrDuplicateAttribute)
}
