// Package attribute provides the typed attribute system used to validate
// configurable option sets (image group options, model run arguments).
//
// The type system is deliberately closed: Float, Int and Array(elem). A Schema
// maps attribute names to Definitions and builds validated attribute sets from
// caller input:
//
//	opts := attribute.Schema{
//	    "stimulus_edge_value": attribute.MustDefine("stimulus_edge_value", attribute.Float(), attribute.WithDefault(0.5)),
//	    "stimulus_gamma":      attribute.MustDefine("stimulus_gamma", attribute.Array(attribute.Float())),
//	}
//
//	set, err := opts.Build([]attribute.Attribute{{Name: "stimulus_gamma", Value: []any{[]any{1.0}}}})
//	if errors.Is(err, attribute.ErrUnknownAttribute) {
//	    // reject the request
//	}
package attribute
