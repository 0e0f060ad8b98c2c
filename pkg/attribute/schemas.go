package attribute

// ImageGroupOptions is the fixed option schema of image groups.
func ImageGroupOptions() Schema {
	return Schema{
		"stimulus_pixels_per_degree":   MustDefine("stimulus_pixels_per_degree", Float()),
		"stimulus_edge_value":          MustDefine("stimulus_edge_value", Float(), WithDefault(0.5)),
		"stimulus_aperture_edge_value": MustDefine("stimulus_aperture_edge_value", Float()),
		"normalized_stimulus_aperture": MustDefine("normalized_stimulus_aperture", Float()),
		"stimulus_gamma":               MustDefine("stimulus_gamma", Array(Float())),
	}
}

// ModelParameters is the parameter schema of the default predictive model.
func ModelParameters() Schema {
	return Schema{
		"gabor_orientations":           MustDefine("gabor_orientations", Int(), WithDefault(8)),
		"max_eccentricity":             MustDefine("max_eccentricity", Float(), WithDefault(12)),
		"stimulus_aperture_edge_value": MustDefine("stimulus_aperture_edge_value", Float()),
		"normalized_pixels_per_degree": MustDefine("normalized_pixels_per_degree", Float()),
	}
}
