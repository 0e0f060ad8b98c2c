package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultLimit is the page size used when a listing does not set one.
const DefaultLimit = 10

// Listing query parameter names.
const (
	ParamOffset     = "offset"
	ParamLimit      = "limit"
	ParamProperties = "properties"
)

// ListOptions selects a page of active records.
// A negative Limit returns every record from Offset on.
type ListOptions struct {
	Filter     map[string]string
	Offset     int
	Limit      int
	Properties []string
}

// ParseListParams reads offset, limit and properties from query parameters.
func ParseListParams(values url.Values) (ListOptions, error) {
	opts := ListOptions{Limit: DefaultLimit}

	if raw := values.Get(ParamOffset); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListOptions{}, fmt.Errorf("invalid %s: %q", ParamOffset, raw)
		}
		opts.Offset = n
	}
	if raw := values.Get(ParamLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListOptions{}, fmt.Errorf("invalid %s: %q", ParamLimit, raw)
		}
		opts.Limit = n
	}
	if raw := values.Get(ParamProperties); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.Properties = append(opts.Properties, p)
			}
		}
	}
	return opts, nil
}

// Page is one slice of a listing together with the full match count.
type Page[T any] struct {
	Items  []T
	Total  int
	Offset int
	Limit  int
}

// Project returns the requested properties of a record. Missing properties are omitted.
func Project(r *Record, props []string) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		if v, ok := r.Properties[p]; ok {
			out[p] = v
		}
	}
	return out
}
