package store

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// decodeFields decodes kind-specific document fields into out. Timestamps are
// stored as RFC 3339 strings.
func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("invalid document fields: %w", err)
	}
	return nil
}

// putTime stores t under key unless it is the zero time.
func putTime(fields map[string]any, key string, t time.Time) {
	if !t.IsZero() {
		fields[key] = t.UTC().Format(time.RFC3339Nano)
	}
}
