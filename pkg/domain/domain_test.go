package domain

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Validate(t *testing.T) {
	r := Record{ID: "1", Kind: KindSubject, Properties: map[string]any{PropertyName: "brain"}}
	assert.NoError(t, r.Validate())

	r.Properties[PropertyName] = ""
	assert.ErrorIs(t, r.Validate(), ErrInvalidProperty)

	r = Record{ID: "1", Kind: "widget", Properties: map[string]any{PropertyName: "x"}}
	assert.ErrorIs(t, r.Validate(), ErrInvalidProperty)
}

func TestRecord_CloneIsolatesProperties(t *testing.T) {
	r := Record{ID: "1", Properties: map[string]any{"a": 1}}
	c := r.Clone()
	c.Properties["a"] = 2
	assert.Equal(t, 1, r.Properties["a"])
}

func TestValidateImages(t *testing.T) {
	ok := []GroupImage{
		{ImageID: "1", Folder: "/", Name: "a.png"},
		{ImageID: "2", Folder: "/", Name: "b.png"},
		{ImageID: "3", Folder: "/x/", Name: "a.png"},
	}
	assert.NoError(t, ValidateImages(ok))

	dup := append(ok, GroupImage{ImageID: "4", Folder: "/", Name: "a.png"})
	assert.ErrorIs(t, ValidateImages(dup), ErrDuplicateImage)

	assert.ErrorIs(t, ValidateImages([]GroupImage{{Folder: "/", Name: "a.png"}}), ErrInvalidProperty)
}

func TestNormalizeFolder(t *testing.T) {
	assert.Equal(t, "/", NormalizeFolder(""))
	assert.Equal(t, "/", NormalizeFolder("/"))
	assert.Equal(t, "/a/b/", NormalizeFolder("a/b"))
	assert.Equal(t, "/a/", NormalizeFolder("/a/./"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSubject, KindOf(&Subject{}))
	assert.Equal(t, KindModelRun, KindOf(&ModelRun{}))
	assert.Equal(t, KindImageGroup, KindOf(&ImageGroup{}))

	k, err := ParseKind("functional_data")
	require.NoError(t, err)
	assert.Equal(t, KindFunctionalData, k)

	_, err = ParseKind("prediction")
	assert.Error(t, err)
}

func TestParseListParams(t *testing.T) {
	opts, err := ParseListParams(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Offset)
	assert.Equal(t, DefaultLimit, opts.Limit)

	opts, err = ParseListParams(url.Values{
		"offset":     {"5"},
		"limit":      {"2"},
		"properties": {"filename, mimetype,,"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Offset)
	assert.Equal(t, 2, opts.Limit)
	assert.Equal(t, []string{"filename", "mimetype"}, opts.Properties)

	_, err = ParseListParams(url.Values{"offset": {"-1"}})
	assert.Error(t, err)
	_, err = ParseListParams(url.Values{"limit": {"ten"}})
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	r := &Record{Properties: map[string]any{"name": "n", "filename": "f.png"}}
	assert.Equal(t, map[string]any{"filename": "f.png"}, Project(r, []string{"filename", "missing"}))
}

func TestDecodeRunRequest(t *testing.T) {
	req, err := DecodeRunRequest([]byte(`{"run_id":"r1","experiment_id":"e1"}`))
	require.NoError(t, err)
	assert.Equal(t, RunRequest{RunID: "r1", ExperimentID: "e1"}, req)

	_, err = DecodeRunRequest([]byte(`{"run_id":"r1"}`))
	assert.Error(t, err)
	_, err = DecodeRunRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	err := &ReferenceError{Kind: KindImageGroup, ID: "g1"}
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, "unknown image group: g1", err.Error())

	cause := errors.New("disk full")
	cerr := &ComputationError{Category: "IOError", Message: "disk full", Err: cause}
	assert.ErrorIs(t, cerr, ErrComputation)
	assert.ErrorIs(t, cerr, cause)
	assert.Equal(t, "IOError: disk full", cerr.Error())
}

func TestCombineHooks(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnStarted: func(context.Context, *RunEvent) { calls = append(calls, "a") }}
	b := LifecycleHooks{OnStarted: func(context.Context, *RunEvent) { calls = append(calls, "b") }}

	hooks := Combine(a, b)
	require.NotNil(t, hooks.OnStarted)
	assert.Nil(t, hooks.OnFailed)

	hooks.OnStarted(context.Background(), &RunEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
}
