package s3_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/scoserv/pkg/adapters/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	body        []byte
	contentType string
}

// fakeS3 accepts path-style PutObject requests and keeps the objects.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	status  int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.status != 0 {
		return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(
			"<Error><Code>AccessDenied</Code><Message>denied</Message></Error>")),
			Header: http.Header{"Content-Type": {"application/xml"}}}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.objects[strings.TrimPrefix(req.URL.Path, "/")] = object{body: body, contentType: req.Header.Get("Content-Type")}
	f.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

func newMirror(t *testing.T, rt http.RoundTripper, prefix string) *s3.Mirror {
	t.Helper()
	m, err := s3.New(context.Background(), s3.Config{
		Bucket:          "results",
		Endpoint:        "http://mock.s3.local",
		Prefix:          prefix,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, s3.WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return m
}

func writeArchive(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "results.tar.gz")
	require.NoError(t, os.WriteFile(p, []byte("archive-bytes"), 0o644))
	return p
}

func TestMirror_Put(t *testing.T) {
	rt := &fakeS3{objects: map[string]object{}}
	m := newMirror(t, rt, "/runs/")

	loc, err := m.Put(context.Background(), "r1/fd1/results.tar.gz", writeArchive(t), "application/gzip")
	require.NoError(t, err)
	assert.Equal(t, "s3://results/runs/r1/fd1/results.tar.gz", loc)

	obj, ok := rt.objects["results/runs/r1/fd1/results.tar.gz"]
	require.True(t, ok, "object stored under bucket and prefix")
	assert.Equal(t, "archive-bytes", string(obj.body))
	assert.Equal(t, "application/gzip", obj.contentType)
}

func TestMirror_Key(t *testing.T) {
	m := newMirror(t, &fakeS3{objects: map[string]object{}}, "")
	assert.Equal(t, "r1/results.tar.gz", m.Key("/r1/results.tar.gz"))

	m = newMirror(t, &fakeS3{objects: map[string]object{}}, "scoserv")
	assert.Equal(t, "scoserv/r1/results.tar.gz", m.Key("r1/results.tar.gz"))
}

func TestMirror_Errors(t *testing.T) {
	_, err := s3.New(context.Background(), s3.Config{})
	assert.Error(t, err, "bucket is required")

	m := newMirror(t, &fakeS3{objects: map[string]object{}}, "")
	_, err = m.Put(context.Background(), "k", filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)

	m = newMirror(t, &fakeS3{objects: map[string]object{}, status: http.StatusForbidden}, "")
	_, err = m.Put(context.Background(), "k", writeArchive(t), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload k")
}
