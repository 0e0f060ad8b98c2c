package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile creates dir/name with data, creating parent directories.
// It fails the test immediately on error.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "Failed to create parent dir")
	require.NoError(t, os.WriteFile(path, data, 0o644), "Failed to write %s", name)
	return path
}

// SubjectTree creates a minimal Freesurfer-like directory tree and returns
// its root.
func SubjectTree(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "subj01")
	WriteFile(t, root, "mri/T1.mgz", []byte("t1"))
	WriteFile(t, root, "surf/lh.white", []byte("lh"))
	WriteFile(t, root, "surf/rh.white", []byte("rh"))
	return root
}

// ImageFiles creates one small file per name in a temp dir and returns their paths.
func ImageFiles(t *testing.T, names ...string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, WriteFile(t, dir, name, []byte("image:"+name)))
	}
	return paths
}
