package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_Overwrites(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "file.txt")

	require.NoError(t, WriteAtomic(dest, strings.NewReader("one"), 0o644))
	require.NoError(t, WriteAtomic(dest, strings.NewReader("two"), 0o644))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "mri"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "mri", "T1.mgz"), []byte("t1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("r"), 0o644))

	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "mri", "T1.mgz"))
	require.NoError(t, err)
	assert.Equal(t, "t1", string(data))
	assert.FileExists(t, filepath.Join(dest, "README"))
}

func TestCopyFile_RejectsDirectories(t *testing.T) {
	err := CopyFile(t.TempDir(), filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}
