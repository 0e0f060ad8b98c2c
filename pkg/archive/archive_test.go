package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResult_TwoEntries(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "prediction.mgz")
	require.NoError(t, os.WriteFile(primary, []byte("volume"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, primary, []string{"/a.png", "/b.png"}))

	entries, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "prediction.mgz", entries[0].Name)
	assert.Equal(t, "volume", string(entries[0].Data))
	assert.Equal(t, ManifestName, entries[1].Name)
	assert.Equal(t, "/a.png\n/b.png\n", string(entries[1].Data))
}

func TestWriteResult_RejectsManifestName(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, ManifestName)
	require.NoError(t, os.WriteFile(primary, []byte("x"), 0o644))

	assert.Error(t, WriteResult(&bytes.Buffer{}, primary, nil))
}

func TestCreateResult_ReadManifest(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "out.mgz")
	require.NoError(t, os.WriteFile(primary, []byte("v"), 0o644))

	dest := filepath.Join(dir, "result.tar.gz")
	require.NoError(t, CreateResult(dest, primary, []string{"/x/b.png", "/a.png"}))

	paths, err := ReadManifest(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/b.png", "/a.png"}, paths, "manifest keeps declaration order")
}

func TestCreateResult_MissingPrimaryLeavesNoFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "result.tar.gz")
	err := CreateResult(dest, filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestWriteDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "surf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "surf", "lh.white"), []byte("w"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteDir(context.Background(), &buf, root))

	entries, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "surf/lh.white", entries[0].Name)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	b := filepath.Join(dir, "b.png")
	a := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteFiles(context.Background(), &buf, []Member{
		{Name: "/x/b.png", Path: b},
		{Name: "/a.png", Path: a},
	}))

	entries, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "x/b.png", entries[0].Name)
	assert.Equal(t, "a.png", entries[1].Name)
	assert.Equal(t, "a", string(entries[1].Data))

	err = WriteFiles(context.Background(), &bytes.Buffer{}, []Member{{Name: "/", Path: a}})
	assert.Error(t, err)
}
