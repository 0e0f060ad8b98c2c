// Package archive writes the gzip-compressed tar archives served as
// downloadable artifacts: model results with their image manifest, and
// snapshots of record directories.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ManifestName is the name of the image manifest entry in result archives.
const ManifestName = "images.txt"

// MimeType is the content type of every archive produced here.
const MimeType = "application/gzip"

// Manifest renders one image path per line, in the given order.
func Manifest(paths []string) []byte {
	var buf bytes.Buffer
	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteResult writes a result archive holding exactly two entries: the
// primary output file (under its base name) and the image manifest.
func WriteResult(w io.Writer, primary string, images []string) error {
	if filepath.Base(primary) == ManifestName {
		return fmt.Errorf("primary output must not be named %s", ManifestName)
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	if err := addFile(tw, primary, filepath.Base(primary)); err != nil {
		return err
	}
	if err := addBytes(tw, ManifestName, Manifest(images)); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return nil
}

// CreateResult writes a result archive to a new file at dest.
func CreateResult(dest, primary string, images []string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	if err := WriteResult(f, primary, images); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to fsync archive: %w", err)
	}
	return nil
}

// WriteDir archives every regular file under root, with paths relative to
// root. Symbolic links and special files are skipped.
func WriteDir(ctx context.Context, w io.Writer, root string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		switch {
		case d.IsDir():
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name + "/",
				Mode:     0o755,
				ModTime:  time.Now(),
			})
		case d.Type().IsRegular():
			return addFile(tw, path, name)
		default:
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return nil
}

// Member is a file stored in an archive under Name.
type Member struct {
	Name string
	Path string
}

// WriteFiles archives the members in the given order. Names are stored as
// slash-separated paths without a leading slash.
func WriteFiles(ctx context.Context, w io.Writer, members []Member) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(m.Name)), "/")
		if name == "" {
			return fmt.Errorf("invalid archive member name %q", m.Name)
		}
		if err := addFile(tw, m.Path, name); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Entry is a regular file read back from an archive.
type Entry struct {
	Name string
	Data []byte
}

// ReadAll returns the regular-file entries of a gzip-compressed tar stream in
// archive order.
func ReadAll(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar stream: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		entries = append(entries, Entry{Name: hdr.Name, Data: data})
	}
}

// ReadManifest returns the image paths listed in a result archive file.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ReadAll(f)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == ManifestName {
			text := strings.TrimRight(string(e.Data), "\n")
			if text == "" {
				return []string{}, nil
			}
			return strings.Split(text, "\n"), nil
		}
	}
	return nil, fmt.Errorf("archive %s has no %s", path, ManifestName)
}
