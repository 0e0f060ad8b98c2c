package store

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aretw0/scoserv/internal/fsutil"
	"github.com/aretw0/scoserv/pkg/archive"
	"github.com/aretw0/scoserv/pkg/domain"
)

// Accepted upload suffixes and the mime types recorded for them.
var (
	imageTypes = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
	}
	archiveTypes = map[string]string{
		".tar.gz": archive.MimeType,
		".tgz":    archive.MimeType,
		".tar":    "application/x-tar",
	}
)

// detectType returns the mime type registered for the suffix of filename.
func detectType(filename string, types map[string]string) (string, error) {
	lower := strings.ToLower(filename)
	// Longest match wins in case suffixes overlap.
	best := ""
	for suffix := range types {
		if strings.HasSuffix(lower, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, filename)
	}
	return types[best], nil
}

// writeDirArchive streams a tar.gz of root into dest.
func writeDirArchive(ctx context.Context, root, dest string) error {
	if err := writeArchive(dest, func(w io.Writer) error {
		return archive.WriteDir(ctx, w, root)
	}); err != nil {
		return fmt.Errorf("failed to archive %s: %w", filepath.Base(root), err)
	}
	return nil
}

// writeFilesArchive streams a tar.gz of members into dest.
func writeFilesArchive(ctx context.Context, members []archive.Member, dest string) error {
	if err := writeArchive(dest, func(w io.Writer) error {
		return archive.WriteFiles(ctx, w, members)
	}); err != nil {
		return fmt.Errorf("failed to archive images: %w", err)
	}
	return nil
}

func writeArchive(dest string, write func(io.Writer) error) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(write(pw))
	}()
	err := fsutil.WriteAtomic(dest, pr, 0o644)
	_ = pr.CloseWithError(err)
	return err
}
