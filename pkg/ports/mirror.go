package ports

import "context"

// ArchiveMirror replicates result archives to external storage.
type ArchiveMirror interface {
	// Put uploads the file at path under key and returns its location.
	Put(ctx context.Context, key, path, contentType string) (string, error)
}
