// Package loam stores record documents as plain JSON files through the Loam
// document repository, for deployments that want records on disk next to
// their data directories.
package loam
