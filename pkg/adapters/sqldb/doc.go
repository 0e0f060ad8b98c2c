// Package sqldb provides a database/sql document collection for SQLite
// (modernc.org/sqlite, no cgo) and PostgreSQL (pgx).
package sqldb
