package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

var sqlOpen = sql.Open

// Open opens a database for the dialect and verifies the connection.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sqlOpen(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		// A single writer avoids SQLITE_BUSY under concurrent workers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return db, nil
}

// Collection implements ports.Collection on a single SQL table.
// The document is stored as JSON; id, creation time and the active flag are
// columns so listing and counting run on the database.
type Collection struct {
	db     *sql.DB
	d      Dialect
	table  string
	logger *slog.Logger
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollection prepares the table backing the named collection.
func NewCollection(ctx context.Context, db *sql.DB, d Dialect, name string, opts ...Option) (*Collection, error) {
	if !identPattern.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name: %q", name)
	}
	c := &Collection{
		db:     db,
		d:      d,
		table:  name,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.migrate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) migrate(ctx context.Context) error {
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	created_at BIGINT NOT NULL,
	active BOOLEAN NOT NULL,
	document %s NOT NULL
)`, c.table, c.d.documentType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_active_created ON %s (active, created_at DESC, id)`, c.table, c.table),
	}
	for _, stmt := range ddl {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", c.table, err)
		}
	}
	return nil
}

func (c *Collection) newQuery() *query {
	return &query{d: c.d}
}

// Insert persists a new document.
func (c *Collection) Insert(ctx context.Context, doc ports.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	q := c.newQuery().write("INSERT INTO " + c.table + " (id, created_at, active, document) VALUES (")
	q.bind(doc.ID).write(", ").bind(doc.CreatedAt.UnixMicro()).write(", ").bind(doc.Active).write(", ").bind(string(data)).write(")")
	if _, err := c.db.ExecContext(ctx, q.String(), q.args...); err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	return nil
}

// Get retrieves a document.
func (c *Collection) Get(ctx context.Context, id string, includeInactive bool) (ports.Document, error) {
	q := c.newQuery().write("SELECT id, active, " + c.d.documentRead + " FROM " + c.table + " WHERE id = ").bind(id)
	doc, err := scanDocument(c.db.QueryRowContext(ctx, q.String(), q.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return ports.Document{}, fmt.Errorf("select from %s: %w", c.table, err)
	}
	if !doc.Active && !includeInactive {
		return ports.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

// Find returns a page of active documents and the COUNT of all matches.
func (c *Collection) Find(ctx context.Context, q ports.Query) ([]ports.Document, int, error) {
	count := c.newQuery().write("SELECT COUNT(*) FROM " + c.table)
	if err := count.where(q.Filter); err != nil {
		return nil, 0, err
	}
	var total int
	if err := c.db.QueryRowContext(ctx, count.String(), count.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	if q.Limit == 0 || q.Offset >= total {
		return []ports.Document{}, total, nil
	}

	sel := c.newQuery().write("SELECT id, active, " + c.d.documentRead + " FROM " + c.table)
	if err := sel.where(q.Filter); err != nil {
		return nil, 0, err
	}
	sel.write(" ORDER BY created_at DESC, id ASC")
	sel.window(q.Offset, q.Limit)

	rows, err := c.db.QueryContext(ctx, sel.String(), sel.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select from %s: %w", c.table, err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]ports.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", c.table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return docs, total, nil
}

// Replace overwrites an active document.
func (c *Collection) Replace(ctx context.Context, doc ports.Document) (bool, error) {
	doc.Active = true
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document: %w", err)
	}
	q := c.newQuery().write("UPDATE " + c.table + " SET document = ").bind(string(data))
	q.write(", created_at = ").bind(doc.CreatedAt.UnixMicro())
	q.write(" WHERE id = ").bind(doc.ID).write(" AND active = TRUE")
	return c.execAffected(ctx, q)
}

// Deactivate marks an active document inactive.
func (c *Collection) Deactivate(ctx context.Context, id string) (bool, error) {
	q := c.newQuery().write("UPDATE " + c.table + " SET active = FALSE WHERE id = ").bind(id).write(" AND active = TRUE")
	return c.execAffected(ctx, q)
}

func (c *Collection) execAffected(ctx context.Context, q *query) (bool, error) {
	res, err := c.db.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", c.table, err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (ports.Document, error) {
	var (
		id     string
		active bool
		raw    string
	)
	if err := row.Scan(&id, &active, &raw); err != nil {
		return ports.Document{}, err
	}
	var doc ports.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ports.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc.ID = id
	doc.Active = active
	return doc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
