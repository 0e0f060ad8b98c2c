package sqldb

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Name is the configuration name ("sqlite", "postgres").
	Name string
	// Driver is the database/sql driver name.
	Driver string

	documentType string
	documentRead string
	placeholder  func(n int) string
	jsonText     func(path []string) string
	unbounded    string
}

// SQLite is the embedded dialect served by modernc.org/sqlite.
var SQLite = Dialect{
	Name:         "sqlite",
	Driver:       "sqlite",
	documentType: "TEXT",
	documentRead: "document",
	placeholder:  func(int) string { return "?" },
	// json_extract yields 1/0 for JSON booleans; spell them as the other
	// backends do.
	jsonText: func(path []string) string {
		p := "'$." + strings.Join(path, ".") + "'"
		return fmt.Sprintf("(CASE json_type(document, %[1]s)"+
			" WHEN 'true' THEN 'true' WHEN 'false' THEN 'false'"+
			" ELSE CAST(json_extract(document, %[1]s) AS TEXT) END)", p)
	},
	unbounded: "LIMIT -1",
}

// Postgres is the server dialect served by pgx.
var Postgres = Dialect{
	Name:         "postgres",
	Driver:       "pgx",
	documentType: "JSONB",
	documentRead: "document::text",
	placeholder:  func(n int) string { return fmt.Sprintf("$%d", n) },
	jsonText: func(path []string) string {
		return fmt.Sprintf("(document #>> '{%s}')", strings.Join(path, ","))
	},
	unbounded: "",
}

// DialectFor returns the dialect with the given configuration name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name, "postgresql", Postgres.Driver:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect: %q", name)
	}
}

var (
	identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	pathPattern  = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)
)

// query accumulates SQL text and positional arguments.
type query struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (q *query) write(s string) *query {
	q.sb.WriteString(s)
	return q
}

func (q *query) bind(v any) *query {
	q.args = append(q.args, v)
	q.sb.WriteString(q.d.placeholder(len(q.args)))
	return q
}

func (q *query) String() string { return q.sb.String() }

// where appends the active/filter predicate.
func (q *query) where(filter map[string]string) error {
	q.write(" WHERE active = TRUE")
	for _, path := range sortedKeys(filter) {
		if !pathPattern.MatchString(path) {
			return fmt.Errorf("invalid filter path: %q", path)
		}
		q.write(" AND ").write(q.d.jsonText(strings.Split(path, "."))).write(" = ").bind(filter[path])
	}
	return nil
}

func (q *query) window(offset, limit int) {
	if limit >= 0 {
		q.write(" LIMIT ").bind(limit)
	} else if q.d.unbounded != "" {
		q.write(" " + q.d.unbounded)
	}
	if offset > 0 {
		q.write(" OFFSET ").bind(offset)
	}
}
