package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL stores values in a two-column key/value table. Queries use PostgreSQL placeholders
// and upsert syntax; register a driver such as lib/pq or pgx/stdlib before opening db.
type SQL struct {
	db        *sql.DB
	table     string
	getQuery  string
	setQuery  string
	ddlSchema string
}

// NewSQL creates a SQL backend over table.
func NewSQL(db *sql.DB, table string) (*SQL, error) {
	if db == nil {
		return nil, errors.New("sql backend requires db")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQL{
		db:       db,
		table:    table,
		getQuery: "SELECT value FROM " + table + " WHERE key = $1",
		setQuery: "INSERT INTO " + table + " (key, value) VALUES ($1, $2) " +
			"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		ddlSchema: "CREATE TABLE IF NOT EXISTS " + table +
			" (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
	}, nil
}

// EnsureSchema creates the table when it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.ddlSchema)
	return err
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.setQuery, key, value)
	return err
}

// SetMany upserts all values inside one transaction.
func (s *SQL) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, s.setQuery, k, v); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Remove deletes keys with a single statement.
func (s *SQL) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.removeQuery(len(keys)), stringArgs(keys)...)
	return err
}

func (s *SQL) removeQuery(n int) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(s.table)
	b.WriteString(" WHERE key IN (")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i))
	}
	b.WriteByte(')')
	return b.String()
}

func stringArgs(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
