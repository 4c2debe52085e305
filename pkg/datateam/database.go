// Package datateam implements the SQL question-answering subgraph
// worker: generate SQL, execute it, retry on failure, analyze the
// result.
package datateam

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// maxResultRows bounds how many rows are fed back to the model.
const maxResultRows = 50

// Database is the query capability the subgraph runs against.
type Database interface {
	// Schema returns the DDL shown to the SQL-writing model.
	Schema(ctx context.Context) (string, error)
	// Query executes a statement and returns the result as prompt-ready
	// text.
	Query(ctx context.Context, query string) (string, error)
}

// SQLite is a Database over a local sqlite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a sqlite database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Schema implements Database by collecting the CREATE statements from
// sqlite_master.
func (s *SQLite) Schema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", err
		}
		ddl = append(ddl, stmt+";")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(ddl, "\n\n"), nil
}

// Query implements Database. Results are rendered as a pipe-separated
// table, truncated to maxResultRows.
func (s *SQLite) Query(ctx context.Context, query string) (string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteByte('\n')

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if count >= maxResultRows {
			fmt.Fprintf(&b, "... (truncated at %d rows)\n", maxResultRows)
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		cells := make([]string, len(cols))
		for i, v := range values {
			cells[i] = formatCell(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if count == 0 {
		b.WriteString("(no rows)\n")
	}
	return b.String(), nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
