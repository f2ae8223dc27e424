package dbexec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
)

func TestQueryReturnsColumnsAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	e, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if _, err := e.db.ExecContext(ctx, `CREATE TABLE widgets (id INTEGER, name TEXT)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := e.db.ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES (1, 'sprocket'), (2, 'cog')`); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	result, err := e.Query(ctx, contracts.DBQueryRequest{Query: `SELECT id, name FROM widgets ORDER BY id`})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.RowCount != 2 || len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", result.RowCount)
	}
	if result.Columns[0] != "id" || result.Columns[1] != "name" {
		t.Fatalf("unexpected columns: %+v", result.Columns)
	}
	if result.Rows[0][1] != "sprocket" {
		t.Fatalf("expected name column to decode as string, got %T %v", result.Rows[0][1], result.Rows[0][1])
	}
}

func TestQueryWithParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	e, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if _, err := e.db.ExecContext(ctx, `CREATE TABLE widgets (id INTEGER, name TEXT)`); err != nil {
		t.Fatal(err)
	}
	if _, err := e.db.ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES (1, 'sprocket'), (2, 'cog')`); err != nil {
		t.Fatal(err)
	}

	result, err := e.Query(ctx, contracts.DBQueryRequest{
		Query:      `SELECT name FROM widgets WHERE id = ?`,
		Parameters: []interface{}{2},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.RowCount != 1 || result.Rows[0][0] != "cog" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestQueryInvalidSQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	e, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer e.Close()

	if _, err := e.Query(context.Background(), contracts.DBQueryRequest{Query: `SELECT * FROM nope`}); err == nil {
		t.Fatal("expected error for querying a nonexistent table")
	}
}
