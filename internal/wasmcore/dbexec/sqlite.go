// Package dbexec provides a SQLite-backed implementation of the
// DatabaseExecutor contract (spec §4.5's "db_query" capability), giving
// guest modules query access to an application database distinct from the
// core's own metadata store.
//
// Grounded on pkg/serverless/hostfunctions/database.go's DBQuery/DBExecute
// split; this module exposes a single Query method, since the spec names a
// single "db_query" capability. Statements are passed to the driver as given:
// a write statement that passed the db:write permission check in hostcap is
// executed through Query as well.
package dbexec

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Executor runs guest-supplied SQL statements against a SQLite database on
// behalf of guest modules; it does not restrict them to reads.
type Executor struct {
	db *sql.DB
}

// Open opens the SQLite database at path for querying.
func Open(path string) (*Executor, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &Executor{db: db}, nil
}

// Close releases the underlying database handle.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Query executes req.Query and returns its rows and columns. DatabaseRef is
// currently unused (this executor serves a single configured database); it
// is carried in the request so a future multi-database router can dispatch
// on it without changing the contract.
func (e *Executor) Query(ctx context.Context, req contracts.DBQueryRequest) (*contracts.DBQueryResult, error) {
	rows, err := e.db.QueryContext(ctx, req.Query, req.Parameters...)
	if err != nil {
		return nil, wasmtypes.NewHostFunctionError("db_query: query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, wasmtypes.NewHostFunctionError("db_query: failed to read columns", err)
	}

	result := &contracts.DBQueryResult{Columns: columns}
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wasmtypes.NewHostFunctionError("db_query: scan failed", err)
		}
		result.Rows = append(result.Rows, normalizeRow(raw))
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, wasmtypes.NewHostFunctionError("db_query: row iteration failed", err)
	}
	return result, nil
}

// normalizeRow converts driver-returned []byte values (the go-sqlite3
// driver's representation for TEXT columns under certain scan configs) into
// strings so JSON-marshalled guest output is human-readable rather than
// base64.
func normalizeRow(raw []interface{}) []interface{} {
	out := make([]interface{}, len(raw))
	for i, v := range raw {
		if b, ok := v.([]byte); ok {
			out[i] = string(b)
			continue
		}
		out[i] = v
	}
	return out
}
