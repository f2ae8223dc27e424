// Package metadatastore provides a database/sql + go-sqlite3 backed default
// implementation of the metadata store contract (spec §6): Module Records,
// per-module Permission sets, and Execution Logs.
//
// Grounded on pkg/serverless/registry/function_store.go's row-scanning idiom
// (explicit SQL, row structs, sql.NullString for optional columns), adapted
// from the teacher's rqlite.Client abstraction onto a plain database/sql
// pool since this module does not carry the teacher's distributed-rqlite
// subsystem (see DESIGN.md).
package metadatastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	artifact_path TEXT NOT NULL,
	sha256_hex TEXT NOT NULL,
	author TEXT NOT NULL,
	public_key_id TEXT,
	signature BLOB,
	permissions_json TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_modules_name ON modules(name, version);

CREATE TABLE IF NOT EXISTS execution_logs (
	execution_id TEXT PRIMARY KEY,
	module_id TEXT NOT NULL,
	fuel_consumed INTEGER NOT NULL,
	peak_memory_bytes INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	error_kind TEXT,
	error_detail TEXT,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_module ON execution_logs(module_id);
`

// Store is the SQLite-backed MetadataStore implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("metadatastore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadatastore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type moduleRow struct {
	ID              string
	Name            string
	Version         int
	ArtifactPath    string
	SHA256Hex       string
	Author          string
	PublicKeyID     sql.NullString
	Signature       []byte
	PermissionsJSON string
	Status          string
	CreatedAt       time.Time
}

func (r *moduleRow) toRecord() (*wasmtypes.ModuleRecord, error) {
	var perms []wasmtypes.Permission
	if err := json.Unmarshal([]byte(r.PermissionsJSON), &perms); err != nil {
		return nil, fmt.Errorf("metadatastore: decode permissions: %w", err)
	}
	return &wasmtypes.ModuleRecord{
		ID:           r.ID,
		Name:         r.Name,
		Version:      r.Version,
		ArtifactPath: r.ArtifactPath,
		SHA256Hex:    r.SHA256Hex,
		Author:       r.Author,
		PublicKeyID:  r.PublicKeyID.String,
		Signature:    r.Signature,
		Permissions:  perms,
		Status:       wasmtypes.ModuleStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}, nil
}

const moduleColumns = `id, name, version, artifact_path, sha256_hex, author, public_key_id, signature, permissions_json, status, created_at`

func scanModuleRow(scanner interface{ Scan(...any) error }) (*wasmtypes.ModuleRecord, error) {
	var r moduleRow
	if err := scanner.Scan(&r.ID, &r.Name, &r.Version, &r.ArtifactPath, &r.SHA256Hex, &r.Author,
		&r.PublicKeyID, &r.Signature, &r.PermissionsJSON, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return r.toRecord()
}

// SaveModule inserts a new Module Record (spec: "created at registration;
// immutable bytes thereafter — update = new record").
func (s *Store) SaveModule(ctx context.Context, rec *wasmtypes.ModuleRecord) error {
	permsJSON, err := json.Marshal(rec.Permissions)
	if err != nil {
		return err
	}
	if rec.Status == "" {
		rec.Status = wasmtypes.ModuleStatusActive
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO modules (id, name, version, artifact_path, sha256_hex, author, public_key_id, signature, permissions_json, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Version, rec.ArtifactPath, rec.SHA256Hex, rec.Author,
		nullable(rec.PublicKeyID), rec.Signature, string(permsJSON), string(rec.Status), rec.CreatedAt)
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetModule fetches a Module Record by id.
func (s *Store) GetModule(ctx context.Context, moduleID string) (*wasmtypes.ModuleRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = ? AND status != ?`,
		moduleID, string(wasmtypes.ModuleStatusDeleted))
	rec, err := scanModuleRow(row)
	if err == sql.ErrNoRows {
		return nil, wasmtypes.ErrModuleNotFound
	}
	return rec, err
}

// GetModuleByName fetches a Module Record by (name, version); version 0
// means "latest", mirroring the teacher's Get semantics.
func (s *Store) GetModuleByName(ctx context.Context, name string, version int) (*wasmtypes.ModuleRecord, error) {
	var row *sql.Row
	if version == 0 {
		row = s.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE name = ? AND status != ? ORDER BY version DESC LIMIT 1`,
			name, string(wasmtypes.ModuleStatusDeleted))
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE name = ? AND version = ?`, name, version)
	}
	rec, err := scanModuleRow(row)
	if err == sql.ErrNoRows {
		return nil, wasmtypes.ErrModuleNotFound
	}
	return rec, err
}

// ListModules returns a page of active Module Records ordered by name.
func (s *Store) ListModules(ctx context.Context, offset, limit int) ([]*wasmtypes.ModuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE status = ? ORDER BY name, version DESC LIMIT ? OFFSET ?`,
		string(wasmtypes.ModuleStatusActive), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*wasmtypes.ModuleRecord
	for rows.Next() {
		rec, err := scanModuleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListVersions returns every version of a named module, newest first.
func (s *Store) ListVersions(ctx context.Context, name string) ([]*wasmtypes.ModuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE name = ? ORDER BY version DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*wasmtypes.ModuleRecord
	for rows.Next() {
		rec, err := scanModuleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteModule soft-deletes a Module Record; execution logs referencing it
// are left in place for audit (the spec's "cascades ... via the metadata
// store's referential rules" is satisfied by a foreign-key-free soft delete:
// a deleted module's logs remain queryable by module_id).
func (s *Store) DeleteModule(ctx context.Context, moduleID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE modules SET status = ? WHERE id = ?`, string(wasmtypes.ModuleStatusDeleted), moduleID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return wasmtypes.ErrModuleNotFound
	}
	return nil
}

// ReplacePermissions transactionally overwrites a module's permission set
// (spec §3 "created/replaced as a set atomically per module").
func (s *Store) ReplacePermissions(ctx context.Context, moduleID string, perms []wasmtypes.Permission) error {
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE modules SET permissions_json = ? WHERE id = ?`, string(permsJSON), moduleID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return wasmtypes.ErrModuleNotFound
	}
	return tx.Commit()
}

// AppendExecutionLog writes exactly one Execution Log record (I4).
func (s *Store) AppendExecutionLog(ctx context.Context, log *wasmtypes.ExecutionLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (execution_id, module_id, fuel_consumed, peak_memory_bytes, duration_ns, error_kind, error_detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ExecutionID, log.ModuleID, log.FuelConsumed, log.PeakMemory, int64(log.Duration),
		nullable(string(log.ErrorKind)), nullable(log.ErrorDetail), log.Timestamp)
	return err
}

func scanLog(scanner interface{ Scan(...any) error }) (*wasmtypes.ExecutionLog, error) {
	var (
		l                  wasmtypes.ExecutionLog
		durationNs         int64
		errKind, errDetail sql.NullString
	)
	if err := scanner.Scan(&l.ExecutionID, &l.ModuleID, &l.FuelConsumed, &l.PeakMemory, &durationNs, &errKind, &errDetail, &l.Timestamp); err != nil {
		return nil, err
	}
	l.Duration = time.Duration(durationNs)
	l.ErrorKind = wasmtypes.ErrorKind(errKind.String)
	l.ErrorDetail = errDetail.String
	return &l, nil
}

const logColumns = `execution_id, module_id, fuel_consumed, peak_memory_bytes, duration_ns, error_kind, error_detail, timestamp`

// GetExecutionLogsByExecutionID returns the (at most one, per I4) log for an execution id.
func (s *Store) GetExecutionLogsByExecutionID(ctx context.Context, executionID string) ([]*wasmtypes.ExecutionLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM execution_logs WHERE execution_id = ?`, executionID)
	log, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*wasmtypes.ExecutionLog{log}, nil
}

// GetExecutionLogsByModuleID returns every execution log for a module id.
func (s *Store) GetExecutionLogsByModuleID(ctx context.Context, moduleID string) ([]*wasmtypes.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+logColumns+` FROM execution_logs WHERE module_id = ? ORDER BY timestamp DESC`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*wasmtypes.ExecutionLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, rows.Err()
}
