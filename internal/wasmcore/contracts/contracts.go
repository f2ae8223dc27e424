// Package contracts declares the Go interfaces for every external collaborator
// the core consumes (spec §6): the artifact store, the metadata store, the
// HTTP and database executors, and the structured-log sink. These are the
// "deliberately out of scope" collaborators named in spec §1 — the core
// depends only on these interfaces, never on a concrete backend.
package contracts

import (
	"context"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// ArtifactStore is the byte-fidelity artifact store contract (spec §6).
// Paths for modules follow "modules/{module_id}".
type ArtifactStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// MetadataStore persists Module Records, Permission sets, and Execution Logs
// (spec §6's "Metadata store contract").
type MetadataStore interface {
	SaveModule(ctx context.Context, rec *wasmtypes.ModuleRecord) error
	GetModule(ctx context.Context, moduleID string) (*wasmtypes.ModuleRecord, error)
	GetModuleByName(ctx context.Context, name string, version int) (*wasmtypes.ModuleRecord, error)
	ListModules(ctx context.Context, offset, limit int) ([]*wasmtypes.ModuleRecord, error)
	ListVersions(ctx context.Context, name string) ([]*wasmtypes.ModuleRecord, error)
	DeleteModule(ctx context.Context, moduleID string) error

	ReplacePermissions(ctx context.Context, moduleID string, perms []wasmtypes.Permission) error

	AppendExecutionLog(ctx context.Context, log *wasmtypes.ExecutionLog) error
	GetExecutionLogsByExecutionID(ctx context.Context, executionID string) ([]*wasmtypes.ExecutionLog, error)
	GetExecutionLogsByModuleID(ctx context.Context, moduleID string) ([]*wasmtypes.ExecutionLog, error)
}

// HTTPRequest is the request shape consumed by the HTTP executor contract.
type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// HTTPResponse is the response shape returned by the HTTP executor contract.
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// HTTPExecutor is consumed by C5's http_request capability (spec §6). It is
// responsible for its own timeouts and retries.
type HTTPExecutor interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// DBQueryRequest is the request shape consumed by the database executor contract.
type DBQueryRequest struct {
	DatabaseRef string        `json:"database_ref"`
	Query       string        `json:"query"`
	Parameters  []interface{} `json:"parameters,omitempty"`
}

// DBQueryResult is the response shape returned by the database executor contract.
type DBQueryResult struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int64           `json:"row_count"`
}

// DatabaseExecutor is consumed by C5's db_query capability (spec §6).
type DatabaseExecutor interface {
	Query(ctx context.Context, req DBQueryRequest) (*DBQueryResult, error)
}

// The structured-log sink contract of spec §6 (host-call traces, permission
// denials, hash-verification failures, execution-completion summaries) is
// served directly by internal/wasmcore/wasmlog.Logger throughout this core;
// it is not re-abstracted behind its own interface since every caller in
// this module already depends on the concrete zap-backed logger.
