// Package hostcap implements C5, the Host Capability Surface: the five host
// functions a guest module may call (log, get_context, set_context,
// http_request, db_query); http_request and db_query are permission-checked
// before any effect, the other three need no permission (spec §4.5).
//
// Grounded on pkg/serverless/hostfunctions' per-concern file split
// (logging.go, context.go, http.go, database.go), trimmed to exactly the
// capabilities the spec names; pubsub.go, storage.go, secrets.go, and
// cache.go have no counterpart here since SPEC_FULL.md's Host Capability
// Surface component table does not assign them a home (see DESIGN.md).
package hostcap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/permission"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// ctxMissing is the sentinel JSON value get_context returns for an absent key.
const ctxMissing = "null"

// Surface binds the host capability implementations to one invocation's
// permission set, invocation context, and execution identifiers. A new
// Surface is constructed per invocation by the Execution Engine (C6).
type Surface struct {
	moduleID    string
	executionID string
	perms       []wasmtypes.Permission

	http contracts.HTTPExecutor
	db   contracts.DatabaseExecutor

	logger *wasmlog.Logger

	mu   sync.Mutex
	ictx *wasmtypes.InvocationContext
}

// New builds a Surface for one invocation.
func New(moduleID, executionID string, perms []wasmtypes.Permission, http contracts.HTTPExecutor, db contracts.DatabaseExecutor, logger *wasmlog.Logger, ictx *wasmtypes.InvocationContext) *Surface {
	if logger == nil {
		logger = wasmlog.Nop()
	}
	return &Surface{
		moduleID:    moduleID,
		executionID: executionID,
		perms:       perms,
		http:        http,
		db:          db,
		logger:      logger,
		ictx:        ictx,
	}
}

// Context returns the invocation context as it stands after all set_context
// calls made so far; the Step Executor Adapter reads this once the
// invocation completes successfully (§4.7's "visible only after successful
// invocation completion").
func (s *Surface) Context() *wasmtypes.InvocationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ictx
}

// Log implements the log(level, message) capability. No permission required.
func (s *Surface) Log(level int32, message string) {
	fields := []zap.Field{
		zap.String("module_id", s.moduleID),
		zap.String("execution_id", s.executionID),
	}
	switch level {
	case 0:
		s.logger.ComponentDebug(wasmlog.ComponentHostCap, message, fields...)
	case 2:
		s.logger.ComponentWarn(wasmlog.ComponentHostCap, message, fields...)
	case 3:
		s.logger.ComponentError(wasmlog.ComponentHostCap, message, fields...)
	default:
		s.logger.ComponentInfo(wasmlog.ComponentHostCap, message, fields...)
	}
}

// GetContext implements get_context(key). No permission required.
func (s *Surface) GetContext(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ictx == nil || s.ictx.Variables == nil {
		return ctxMissing, nil
	}
	value, ok := s.ictx.Variables[key]
	if !ok {
		return ctxMissing, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", wasmtypes.NewInvalidOutput(fmt.Sprintf("get_context: failed to encode %q: %v", key, err))
	}
	return string(encoded), nil
}

// SetContext implements set_context(key, value_json). No permission required.
func (s *Surface) SetContext(key, valueJSON string) error {
	var value interface{}
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return wasmtypes.NewInvalidOutput(fmt.Sprintf("set_context: invalid JSON for %q", key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ictx == nil {
		s.ictx = &wasmtypes.InvocationContext{}
	}
	if s.ictx.Variables == nil {
		s.ictx.Variables = make(map[string]interface{})
	}
	s.ictx.Variables[key] = value
	return nil
}

// httpCapability returns the permission capability implied by method, per
// §4.5: read verbs map to http:read, everything else to http:write.
func httpCapability(method string) wasmtypes.PermissionType {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return wasmtypes.PermHTTPRead
	default:
		return wasmtypes.PermHTTPWrite
	}
}

// dbCapability returns the permission capability implied by the query's
// leading verb, per §4.5: SELECT/SHOW/EXPLAIN map to db:read, else db:write.
func dbCapability(query string) wasmtypes.PermissionType {
	verb := leadingVerb(query)
	switch verb {
	case "SELECT", "SHOW", "EXPLAIN":
		return wasmtypes.PermDBRead
	default:
		return wasmtypes.PermDBWrite
	}
}

func leadingVerb(query string) string {
	trimmed := strings.TrimSpace(query)
	for i, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' {
			return strings.ToUpper(trimmed[:i])
		}
	}
	return strings.ToUpper(trimmed)
}

// HTTPRequest implements http_request(config_json).
func (s *Surface) HTTPRequest(ctx context.Context, configJSON string) (string, error) {
	var cfg struct {
		Method  string            `json:"method"`
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
		Body    []byte            `json:"body"`
	}
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return "", wasmtypes.NewInvalidOutput("http_request: invalid config JSON")
	}
	if cfg.Method == "" {
		cfg.Method = "GET"
	}

	capability := httpCapability(cfg.Method)
	if err := permission.Check(s.perms, string(capability), cfg.URL); err != nil {
		s.logger.SecurityEvent(wasmlog.ComponentHostCap, "permission denied for http_request",
			zap.String("module_id", s.moduleID), zap.String("execution_id", s.executionID),
			zap.String("capability", string(capability)), zap.String("resource", cfg.URL))
		return "", err
	}

	resp, err := s.http.Do(ctx, contracts.HTTPRequest{
		Method:  cfg.Method,
		URL:     cfg.URL,
		Headers: cfg.Headers,
		Body:    cfg.Body,
	})
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return "", wasmtypes.NewInvalidOutput("http_request: failed to encode response")
	}
	return string(encoded), nil
}

// DBQuery implements db_query(config_json).
func (s *Surface) DBQuery(ctx context.Context, configJSON string) (string, error) {
	var cfg struct {
		DatabaseRef string        `json:"database_ref"`
		Query       string        `json:"query"`
		Parameters  []interface{} `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return "", wasmtypes.NewInvalidOutput("db_query: invalid config JSON")
	}

	capability := dbCapability(cfg.Query)
	if err := permission.Check(s.perms, string(capability), cfg.DatabaseRef); err != nil {
		s.logger.SecurityEvent(wasmlog.ComponentHostCap, "permission denied for db_query",
			zap.String("module_id", s.moduleID), zap.String("execution_id", s.executionID),
			zap.String("capability", string(capability)), zap.String("resource", cfg.DatabaseRef))
		return "", err
	}

	result, err := s.db.Query(ctx, contracts.DBQueryRequest{
		DatabaseRef: cfg.DatabaseRef,
		Query:       cfg.Query,
		Parameters:  cfg.Parameters,
	})
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", wasmtypes.NewInvalidOutput("db_query: failed to encode response")
	}
	return string(encoded), nil
}
