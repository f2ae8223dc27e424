// Package wasmtypes holds the data model shared across the WASM execution core:
// module records, permissions, execution logs, step descriptors and invocation
// contexts. Nothing here talks to storage or the runtime directly.
package wasmtypes

import "time"

// PermissionType is one of the six capability grants a module may hold.
type PermissionType string

const (
	PermHTTPRead  PermissionType = "http:read"
	PermHTTPWrite PermissionType = "http:write"
	PermDBRead    PermissionType = "db:read"
	PermDBWrite   PermissionType = "db:write"
	PermFileRead  PermissionType = "file:read"
	PermFileWrite PermissionType = "file:write"
)

// Permission is a capability grant attached to a module. ResourcePattern is a
// glob over the resource string; an empty pattern matches any resource.
type Permission struct {
	Type            PermissionType `json:"permission_type"`
	ResourcePattern string         `json:"resource_pattern,omitempty"`
}

// ModuleStatus reflects the lifecycle state of a Module Record.
type ModuleStatus string

const (
	ModuleStatusActive   ModuleStatus = "active"
	ModuleStatusDeleted  ModuleStatus = "deleted"
)

// ModuleRecord is the persistent descriptor of a registered module.
type ModuleRecord struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Version         int          `json:"version"`
	ArtifactPath    string       `json:"artifact_path"`
	SHA256Hex       string       `json:"sha256_hex"`
	Author          string       `json:"author"`
	PublicKeyID     string       `json:"public_key_id,omitempty"`
	Signature       []byte       `json:"signature,omitempty"`
	Permissions     []Permission `json:"permissions"`
	Status          ModuleStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}

// StepDescriptor is the portion of a pipeline step the core consumes.
type StepDescriptor struct {
	ModuleID         string `json:"module_id"`
	EntryFunction    string `json:"entry_function"`
	FuelLimit        uint64 `json:"fuel_limit"`
	TimeoutSeconds   uint64 `json:"timeout_seconds"`
	MemoryLimitMiB   uint64 `json:"memory_limit_mib"`
}

// Validate enforces that all limits are positive, as required by spec §3.
func (s *StepDescriptor) Validate() error {
	if s.ModuleID == "" {
		return &ExecutionError{Kind: ErrorKindInvalidOutput, Detail: "step descriptor missing module_id"}
	}
	if s.FuelLimit == 0 {
		return &ExecutionError{Kind: ErrorKindInvalidOutput, Detail: "fuel_limit must be positive"}
	}
	if s.TimeoutSeconds == 0 {
		return &ExecutionError{Kind: ErrorKindInvalidOutput, Detail: "timeout_seconds must be positive"}
	}
	if s.MemoryLimitMiB == 0 {
		return &ExecutionError{Kind: ErrorKindInvalidOutput, Detail: "memory_limit_mib must be positive"}
	}
	return nil
}

// ApplyDefaults fills zero-valued limits from the supplied defaults. Used when
// a step descriptor arrives from the pipeline without explicit overrides.
func (s *StepDescriptor) ApplyDefaults(fuel, timeoutSeconds, memoryMiB uint64) {
	if s.FuelLimit == 0 {
		s.FuelLimit = fuel
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = timeoutSeconds
	}
	if s.MemoryLimitMiB == 0 {
		s.MemoryLimitMiB = memoryMiB
	}
}

// InvocationContext is the JSON object passed to a guest as input and updated
// from its output. Its shape is opaque to the core beyond this envelope.
type InvocationContext struct {
	Variables map[string]any            `json:"variables"`
	Steps     map[string]StepOutput     `json:"steps"`
	Webhook   map[string]any            `json:"webhook,omitempty"`
}

// StepOutput records one step's result in the shared context.
type StepOutput struct {
	Status      string    `json:"status"`
	Output      any       `json:"output"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// RoutingNext holds the guest-supplied routing.next fragment: either a single
// step id, a list of step ids, or absent/null for terminal success.
type RoutingNext struct {
	Single *string
	Multi  []string
}

// IsEmpty reports whether no routing was supplied (terminal success).
func (r *RoutingNext) IsEmpty() bool {
	return r == nil || (r.Single == nil && r.Multi == nil)
}

// ExecutionLog is one record per invocation of a module (spec I4/P9).
type ExecutionLog struct {
	ExecutionID   string       `json:"execution_id"`
	ModuleID      string       `json:"module_id"`
	FuelConsumed  uint64       `json:"fuel_consumed"`
	PeakMemory    uint64       `json:"peak_memory_bytes"`
	Duration      time.Duration `json:"duration"`
	ErrorKind     ErrorKind    `json:"error_kind,omitempty"`
	ErrorDetail   string       `json:"error_detail,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Succeeded reports whether the logged invocation completed without error.
func (e *ExecutionLog) Succeeded() bool {
	return e.ErrorKind == ""
}
