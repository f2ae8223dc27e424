// Package adminapi presents the admin API surface of spec §6 over chi:
// register/list/get/replace-permissions/delete module, plus fetching
// execution logs by execution id or module id. Grounded on the teacher's
// chi router construction (pkg/gateway/http_gateway.go) and its per-resource
// handler/writeJSON texture (pkg/gateway/handlers/sqlite/create_handler.go).
package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/integrity"
	"github.com/orama-network/wasmcore/internal/wasmcore/loader"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Handler wires the admin endpoints against the Module Loader (for
// registration's compile check), the Metadata Store, and the Artifact Store.
type Handler struct {
	loader    *loader.Loader
	metadata  contracts.MetadataStore
	artifacts contracts.ArtifactStore
	cfg       *wasmconfig.Config
	logger    *wasmlog.Logger
}

// New builds a Handler and its chi.Router with all admin routes mounted.
func New(ld *loader.Loader, metadata contracts.MetadataStore, artifacts contracts.ArtifactStore, cfg *wasmconfig.Config, logger *wasmlog.Logger) (*Handler, chi.Router) {
	if logger == nil {
		logger = wasmlog.Nop()
	}
	h := &Handler{loader: ld, metadata: metadata, artifacts: artifacts, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/modules", func(r chi.Router) {
		r.Post("/", h.RegisterModule)
		r.Get("/", h.ListModules)
		r.Get("/{id}", h.GetModule)
		r.Get("/{id}/versions", h.ListVersions)
		r.Put("/{id}/permissions", h.ReplacePermissions)
		r.Delete("/{id}", h.DeleteModule)
		r.Get("/{id}/logs", h.GetExecutionLogsByModule)
	})
	r.Get("/executions/{execution_id}/logs", h.GetExecutionLogsByExecution)

	return h, r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAdminError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeExecutionError maps a *wasmtypes.ExecutionError (or the
// wasmtypes.ErrModuleNotFound sentinel) to an HTTP status and writes it;
// anything else is a 500.
func writeExecutionError(w http.ResponseWriter, err error) {
	if errors.Is(err, wasmtypes.ErrModuleNotFound) {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	kind, ok := wasmtypes.KindOf(err)
	if !ok {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch kind {
	case wasmtypes.ErrorKindModuleNotFound:
		writeAdminError(w, http.StatusNotFound, err.Error())
	case wasmtypes.ErrorKindInvalidModule, wasmtypes.ErrorKindInvalidSignature, wasmtypes.ErrorKindInvalidOutput:
		writeAdminError(w, http.StatusBadRequest, err.Error())
	default:
		writeAdminError(w, http.StatusInternalServerError, err.Error())
	}
}

// registerRequest is the multipart-free JSON registration request of spec
// §6; artifact bytes travel base64-encoded in the JSON body for simplicity
// (the admin API's own transport format is not fixed by the spec).
type registerRequest struct {
	Name        string               `json:"name"`
	Version     int                  `json:"version"`
	Author      string               `json:"author"`
	Bytes       []byte               `json:"bytes"`
	Signature   []byte               `json:"signature,omitempty"`
	PublicKeyID string               `json:"public_key_id,omitempty"`
	PublicKey   []byte               `json:"public_key,omitempty"`
	Permissions []wasmtypes.Permission `json:"permissions,omitempty"`
}

// RegisterModule implements spec §6's register-module flow: attempt compile,
// compute hash, verify signature if present, enforce require_signature,
// persist bytes then the record.
func (h *Handler) RegisterModule(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Bytes) == 0 {
		writeAdminError(w, http.StatusBadRequest, "name and bytes are required")
		return
	}

	ctx := r.Context()
	if err := h.loader.ValidateForRegistration(ctx, req.Bytes); err != nil {
		writeExecutionError(w, err)
		return
	}

	if len(req.Signature) > 0 {
		if err := integrity.VerifySignature(req.Bytes, req.Signature, req.PublicKey); err != nil {
			writeExecutionError(w, err)
			return
		}
	} else if h.cfg.RequireSignature {
		writeExecutionError(w, wasmtypes.NewInvalidSignature("module registration requires a signature"))
		return
	}

	id := uuid.New().String()
	path := "modules/" + id
	if err := h.artifacts.Put(ctx, path, req.Bytes); err != nil {
		writeAdminError(w, http.StatusInternalServerError, "failed to store artifact")
		return
	}

	rec := &wasmtypes.ModuleRecord{
		ID:           id,
		Name:         req.Name,
		Version:      req.Version,
		ArtifactPath: path,
		SHA256Hex:    integrity.Hash(req.Bytes),
		Author:       req.Author,
		PublicKeyID:  req.PublicKeyID,
		Signature:    req.Signature,
		Permissions:  req.Permissions,
		Status:       wasmtypes.ModuleStatusActive,
		CreatedAt:    time.Now(),
	}
	if err := h.metadata.SaveModule(ctx, rec); err != nil {
		writeAdminError(w, http.StatusInternalServerError, "failed to save module record")
		return
	}

	h.logger.ComponentInfo(wasmlog.ComponentAdmin, "module registered",
		zap.String("module_id", id), zap.String("name", req.Name), zap.Int("version", req.Version))
	writeJSON(w, http.StatusCreated, rec)
}

// ListModules returns a paged list of active modules.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagingParams(r)
	records, err := h.metadata.ListModules(r.Context(), offset, limit)
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func pagingParams(r *http.Request) (offset, limit int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

// GetModule returns a module record and its permission set.
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.metadata.GetModule(r.Context(), id)
	if err != nil {
		writeExecutionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListVersions enumerates every version registered under the module's name.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.metadata.GetModule(r.Context(), id)
	if err != nil {
		writeExecutionError(w, err)
		return
	}
	versions, err := h.metadata.ListVersions(r.Context(), rec.Name)
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// ReplacePermissions transactionally overwrites a module's permission set
// and invalidates its compile-cache entry so the next load is governed by a
// fresh loader snapshot (already-running invocations keep their own).
func (h *Handler) ReplacePermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Permissions []wasmtypes.Permission `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.metadata.ReplacePermissions(r.Context(), id, req.Permissions); err != nil {
		writeExecutionError(w, err)
		return
	}
	h.loader.Invalidate(r.Context(), id)
	h.logger.ComponentInfo(wasmlog.ComponentAdmin, "permissions replaced", zap.String("module_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteModule removes the module record, its artifact, and invalidates its
// cache entry.
func (h *Handler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.metadata.GetModule(r.Context(), id)
	if err != nil {
		writeExecutionError(w, err)
		return
	}
	if err := h.metadata.DeleteModule(r.Context(), id); err != nil {
		writeExecutionError(w, err)
		return
	}
	if err := h.artifacts.Delete(r.Context(), rec.ArtifactPath); err != nil {
		h.logger.ComponentWarn(wasmlog.ComponentAdmin, "failed to delete artifact after module delete",
			zap.String("module_id", id), zap.Error(err))
	}
	h.loader.Invalidate(r.Context(), id)
	h.logger.ComponentInfo(wasmlog.ComponentAdmin, "module deleted", zap.String("module_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetExecutionLogsByModule fetches execution logs for a module id.
func (h *Handler) GetExecutionLogsByModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logs, err := h.metadata.GetExecutionLogsByModuleID(r.Context(), id)
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetExecutionLogsByExecution fetches the execution log for an execution id.
func (h *Handler) GetExecutionLogsByExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "execution_id")
	logs, err := h.metadata.GetExecutionLogsByExecutionID(r.Context(), id)
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
