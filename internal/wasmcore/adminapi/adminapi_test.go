package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/orama-network/wasmcore/internal/wasmcore/artifactstore"
	"github.com/orama-network/wasmcore/internal/wasmcore/cache"
	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/engine"
	"github.com/orama-network/wasmcore/internal/wasmcore/loader"
	"github.com/orama-network/wasmcore/internal/wasmcore/metadatastore"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// nopWASM is the minimal valid WASM module (magic + version, no sections),
// sufficient for exercising the registration compile-check path.
var nopWASM = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

type noopHTTP struct{}

func (noopHTTP) Do(ctx context.Context, req contracts.HTTPRequest) (*contracts.HTTPResponse, error) {
	return &contracts.HTTPResponse{Status: 200}, nil
}

type noopDB struct{}

func (noopDB) Query(ctx context.Context, req contracts.DBQueryRequest) (*contracts.DBQueryResult, error) {
	return &contracts.DBQueryResult{}, nil
}

func newTestServer(t *testing.T) (chi_router, *metadatastore.Store, *artifactstore.FilesystemStore) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	artifacts, err := artifactstore.New(filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("failed to build artifact store: %v", err)
	}
	metadata, err := metadatastore.Open(filepath.Join(dir, "meta.db"))
	if err != nil {
		t.Fatalf("failed to open metadata store: %v", err)
	}
	t.Cleanup(func() { metadata.Close() })

	cfg := wasmconfig.DefaultConfig()
	cfg.EnableSystemInterface = false

	e, err := engine.New(ctx, cfg, noopHTTP{}, noopDB{}, nil)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })

	modCache := cache.New(10, nil)
	ld := loader.New(e.Runtime(), modCache, artifacts, metadata, cfg, nil)

	_, router := New(ld, metadata, artifacts, cfg, nil)
	return router, metadata, artifacts
}

// chi_router narrows the return type down to http.Handler so this test file
// does not need its own import of chi just to name the type.
type chi_router interface {
	http.Handler
}

func TestRegisterAndGetModule(t *testing.T) {
	router, _, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"name":    "demo",
		"version": 1,
		"author":  "alice",
		"bytes":   nopWASM,
	})
	req := httptest.NewRequest(http.MethodPost, "/modules/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created wasmtypes.ModuleRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" || created.SHA256Hex == "" {
		t.Fatalf("expected populated id/hash, got %+v", created)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/modules/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
}

func TestRegisterInvalidModuleRejected(t *testing.T) {
	router, _, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"name":  "broken",
		"bytes": []byte{0x00, 0x01, 0x02},
	})
	req := httptest.NewRequest(http.MethodPost, "/modules/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for uncompilable bytes, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetModuleNotFound(t *testing.T) {
	router, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/modules/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReplacePermissionsThenDelete(t *testing.T) {
	router, metadata, _ := newTestServer(t)

	regBody, _ := json.Marshal(map[string]any{"name": "demo2", "bytes": nopWASM})
	regReq := httptest.NewRequest(http.MethodPost, "/modules/", bytes.NewReader(regBody))
	regRec := httptest.NewRecorder()
	router.ServeHTTP(regRec, regReq)
	var created wasmtypes.ModuleRecord
	json.Unmarshal(regRec.Body.Bytes(), &created)

	permBody, _ := json.Marshal(map[string]any{
		"permissions": []wasmtypes.Permission{{Type: wasmtypes.PermHTTPRead, ResourcePattern: "https://*"}},
	})
	permReq := httptest.NewRequest(http.MethodPut, "/modules/"+created.ID+"/permissions", bytes.NewReader(permBody))
	permRec := httptest.NewRecorder()
	router.ServeHTTP(permRec, permReq)
	if permRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", permRec.Code, permRec.Body.String())
	}

	updated, err := metadata.GetModule(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Permissions) != 1 || updated.Permissions[0].Type != wasmtypes.PermHTTPRead {
		t.Fatalf("expected replaced permission set, got %+v", updated.Permissions)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/modules/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", delRec.Code, delRec.Body.String())
	}

	if _, err := metadata.GetModule(context.Background(), created.ID); err == nil {
		t.Fatal("expected the module to be gone after delete")
	}
}
