package metadatastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id, name string, version int) *wasmtypes.ModuleRecord {
	return &wasmtypes.ModuleRecord{
		ID:           id,
		Name:         name,
		Version:      version,
		ArtifactPath: "modules/" + id,
		SHA256Hex:    "deadbeef",
		Author:       "tester",
		Permissions: []wasmtypes.Permission{
			{Type: wasmtypes.PermHTTPRead, ResourcePattern: "https://api.example.com/**"},
		},
	}
}

func TestSaveAndGetModule(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("mod-1", "greeter", 1)
	if err := s.SaveModule(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.GetModule(ctx, "mod-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "greeter" || got.SHA256Hex != "deadbeef" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Permissions) != 1 || got.Permissions[0].Type != wasmtypes.PermHTTPRead {
		t.Fatalf("unexpected permissions: %+v", got.Permissions)
	}
	if got.Status != wasmtypes.ModuleStatusActive {
		t.Fatalf("expected active status, got %s", got.Status)
	}
}

func TestGetModuleNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetModule(context.Background(), "missing"); err != wasmtypes.ErrModuleNotFound {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestListVersionsAndGetByNameLatest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v1 := sampleRecord("mod-1-v1", "greeter", 1)
	v2 := sampleRecord("mod-1-v2", "greeter", 2)
	if err := s.SaveModule(ctx, v1); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveModule(ctx, v2); err != nil {
		t.Fatal(err)
	}

	versions, err := s.ListVersions(ctx, "greeter")
	if err != nil {
		t.Fatalf("list versions failed: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 {
		t.Fatalf("expected newest-first versions, got %+v", versions)
	}

	latest, err := s.GetModuleByName(ctx, "greeter", 0)
	if err != nil {
		t.Fatalf("get by name failed: %v", err)
	}
	if latest.ID != "mod-1-v2" {
		t.Fatalf("expected latest version mod-1-v2, got %s", latest.ID)
	}
}

func TestDeleteModuleIsSoftAndExcludedFromListing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("mod-del", "disposable", 1)
	if err := s.SaveModule(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteModule(ctx, "mod-del"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetModule(ctx, "mod-del"); err != wasmtypes.ErrModuleNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	mods, err := s.ListModules(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, m := range mods {
		if m.ID == "mod-del" {
			t.Fatal("deleted module should not appear in listing")
		}
	}

	if err := s.DeleteModule(ctx, "does-not-exist"); err != wasmtypes.ErrModuleNotFound {
		t.Fatalf("expected ErrModuleNotFound deleting nonexistent module, got %v", err)
	}
}

func TestReplacePermissions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("mod-perm", "perm-holder", 1)
	if err := s.SaveModule(ctx, rec); err != nil {
		t.Fatal(err)
	}

	newPerms := []wasmtypes.Permission{
		{Type: wasmtypes.PermDBRead, ResourcePattern: "orders"},
		{Type: wasmtypes.PermFileWrite, ResourcePattern: "tmp/*"},
	}
	if err := s.ReplacePermissions(ctx, "mod-perm", newPerms); err != nil {
		t.Fatalf("replace permissions failed: %v", err)
	}

	got, err := s.GetModule(ctx, "mod-perm")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Permissions) != 2 {
		t.Fatalf("expected 2 permissions after replace, got %d", len(got.Permissions))
	}
}

func TestExecutionLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	log := &wasmtypes.ExecutionLog{
		ExecutionID:  "exec-1",
		ModuleID:     "mod-1",
		FuelConsumed: 42,
		PeakMemory:   1 << 20,
		Duration:     250 * time.Millisecond,
		ErrorKind:    wasmtypes.ErrorKindFuelExhausted,
		ErrorDetail:  "ran out of fuel",
	}
	if err := s.AppendExecutionLog(ctx, log); err != nil {
		t.Fatalf("append log failed: %v", err)
	}

	byExec, err := s.GetExecutionLogsByExecutionID(ctx, "exec-1")
	if err != nil || len(byExec) != 1 {
		t.Fatalf("unexpected result by execution id: %+v err=%v", byExec, err)
	}
	if byExec[0].ErrorKind != wasmtypes.ErrorKindFuelExhausted {
		t.Fatalf("unexpected error kind: %s", byExec[0].ErrorKind)
	}

	byModule, err := s.GetExecutionLogsByModuleID(ctx, "mod-1")
	if err != nil || len(byModule) != 1 {
		t.Fatalf("unexpected result by module id: %+v err=%v", byModule, err)
	}

	none, err := s.GetExecutionLogsByExecutionID(ctx, "does-not-exist")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty result for unknown execution id, got %+v err=%v", none, err)
	}
}
