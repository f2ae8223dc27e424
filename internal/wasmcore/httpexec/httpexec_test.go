package httpexec

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
)

func TestDoRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("expected header to be forwarded")
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Reply", "ok")
		w.WriteHeader(http.StatusCreated)
		w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	exec := New(5 * time.Second)
	resp, err := exec.Do(context.Background(), contracts.HTTPRequest{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"X-Test": "1"},
		Body:    []byte("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.Status)
	}
	if string(resp.Body) != "echo:hello" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if resp.Headers["X-Reply"] != "ok" {
		t.Fatalf("expected reply header to be present, got %+v", resp.Headers)
	}
}

func TestDoTransportError(t *testing.T) {
	exec := New(200 * time.Millisecond)
	_, err := exec.Do(context.Background(), contracts.HTTPRequest{
		Method: http.MethodGet,
		URL:    "http://127.0.0.1:0",
	})
	if err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestDoInvalidRequest(t *testing.T) {
	exec := New(time.Second)
	_, err := exec.Do(context.Background(), contracts.HTTPRequest{
		Method: "\t",
		URL:    "http://example.com",
	})
	if err == nil {
		t.Fatal("expected an invalid-request error")
	}
}
