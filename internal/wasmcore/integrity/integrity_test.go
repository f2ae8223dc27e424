package integrity

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

func TestHashIsStableAndCorrectLength(t *testing.T) {
	h := Hash([]byte("hello wasm"))
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%s)", len(h), h)
	}
	if Hash([]byte("hello wasm")) != h {
		t.Fatal("hash is not stable across calls")
	}
}

func TestVerifyHashMatch(t *testing.T) {
	data := []byte("module bytes")
	expected := Hash(data)
	if err := VerifyHash(data, expected); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
}

func TestVerifyHashMismatch(t *testing.T) {
	data := []byte("module bytes")
	err := VerifyHash(data, Hash([]byte("different bytes")))
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	kind, ok := wasmtypes.KindOf(err)
	if !ok || kind != wasmtypes.ErrorKindHashVerificationFailed {
		t.Fatalf("expected HashVerificationFailed, got %v", err)
	}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	data := []byte("signed module bytes")
	sig := ed25519.Sign(priv, data)

	if err := VerifySignature(data, sig, pub); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xFF
	if err := VerifySignature(tampered, sig, pub); err == nil {
		t.Fatal("expected signature verification to fail for tampered bytes")
	}
}

func TestVerifySignatureRejectsBadKeyLengths(t *testing.T) {
	if err := VerifySignature([]byte("x"), []byte("sig"), []byte("short")); err == nil {
		t.Fatal("expected error for short public key")
	}
}
