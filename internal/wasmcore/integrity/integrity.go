// Package integrity implements C1, the Integrity Verifier: SHA-256 hashing
// and constant-time comparison of artifact bytes, plus optional Ed25519
// signature verification against a caller-supplied author public key (spec
// §4.1).
//
// Standard-library-only justification (see DESIGN.md): crypto/sha256,
// crypto/subtle and crypto/ed25519 are the idiomatic, universally-used Go
// primitives for these exact operations; nothing in the example pack reaches
// for a third-party alternative for hashing, constant-time comparison, or
// Ed25519.
package integrity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Hash computes the hex-encoded SHA-256 digest of bytes (spec §4.1).
func Hash(bytes []byte) string {
	sum := sha256.Sum256(bytes)
	return hex.EncodeToString(sum[:])
}

// VerifyHash checks bytes' SHA-256 against expectedHex using a constant-time
// comparison, returning a HashVerificationFailed ExecutionError on mismatch
// (I1, P1, P2).
func VerifyHash(bytes []byte, expectedHex string) error {
	actual := Hash(bytes)
	// Compare decoded digests in constant time rather than the hex strings
	// directly, so an attacker cannot use timing to narrow down the digest.
	actualRaw, err1 := hex.DecodeString(actual)
	expectedRaw, err2 := hex.DecodeString(expectedHex)
	if err1 != nil || err2 != nil || len(actualRaw) != len(expectedRaw) ||
		subtle.ConstantTimeCompare(actualRaw, expectedRaw) != 1 {
		return wasmtypes.NewHashVerificationFailed("sha256 mismatch")
	}
	return nil
}

// VerifySignature checks an Ed25519 signature over bytes against publicKey.
// Per spec §4.1, absence of a signature is acceptable only when
// requireSignature is false; this function is not called in that case by
// callers following the loader's contract (spec §4.4/§6 registration flow).
func VerifySignature(bytes, signature, publicKey []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return wasmtypes.NewInvalidSignature("invalid public key length")
	}
	if len(signature) != ed25519.SignatureSize {
		return wasmtypes.NewInvalidSignature("invalid signature length")
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), bytes, signature) {
		return wasmtypes.NewInvalidSignature("signature does not verify")
	}
	return nil
}
