// Package canonical provides RFC 8785 (JSON Canonicalization Scheme)
// content digests for every governed entity.
//
// Hashing is always explicit: entities expose CanonicalFields and callers
// invoke Hash after construction and after any sanctioned mutation. No
// entity trusts a stored digest — tampering with persisted state is
// detectable by anyone who can re-derive the canonical fields.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Prefix identifies the digest algorithm in stored hashes.
const Prefix = "sha256:"

// Hashable is any entity exposing its canonical field set.
type Hashable interface {
	CanonicalFields() map[string]any
}

// JCS returns the RFC 8785 canonical JSON form of v.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform failed: %w", err)
	}
	return out, nil
}

// HashBytes computes the sha256 digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}

// HashValue returns the content digest of an arbitrary value's canonical
// JSON form.
func HashValue(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// Hash returns the content digest of an entity's canonical field set.
func Hash(h Hashable) (string, error) {
	return HashValue(h.CanonicalFields())
}

// Verify re-derives the entity's digest and compares it to the stored
// value. A mismatch means the record was mutated outside a sanctioned
// path.
func Verify(h Hashable, stored string) (bool, error) {
	got, err := Hash(h)
	if err != nil {
		return false, err
	}
	return got == stored, nil
}
