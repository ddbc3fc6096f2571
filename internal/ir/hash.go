package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue   = "opgraph/value/v1"
	DomainType    = "opgraph/type/v1"
	DomainContent = "opgraph/content/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueDigest computes a content-addressed digest of a value.
func ValueDigest(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// TypeDigest computes a deterministic key for a type. Structurally equal
// types (modulo union member order) may still digest differently; callers
// use it as a cache key, where a miss is harmless.
func TypeDigest(t Type) string {
	canonical, err := MarshalCanonical(TypeToValue(t))
	if err != nil {
		// Only const types holding function literals can fail; their
		// rendering is still deterministic.
		canonical = []byte(t.String())
	}
	return hashWithDomain(DomainType, canonical)
}

// ContentDigest computes the digest of raw file content.
func ContentDigest(data []byte) string {
	return hashWithDomain(DomainContent, data)
}

// MustValueDigest is like ValueDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueDigest(v Value) string {
	d, err := ValueDigest(v)
	if err != nil {
		panic(err)
	}
	return d
}
