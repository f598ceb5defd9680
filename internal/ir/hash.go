package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan      = "typewriter/plan/v1"
	DomainStatement = "typewriter/statement/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a canonical encoding of v under the given domain prefix.
// v must be acceptable to MarshalCanonical.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// StatementID identifies a compiled statement by dialect and text only.
// Two plans that differ only in operand values share a StatementID, which
// is what prepared-statement caches key on.
func StatementID(dialect, text string) string {
	return hashWithDomain(DomainStatement, []byte(dialect+"\x00"+text))
}
