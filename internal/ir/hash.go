package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainExpr      = "rxq/expr/v1"
	DomainOperation = "rxq/operation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes the canonical JSON of v under domain.
func ContentHash(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ExprHash computes the content hash of a normalized expression.
// Structurally equal expressions hash identically.
func ExprHash(e Expr) (string, error) {
	v, err := EncodeExpr(e)
	if err != nil {
		return "", fmt.Errorf("ExprHash: %w", err)
	}
	return ContentHash(DomainExpr, v)
}

// MustExprHash is like ExprHash but panics on error.
// Use only in tests or when the expression is known to be normalized.
func MustExprHash(e Expr) string {
	h, err := ExprHash(e)
	if err != nil {
		panic(err)
	}
	return h
}
