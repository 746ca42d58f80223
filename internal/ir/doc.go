// Package ir provides the expression intermediate representation compiled
// by rxq.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Expr and Value are sealed variants; every Expr node carries its static type
//   - NO float values anywhere; durations are int64 nanoseconds
//   - Canonical JSON (RFC 8785) is the only encoding used for identity
//   - Structural equality binds lambda parameters by position
package ir
