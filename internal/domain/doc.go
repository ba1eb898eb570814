// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (vector.go, anchor.go, vibe.go, errors.go, etc.)
// with shared value types and cross-cutting interfaces. Beyond small value-type arithmetic there
// is no implementation code here - just contracts.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
