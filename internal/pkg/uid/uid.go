// Package uid generates identifiers: snowflake row IDs, UUIDs for
// correlation and token IDs, and opaque random tokens.
package uid

// NumberID generates unique int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
