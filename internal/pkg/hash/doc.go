// Package hash derives keyed digests of short secrets.
//
// One-time codes and login tokens are stored only as digests; lookups hash the
// submitted value and compare digests. BLAKE2b is used where a stable, keyed
// identifier must be derived from a value (e.g. a login alias from a phone).
package hash
