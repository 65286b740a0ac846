package hash

// Hash produces hex-encoded keyed digests and verifies values against them.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}
