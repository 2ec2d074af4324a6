//go:build !linux

package dns

// IsImmutable reports whether path has the immutable attribute set.
// It is only supported on Linux.
func IsImmutable(path string) bool {
	return false
}
