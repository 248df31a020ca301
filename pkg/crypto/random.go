// Package crypto provides the cryptographic primitives consumed by the
// quantum-safe key simulator: a SHAKE-256 key-derivation function, AEAD key
// wrapping, and the PrimitiveProvider capability with its two variants (an
// educational deterministic stub and a native backend built on real
// implementations).
//
// Security note: all secret-quality randomness comes from crypto/rand, the
// operating system's CSPRNG. The BB84 simulator in pkg/qkd deliberately does
// NOT use this package for randomness: simulation reproducibility requires a
// seeded generator owned by each run.
package crypto

import (
	"crypto/rand"
	"io"

	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// SecureRandom fills b with cryptographically secure random bytes from the
// OS CSPRNG. An error here should be treated as a critical system failure.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return qerrors.NewPrimitiveError("csprng", "SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reader is an io.Reader yielding cryptographically secure random bytes.
var Reader = rand.Reader

// ConstantTimeCompare compares two byte slices in constant time, preventing
// timing side-channels when comparing secrets.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := range a {
		result |= a[i] ^ b[i]
	}
	return result == 0
}

// Zeroize overwrites sensitive data with zeros. The Go runtime may have
// copied the data elsewhere; this is best-effort hygiene, not a guarantee.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
