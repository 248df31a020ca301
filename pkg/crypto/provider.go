// provider.go defines the PrimitiveProvider capability consumed by the
// hybrid key deriver and the key hierarchy manager.
//
// A Provider is an opaque handle over concrete cryptography: classical key
// exchange, KEM encapsulation/decapsulation, signatures, and AEAD. Two
// variants exist, a deterministic educational stub and a native backend,
// selected explicitly by configuration, never by duck-typing. Handles follow
// an open/use/close contract: obtain one with OpenProvider, release it with
// Close on every exit path.
package crypto

import (
	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// Provenance tags the origin of a shared secret. The hybrid deriver records
// which provenances contributed to each session key.
type Provenance uint8

const (
	// ProvenanceClassical marks a secret from classical key exchange (ECDH).
	ProvenanceClassical Provenance = iota

	// ProvenancePostQuantum marks a secret from a post-quantum KEM.
	ProvenancePostQuantum

	// ProvenanceQKD marks a secret distilled from a BB84 sifted key.
	ProvenanceQKD
)

// String returns a human-readable name for the provenance tag.
func (p Provenance) String() string {
	switch p {
	case ProvenanceClassical:
		return "classical"
	case ProvenancePostQuantum:
		return "post-quantum"
	case ProvenanceQKD:
		return "qkd"
	default:
		return "unknown"
	}
}

// SharedSecret is a provenance-tagged byte sequence. Secrets are single-use
// derivation inputs; callers must not reuse one across sessions.
type SharedSecret struct {
	Provenance Provenance
	Bytes      []byte
}

// NewSharedSecret builds a tagged secret. The bytes are not copied; the
// caller yields ownership.
func NewSharedSecret(p Provenance, b []byte) *SharedSecret {
	return &SharedSecret{Provenance: p, Bytes: b}
}

// Zeroize overwrites the secret bytes.
func (s *SharedSecret) Zeroize() {
	if s != nil {
		Zeroize(s.Bytes)
	}
}

// Provider is the primitive capability. Implementations must be safe for
// concurrent use until Close is called.
type Provider interface {
	// Name identifies the backend ("stub", "native", "chain").
	Name() string

	// ClassicalKeyExchange performs an ephemeral classical key exchange and
	// returns the resulting shared secret tagged ProvenanceClassical.
	ClassicalKeyExchange() (*SharedSecret, error)

	// KEMGenerateKeyPair generates a KEM key pair in encoded form.
	KEMGenerateKeyPair() (publicKey, privateKey []byte, err error)

	// KEMEncapsulate encapsulates a fresh shared secret to publicKey. The
	// secret is tagged ProvenancePostQuantum.
	KEMEncapsulate(publicKey []byte) (ciphertext []byte, secret *SharedSecret, err error)

	// KEMDecapsulate recovers the shared secret from a ciphertext.
	KEMDecapsulate(privateKey, ciphertext []byte) (*SharedSecret, error)

	// SignGenerateKeyPair generates a signature key pair in encoded form.
	SignGenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Sign signs message with privateKey.
	Sign(privateKey, message []byte) (signature []byte, err error)

	// Verify reports whether signature is valid for message under publicKey.
	Verify(publicKey, message, signature []byte) (bool, error)

	// AEADEncrypt seals plaintext under a 32-byte key, authenticating
	// associatedData.
	AEADEncrypt(key, plaintext, associatedData []byte) ([]byte, error)

	// AEADDecrypt opens a ciphertext produced by AEADEncrypt. A tag mismatch
	// returns ErrAuthenticationFailed.
	AEADDecrypt(key, ciphertext, associatedData []byte) ([]byte, error)

	// Close releases the handle. Operations after Close fail with
	// ErrProviderClosed.
	Close() error
}

// Backend selects a provider variant.
type Backend string

const (
	// BackendStub selects the deterministic educational stub.
	BackendStub Backend = "stub"

	// BackendNative selects the native backend (CIRCL ML-KEM/ML-DSA, X25519).
	BackendNative Backend = "native"

	// BackendAuto selects a native-first chain with stub fallback.
	BackendAuto Backend = "auto"
)

// ProviderOptions configures OpenProvider.
type ProviderOptions struct {
	// Suite is the AEAD cipher suite; the zero value means AES-256-GCM.
	Suite constants.CipherSuite

	// StubSeed seeds the stub provider's deterministic byte stream. Ignored
	// by the native backend.
	StubSeed uint64
}

func (o ProviderOptions) suite() constants.CipherSuite {
	if o.Suite == 0 {
		return constants.CipherSuiteAES256GCM
	}
	return o.Suite
}

// OpenProvider opens a provider handle for the named backend.
func OpenProvider(backend Backend, opts ProviderOptions) (Provider, error) {
	if !opts.suite().IsSupported() {
		return nil, qerrors.ErrUnsupportedCipherSuite
	}
	switch backend {
	case BackendStub:
		return OpenStubProvider(opts.StubSeed, opts.suite()), nil
	case BackendNative:
		return OpenNativeProvider(opts.suite())
	case BackendAuto:
		return OpenChain(opts)
	default:
		return nil, qerrors.NewConfigError("provider", "unknown backend "+string(backend))
	}
}
