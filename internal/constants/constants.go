// Package constants defines security parameters and protocol constants for the
// quantum-safe key-establishment and key-lifecycle simulator.
//
// The BB84 constants follow the standard theoretical model: an intercept-resend
// eavesdropper disturbs one quarter of the sifted positions, so the
// conventional 11% QBER security bound cleanly separates honest channels
// (QBER near zero) from eavesdropped ones (QBER near 0.25).
package constants

import "time"

// BB84 simulation parameters
const (
	// DefaultQubitCount is the default number of qubits per BB84 run.
	DefaultQubitCount = 1024

	// DefaultQBERSampleFraction is the fraction of the sifted key sacrificed
	// for error estimation. Sampled positions are published and therefore
	// excluded from the accepted key.
	DefaultQBERSampleFraction = 0.10

	// DefaultQBERThreshold is the conventional BB84 security bound. A sampled
	// QBER above this value rejects the candidate key.
	DefaultQBERThreshold = 0.11

	// InterceptResendDisturbance is the theoretical error rate an
	// intercept-resend eavesdropper induces on sifted positions.
	InterceptResendDisturbance = 0.25

	// QKDSegmentSize is the number of qubit events processed between
	// cooperative cancellation checks during a simulation run.
	QKDSegmentSize = 4096
)

// Key derivation parameters (SHAKE-256)
const (
	// SessionKeySize is the size of a derived session key in bytes.
	SessionKeySize = 32

	// KDFOutputSize is the default output size for key derivation in bytes.
	KDFOutputSize = 32

	// DomainSeparatorHybrid is used when combining classical, post-quantum
	// and QKD secrets into a session key.
	DomainSeparatorHybrid = "QSAFE-v1-HybridSession"

	// DomainSeparatorKeyWrap is used when deriving wrapping keys in the
	// key hierarchy.
	DomainSeparatorKeyWrap = "QSAFE-v1-KeyWrap"

	// DomainSeparatorStubKEM is used by the educational stub KEM.
	DomainSeparatorStubKEM = "QSAFE-v1-StubKEM"

	// DomainSeparatorStubSig is used by the educational stub signatures.
	DomainSeparatorStubSig = "QSAFE-v1-StubSignature"
)

// Symmetric encryption parameters (AES-256-GCM / ChaCha20-Poly1305)
const (
	// AESKeySize is the size of AES-256 keys in bytes.
	AESKeySize = 32

	// AESNonceSize is the size of AES-GCM nonces in bytes (96 bits).
	AESNonceSize = 12

	// AESTagSize is the size of the AES-GCM authentication tag in bytes.
	AESTagSize = 16
)

// X25519 parameters (RFC 7748), used by the native provider's classical
// key exchange.
const (
	X25519PublicKeySize    = 32
	X25519PrivateKeySize   = 32
	X25519SharedSecretSize = 32
)

// ML-KEM-1024 parameters (NIST FIPS 203), used by the native provider.
const (
	MLKEMPublicKeySize    = 1568
	MLKEMPrivateKeySize   = 3168
	MLKEMCiphertextSize   = 1568
	MLKEMSharedSecretSize = 32
)

// Educational stub sizes. These approximate the published parameter sets of
// the NIST PQC algorithms; the stub emulates key, ciphertext and signature
// sizes without implementing the underlying mathematics.
const (
	StubKyber512PublicKeySize  = 800
	StubKyber512PrivateKeySize = 1632
	StubKyber512CiphertextSize = 768

	StubKyber768PublicKeySize  = 1184
	StubKyber768PrivateKeySize = 2400
	StubKyber768CiphertextSize = 1088

	StubKyber1024PublicKeySize  = 1568
	StubKyber1024PrivateKeySize = 3168
	StubKyber1024CiphertextSize = 1568

	StubSharedSecretSize = 32

	StubDilithium2PublicKeySize  = 1312
	StubDilithium2PrivateKeySize = 2528
	StubDilithium2SignatureSize  = 2420

	StubDilithium3PublicKeySize  = 1952
	StubDilithium3PrivateKeySize = 4000
	StubDilithium3SignatureSize  = 3293

	StubDilithium5PublicKeySize  = 2592
	StubDilithium5PrivateKeySize = 4864
	StubDilithium5SignatureSize  = 4595

	StubSPHINCSPublicKeySize  = 64
	StubSPHINCSPrivateKeySize = 128
	StubSPHINCSSignatureSize  = 17088
)

// Key hierarchy parameters
const (
	// DefaultRotationInterval is the default time-based rotation cadence for
	// keys in the hierarchy.
	DefaultRotationInterval = 24 * time.Hour

	// DefaultGracePeriod is how long a prior generation stays in the Rotating
	// state (valid for unwrap, not for new wraps) after a rotation completes.
	DefaultGracePeriod = time.Hour

	// MaxRotationAttempts bounds optimistic-concurrency retries on a
	// generation collision before surfacing RotationFailed.
	MaxRotationAttempts = 5

	// RotationBackoffBase is the base delay between rotation retries. The
	// delay doubles on each attempt.
	RotationBackoffBase = 2 * time.Millisecond

	// DefaultRootExpiry is the default lifetime of a root key generation.
	DefaultRootExpiry = 365 * 24 * time.Hour

	// DefaultKEKExpiry is the default lifetime of a KEK generation.
	DefaultKEKExpiry = 30 * 24 * time.Hour

	// DefaultDEKExpiry is the default lifetime of a DEK generation. DEKs are
	// short-lived and intended for aggressive, independent rotation.
	DefaultDEKExpiry = 24 * time.Hour
)

// CipherSuite identifies the AEAD algorithm used for key wrapping.
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for symmetric encryption.
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for symmetric encryption.
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite.
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported.
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}
