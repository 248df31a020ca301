// stub.go implements the educational stub provider.
//
// The stub DOES NOT implement real post-quantum cryptography and must never
// be used for security. It emulates the API shape, key/ciphertext/signature
// sizes and determinism of the NIST PQC algorithms so that pipelines and
// lifecycle logic can be exercised without native library dependencies.
//
// Unlike a pure mock, the stub KEM round-trips: the private key embeds the
// public key (as the real schemes do), and both sides derive the shared
// secret as SHAKE-256(publicKey || ciphertext) under a stub-only domain
// separator. Decapsulation therefore recovers exactly the secret that
// encapsulation produced. Signatures follow the same construction, so
// Verify(pub, msg, Sign(priv, msg)) holds and any bit flip in the message or
// signature fails verification.
//
// All stub output is drawn from a SHAKE-256 stream seeded by the caller, so
// two stub providers opened with the same seed produce identical byte
// sequences, which is the property the benchmark harness relies on.
package crypto

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// StubProvider is a deterministic, seedable primitive provider emulating
// Kyber-768 KEM and Dilithium-3 signature parameter sizes.
type StubProvider struct {
	mu     sync.Mutex
	stream sha3.ShakeHash
	closed bool
	suite  constants.CipherSuite
}

// compile-time interface check
var _ Provider = (*StubProvider)(nil)

// OpenStubProvider opens a stub provider seeded with the given value.
func OpenStubProvider(seed uint64, suite constants.CipherSuite) *StubProvider {
	h := sha3.NewShake256()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	h.Write([]byte("QSAFE-v1-StubStream"))
	h.Write(seedBytes[:])
	return &StubProvider{stream: h, suite: suite}
}

// Name identifies the backend.
func (p *StubProvider) Name() string { return "stub" }

// next draws n deterministic bytes from the stub stream.
func (p *StubProvider) next(n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, qerrors.ErrProviderClosed
	}
	b := make([]byte, n)
	_, _ = p.stream.Read(b) // SHAKE256.Read never fails
	return b, nil
}

// ClassicalKeyExchange emulates an ephemeral classical exchange by drawing a
// 32-byte secret from the stub stream.
func (p *StubProvider) ClassicalKeyExchange() (*SharedSecret, error) {
	b, err := p.next(constants.X25519SharedSecretSize)
	if err != nil {
		return nil, err
	}
	return NewSharedSecret(ProvenanceClassical, b), nil
}

// KEMGenerateKeyPair emulates Kyber-768 key generation. The private key's
// trailing bytes are the public key, mirroring the real scheme's layout.
func (p *StubProvider) KEMGenerateKeyPair() ([]byte, []byte, error) {
	pub, err := p.next(constants.StubKyber768PublicKeySize)
	if err != nil {
		return nil, nil, err
	}
	secret, err := p.next(constants.StubKyber768PrivateKeySize - constants.StubKyber768PublicKeySize)
	if err != nil {
		return nil, nil, err
	}
	priv := make([]byte, 0, constants.StubKyber768PrivateKeySize)
	priv = append(priv, secret...)
	priv = append(priv, pub...)
	return pub, priv, nil
}

// KEMEncapsulate emulates Kyber-768 encapsulation. The shared secret is
// derived from the public key and the ciphertext so decapsulation can
// recover it.
func (p *StubProvider) KEMEncapsulate(publicKey []byte) ([]byte, *SharedSecret, error) {
	if len(publicKey) != constants.StubKyber768PublicKeySize {
		return nil, nil, qerrors.NewPrimitiveError("stub", "KEMEncapsulate", qerrors.ErrInvalidKeySize)
	}
	ct, err := p.next(constants.StubKyber768CiphertextSize)
	if err != nil {
		return nil, nil, err
	}
	ss, err := DeriveKeyMultiple(constants.DomainSeparatorStubKEM,
		[][]byte{publicKey, ct}, constants.StubSharedSecretSize)
	if err != nil {
		return nil, nil, err
	}
	return ct, NewSharedSecret(ProvenancePostQuantum, ss), nil
}

// KEMDecapsulate recovers the shared secret from a stub ciphertext.
func (p *StubProvider) KEMDecapsulate(privateKey, ciphertext []byte) (*SharedSecret, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, qerrors.ErrProviderClosed
	}
	if len(privateKey) != constants.StubKyber768PrivateKeySize {
		return nil, qerrors.NewPrimitiveError("stub", "KEMDecapsulate", qerrors.ErrInvalidKeySize)
	}
	if len(ciphertext) != constants.StubKyber768CiphertextSize {
		return nil, qerrors.NewPrimitiveError("stub", "KEMDecapsulate", qerrors.ErrInvalidCiphertext)
	}
	publicKey := privateKey[len(privateKey)-constants.StubKyber768PublicKeySize:]
	ss, err := DeriveKeyMultiple(constants.DomainSeparatorStubKEM,
		[][]byte{publicKey, ciphertext}, constants.StubSharedSecretSize)
	if err != nil {
		return nil, err
	}
	return NewSharedSecret(ProvenancePostQuantum, ss), nil
}

// SignGenerateKeyPair emulates Dilithium-3 key generation.
func (p *StubProvider) SignGenerateKeyPair() ([]byte, []byte, error) {
	pub, err := p.next(constants.StubDilithium3PublicKeySize)
	if err != nil {
		return nil, nil, err
	}
	secret, err := p.next(constants.StubDilithium3PrivateKeySize - constants.StubDilithium3PublicKeySize)
	if err != nil {
		return nil, nil, err
	}
	priv := make([]byte, 0, constants.StubDilithium3PrivateKeySize)
	priv = append(priv, secret...)
	priv = append(priv, pub...)
	return pub, priv, nil
}

// Sign emulates a Dilithium-3 signature: a deterministic SHAKE-256 expansion
// of (publicKey, message) padded to the real signature size.
func (p *StubProvider) Sign(privateKey, message []byte) ([]byte, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, qerrors.ErrProviderClosed
	}
	if len(privateKey) != constants.StubDilithium3PrivateKeySize {
		return nil, qerrors.NewPrimitiveError("stub", "Sign", qerrors.ErrInvalidKeySize)
	}
	publicKey := privateKey[len(privateKey)-constants.StubDilithium3PublicKeySize:]
	return DeriveKeyMultiple(constants.DomainSeparatorStubSig,
		[][]byte{publicKey, message}, constants.StubDilithium3SignatureSize)
}

// Verify recomputes the stub signature and compares in constant time.
func (p *StubProvider) Verify(publicKey, message, signature []byte) (bool, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return false, qerrors.ErrProviderClosed
	}
	if len(publicKey) != constants.StubDilithium3PublicKeySize {
		return false, qerrors.NewPrimitiveError("stub", "Verify", qerrors.ErrInvalidKeySize)
	}
	expected, err := DeriveKeyMultiple(constants.DomainSeparatorStubSig,
		[][]byte{publicKey, message}, constants.StubDilithium3SignatureSize)
	if err != nil {
		return false, err
	}
	return ConstantTimeCompare(expected, signature), nil
}

// AEADEncrypt seals plaintext with the provider's cipher suite. The AEAD is
// real (AES-256-GCM or ChaCha20-Poly1305); only the asymmetric primitives
// are stubbed, mirroring the reference pipeline.
func (p *StubProvider) AEADEncrypt(key, plaintext, associatedData []byte) ([]byte, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, qerrors.ErrProviderClosed
	}
	aead, err := NewAEAD(p.suite, key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(plaintext, associatedData)
}

// AEADDecrypt opens a ciphertext sealed by AEADEncrypt.
func (p *StubProvider) AEADDecrypt(key, ciphertext, associatedData []byte) ([]byte, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, qerrors.ErrProviderClosed
	}
	aead, err := NewAEAD(p.suite, key)
	if err != nil {
		return nil, err
	}
	return aead.Open(ciphertext, associatedData)
}

// Close releases the handle. Subsequent operations fail with
// ErrProviderClosed. Close is idempotent.
func (p *StubProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.stream = nil
	return nil
}

// String describes the stub parameter set.
func (p *StubProvider) String() string {
	return fmt.Sprintf("stub(kyber768/dilithium3, %s)", p.suite)
}
