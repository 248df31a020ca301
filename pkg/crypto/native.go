// native.go implements the native primitive provider.
//
// The native backend delegates to real, standards-tracking implementations:
//   - ML-KEM-1024 (NIST FIPS 203) via CIRCL for post-quantum encapsulation
//   - ML-DSA-65 (NIST FIPS 204) via CIRCL for post-quantum signatures
//   - X25519 (RFC 7748) via crypto/ecdh for classical key exchange
//   - AES-256-GCM or ChaCha20-Poly1305 for AEAD
//
// Keys cross the Provider boundary in packed byte form so the stub and
// native variants stay interchangeable behind the same interface.
package crypto

import (
	"crypto/ecdh"
	"sync"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// NativeProvider is a primitive provider backed by real implementations.
type NativeProvider struct {
	mu     sync.Mutex
	closed bool
	suite  constants.CipherSuite
}

var _ Provider = (*NativeProvider)(nil)

// OpenNativeProvider opens a native provider handle.
func OpenNativeProvider(suite constants.CipherSuite) (*NativeProvider, error) {
	return &NativeProvider{suite: suite}, nil
}

// Name identifies the backend.
func (p *NativeProvider) Name() string { return "native" }

func (p *NativeProvider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ClassicalKeyExchange performs an ephemeral-ephemeral X25519 exchange and
// returns the 32-byte shared secret tagged ProvenanceClassical.
func (p *NativeProvider) ClassicalKeyExchange() (*SharedSecret, error) {
	if p.isClosed() {
		return nil, qerrors.ErrProviderClosed
	}
	curve := ecdh.X25519()

	local, err := curve.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewPrimitiveError("native", "ClassicalKeyExchange", err)
	}
	remote, err := curve.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewPrimitiveError("native", "ClassicalKeyExchange", err)
	}

	secret, err := local.ECDH(remote.PublicKey())
	if err != nil {
		return nil, qerrors.NewPrimitiveError("native", "ClassicalKeyExchange", err)
	}
	return NewSharedSecret(ProvenanceClassical, secret), nil
}

// KEMGenerateKeyPair generates an ML-KEM-1024 key pair in packed form.
func (p *NativeProvider) KEMGenerateKeyPair() ([]byte, []byte, error) {
	if p.isClosed() {
		return nil, nil, qerrors.ErrProviderClosed
	}
	pk, sk, err := mlkem1024.GenerateKeyPair(Reader)
	if err != nil {
		return nil, nil, qerrors.NewPrimitiveError("native", "KEMGenerateKeyPair", err)
	}

	pub := make([]byte, mlkem1024.PublicKeySize)
	pk.Pack(pub)
	priv := make([]byte, mlkem1024.PrivateKeySize)
	sk.Pack(priv)
	return pub, priv, nil
}

// KEMEncapsulate encapsulates a fresh shared secret to an ML-KEM-1024
// public key.
func (p *NativeProvider) KEMEncapsulate(publicKey []byte) ([]byte, *SharedSecret, error) {
	if p.isClosed() {
		return nil, nil, qerrors.ErrProviderClosed
	}
	if len(publicKey) != mlkem1024.PublicKeySize {
		return nil, nil, qerrors.NewPrimitiveError("native", "KEMEncapsulate", qerrors.ErrInvalidKeySize)
	}

	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(publicKey); err != nil {
		return nil, nil, qerrors.NewPrimitiveError("native", "KEMEncapsulate", err)
	}

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, err
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)

	return ct, NewSharedSecret(ProvenancePostQuantum, ss), nil
}

// KEMDecapsulate recovers the shared secret from an ML-KEM-1024 ciphertext.
// Malformed ciphertexts trigger ML-KEM's implicit rejection and still yield
// a pseudorandom secret, per FIPS 203.
func (p *NativeProvider) KEMDecapsulate(privateKey, ciphertext []byte) (*SharedSecret, error) {
	if p.isClosed() {
		return nil, qerrors.ErrProviderClosed
	}
	if len(privateKey) != mlkem1024.PrivateKeySize {
		return nil, qerrors.NewPrimitiveError("native", "KEMDecapsulate", qerrors.ErrInvalidKeySize)
	}
	if len(ciphertext) != mlkem1024.CiphertextSize {
		return nil, qerrors.NewPrimitiveError("native", "KEMDecapsulate", qerrors.ErrInvalidCiphertext)
	}

	sk := new(mlkem1024.PrivateKey)
	if err := sk.Unpack(privateKey); err != nil {
		return nil, qerrors.NewPrimitiveError("native", "KEMDecapsulate", err)
	}

	ss := make([]byte, mlkem1024.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return NewSharedSecret(ProvenancePostQuantum, ss), nil
}

// SignGenerateKeyPair generates an ML-DSA-65 key pair in encoded form.
func (p *NativeProvider) SignGenerateKeyPair() ([]byte, []byte, error) {
	if p.isClosed() {
		return nil, nil, qerrors.ErrProviderClosed
	}
	scheme := mldsa65.Scheme()
	pk, sk, err := scheme.GenerateKey()
	if err != nil {
		return nil, nil, qerrors.NewPrimitiveError("native", "SignGenerateKeyPair", err)
	}

	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewPrimitiveError("native", "SignGenerateKeyPair", err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewPrimitiveError("native", "SignGenerateKeyPair", err)
	}
	return pub, priv, nil
}

// Sign produces an ML-DSA-65 signature over message.
func (p *NativeProvider) Sign(privateKey, message []byte) ([]byte, error) {
	if p.isClosed() {
		return nil, qerrors.ErrProviderClosed
	}
	scheme := mldsa65.Scheme()
	sk, err := scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, qerrors.NewPrimitiveError("native", "Sign", err)
	}
	return scheme.Sign(sk, message, nil), nil
}

// Verify checks an ML-DSA-65 signature.
func (p *NativeProvider) Verify(publicKey, message, signature []byte) (bool, error) {
	if p.isClosed() {
		return false, qerrors.ErrProviderClosed
	}
	scheme := mldsa65.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false, qerrors.NewPrimitiveError("native", "Verify", err)
	}
	return scheme.Verify(pk, message, signature, nil), nil
}

// AEADEncrypt seals plaintext with the provider's cipher suite.
func (p *NativeProvider) AEADEncrypt(key, plaintext, associatedData []byte) ([]byte, error) {
	if p.isClosed() {
		return nil, qerrors.ErrProviderClosed
	}
	aead, err := NewAEAD(p.suite, key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(plaintext, associatedData)
}

// AEADDecrypt opens a ciphertext sealed by AEADEncrypt.
func (p *NativeProvider) AEADDecrypt(key, ciphertext, associatedData []byte) ([]byte, error) {
	if p.isClosed() {
		return nil, qerrors.ErrProviderClosed
	}
	aead, err := NewAEAD(p.suite, key)
	if err != nil {
		return nil, err
	}
	return aead.Open(ciphertext, associatedData)
}

// Close releases the handle. Close is idempotent.
func (p *NativeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
