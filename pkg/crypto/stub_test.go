package crypto_test

import (
	"bytes"
	"testing"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
)

func newStub(t *testing.T, seed uint64) *crypto.StubProvider {
	t.Helper()
	p := crypto.OpenStubProvider(seed, constants.CipherSuiteAES256GCM)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestStubKEMSizes(t *testing.T) {
	p := newStub(t, 1)

	pub, priv, err := p.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}
	if len(pub) != constants.StubKyber768PublicKeySize {
		t.Errorf("Public key size: got %d, want %d", len(pub), constants.StubKyber768PublicKeySize)
	}
	if len(priv) != constants.StubKyber768PrivateKeySize {
		t.Errorf("Private key size: got %d, want %d", len(priv), constants.StubKyber768PrivateKeySize)
	}

	ct, secret, err := p.KEMEncapsulate(pub)
	if err != nil {
		t.Fatalf("KEMEncapsulate failed: %v", err)
	}
	if len(ct) != constants.StubKyber768CiphertextSize {
		t.Errorf("Ciphertext size: got %d, want %d", len(ct), constants.StubKyber768CiphertextSize)
	}
	if len(secret.Bytes) != constants.StubSharedSecretSize {
		t.Errorf("Shared secret size: got %d, want %d", len(secret.Bytes), constants.StubSharedSecretSize)
	}
	if secret.Provenance != crypto.ProvenancePostQuantum {
		t.Errorf("Provenance: got %s, want post-quantum", secret.Provenance)
	}
}

func TestStubKEMRoundTrip(t *testing.T) {
	p := newStub(t, 2)

	pub, priv, err := p.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}
	ct, encapsulated, err := p.KEMEncapsulate(pub)
	if err != nil {
		t.Fatalf("KEMEncapsulate failed: %v", err)
	}
	recovered, err := p.KEMDecapsulate(priv, ct)
	if err != nil {
		t.Fatalf("KEMDecapsulate failed: %v", err)
	}

	if !bytes.Equal(encapsulated.Bytes, recovered.Bytes) {
		t.Error("Decapsulation did not recover the encapsulated secret")
	}
}

func TestStubDeterministicPerSeed(t *testing.T) {
	a := newStub(t, 7)
	b := newStub(t, 7)

	pubA, privA, err := a.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}
	pubB, privB, err := b.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}

	if !bytes.Equal(pubA, pubB) || !bytes.Equal(privA, privB) {
		t.Error("Equal seeds produced different key pairs")
	}

	c := newStub(t, 8)
	pubC, _, err := c.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}
	if bytes.Equal(pubA, pubC) {
		t.Error("Different seeds produced identical key pairs")
	}
}

func TestStubSignVerify(t *testing.T) {
	p := newStub(t, 3)

	pub, priv, err := p.SignGenerateKeyPair()
	if err != nil {
		t.Fatalf("SignGenerateKeyPair failed: %v", err)
	}
	if len(pub) != constants.StubDilithium3PublicKeySize {
		t.Errorf("Public key size: got %d, want %d", len(pub), constants.StubDilithium3PublicKeySize)
	}

	message := []byte("rotate kek 42")
	sig, err := p.Sign(priv, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sig) != constants.StubDilithium3SignatureSize {
		t.Errorf("Signature size: got %d, want %d", len(sig), constants.StubDilithium3SignatureSize)
	}

	ok, err := p.Verify(pub, message, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("Valid signature rejected")
	}

	// Flipped message bit
	tampered := append([]byte(nil), message...)
	tampered[0] ^= 0x01
	ok, err = p.Verify(pub, tampered, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("Signature verified for a tampered message")
	}

	// Flipped signature bit
	badSig := append([]byte(nil), sig...)
	badSig[0] ^= 0x01
	ok, err = p.Verify(pub, message, badSig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("Tampered signature verified")
	}
}

func TestStubAEAD(t *testing.T) {
	p := newStub(t, 4)

	key, err := crypto.SecureRandomBytes(constants.AESKeySize)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}

	ct, err := p.AEADEncrypt(key, []byte("payload"), []byte("aad"))
	if err != nil {
		t.Fatalf("AEADEncrypt failed: %v", err)
	}
	pt, err := p.AEADDecrypt(key, ct, []byte("aad"))
	if err != nil {
		t.Fatalf("AEADDecrypt failed: %v", err)
	}
	if !bytes.Equal(pt, []byte("payload")) {
		t.Error("AEAD round trip failed")
	}

	if _, err := p.AEADDecrypt(key, ct, []byte("wrong")); !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("Wrong AAD: expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestStubInvalidInputSizes(t *testing.T) {
	p := newStub(t, 5)

	if _, _, err := p.KEMEncapsulate(make([]byte, 10)); !qerrors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("Short public key: expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := p.KEMDecapsulate(make([]byte, 10), make([]byte, constants.StubKyber768CiphertextSize)); !qerrors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("Short private key: expected ErrInvalidKeySize, got %v", err)
	}

	_, priv, err := p.KEMGenerateKeyPair()
	if err != nil {
		t.Fatalf("KEMGenerateKeyPair failed: %v", err)
	}
	if _, err := p.KEMDecapsulate(priv, make([]byte, 10)); !qerrors.Is(err, qerrors.ErrInvalidCiphertext) {
		t.Errorf("Short ciphertext: expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestStubClosed(t *testing.T) {
	p := crypto.OpenStubProvider(6, constants.CipherSuiteAES256GCM)
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if _, _, err := p.KEMGenerateKeyPair(); !qerrors.Is(err, qerrors.ErrProviderClosed) {
		t.Errorf("KEMGenerateKeyPair after Close: expected ErrProviderClosed, got %v", err)
	}
	if _, err := p.ClassicalKeyExchange(); !qerrors.Is(err, qerrors.ErrProviderClosed) {
		t.Errorf("ClassicalKeyExchange after Close: expected ErrProviderClosed, got %v", err)
	}
	if _, err := p.Sign(make([]byte, constants.StubDilithium3PrivateKeySize), []byte("m")); !qerrors.Is(err, qerrors.ErrProviderClosed) {
		t.Errorf("Sign after Close: expected ErrProviderClosed, got %v", err)
	}
}
