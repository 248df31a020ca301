// aead.go implements authenticated encryption for key wrapping.
//
// Two AEAD suites are supported:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs
//   - ChaCha20-Poly1305: fast in software, no hardware dependency
//
// Wrapping a key is a one-shot operation on short plaintext, so each Seal
// draws a fresh random 96-bit nonce from the CSPRNG and prepends it to the
// ciphertext. Nonce-counter management (needed for high-volume transport
// encryption) is out of scope here.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// AEAD wraps an authenticated cipher for key-wrap operations.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
}

// NewAEAD creates an AEAD for the given suite with a 32-byte key.
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	var aeadCipher cipher.AEAD

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewPrimitiveError("aead", "NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewPrimitiveError("aead", "NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		var err error
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewPrimitiveError("aead", "NewAEAD", err)
		}

	default:
		return nil, qerrors.ErrUnsupportedCipherSuite
	}

	return &AEAD{cipher: aeadCipher, suite: suite}, nil
}

// Suite returns the cipher suite in use.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Seal encrypts and authenticates plaintext, binding additionalData into the
// authentication tag. The returned ciphertext is nonce || encrypted || tag.
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, constants.AESNonceSize)
	if err := SecureRandom(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+constants.AESTagSize)
	out = append(out, nonce...)
	return a.cipher.Seal(out, nonce, plaintext, additionalData), nil
}

// Open authenticates and decrypts a ciphertext produced by Seal. A tag
// mismatch (tampered ciphertext, wrong key, wrong associated data) returns
// ErrAuthenticationFailed.
func (a *AEAD) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < constants.AESNonceSize+constants.AESTagSize {
		return nil, qerrors.ErrInvalidCiphertext
	}

	nonce := ciphertext[:constants.AESNonceSize]
	plaintext, err := a.cipher.Open(nil, nonce, ciphertext[constants.AESNonceSize:], additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}
