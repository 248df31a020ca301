// Package errors defines the error taxonomy for the quantum-safe key
// simulator. Errors carry enough context to explain a failed operation
// (reason code, key id, generation) without leaking secret material.
//
// Statistical outcomes are not errors: a QBER rejection is reported as a
// verdict value on the report, because callers routinely branch on it and
// fall back to PQC-only or classical-only derivation.
package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for configuration
var (
	// ErrInvalidConfiguration indicates malformed parameters. The core fails
	// fast on these and never silently substitutes defaults.
	ErrInvalidConfiguration = errors.New("config: invalid configuration")

	// ErrNoDerivationInput indicates a hybrid derivation was requested with
	// no secret material at all.
	ErrNoDerivationInput = errors.New("hybrid: no derivation inputs supplied")

	// ErrProvenanceMismatch indicates a shared secret was passed in the wrong
	// derivation slot (e.g. a QKD secret supplied as the classical input).
	ErrProvenanceMismatch = errors.New("hybrid: shared secret provenance does not match slot")
)

// Sentinel errors for primitive providers
var (
	// ErrPrimitiveFailure indicates a failure inside a primitive provider.
	// It is propagated unchanged; the core never falls back to a weaker
	// algorithm silently.
	ErrPrimitiveFailure = errors.New("provider: primitive operation failed")

	// ErrAuthenticationFailed indicates AEAD authentication failed on unwrap.
	ErrAuthenticationFailed = errors.New("provider: aead authentication failed")

	// ErrProviderClosed indicates an operation on a released provider handle.
	ErrProviderClosed = errors.New("provider: handle closed")

	// ErrProviderUnavailable indicates no stage of the provider chain could
	// serve the request.
	ErrProviderUnavailable = errors.New("provider: no backend available")

	// ErrInvalidKeySize indicates a key has an incorrect size.
	ErrInvalidKeySize = errors.New("provider: invalid key size")

	// ErrInvalidCiphertext indicates a ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("provider: invalid ciphertext")

	// ErrUnsupportedCipherSuite indicates an unsupported AEAD suite.
	ErrUnsupportedCipherSuite = errors.New("provider: unsupported cipher suite")
)

// Sentinel errors for the key hierarchy
var (
	// ErrKeyNotFound indicates a lookup referenced a missing key id.
	ErrKeyNotFound = errors.New("keyhier: key not found")

	// ErrDanglingWrap indicates a wrap reference resolves to a missing or
	// retired key generation. Never auto-healed.
	ErrDanglingWrap = errors.New("keyhier: wrap references missing or retired generation")

	// ErrRotationConflict indicates a concurrent generation-increment
	// collision. Retried internally with backoff.
	ErrRotationConflict = errors.New("keyhier: concurrent rotation conflict")

	// ErrRotationFailed indicates rotation retries were exhausted.
	ErrRotationFailed = errors.New("keyhier: rotation failed after retries")

	// ErrWrongState indicates an operation is not valid for the key's
	// current lifecycle state.
	ErrWrongState = errors.New("keyhier: operation invalid for key state")

	// ErrRootExists indicates a second active root was requested for a
	// hierarchy that already has one.
	ErrRootExists = errors.New("keyhier: active root already exists")
)

// ConfigError reports an invalid configuration field. It unwraps to
// ErrInvalidConfiguration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// PrimitiveError wraps a provider failure with the backend and operation
// that produced it. It matches ErrPrimitiveFailure via errors.Is and also
// unwraps to the underlying cause.
type PrimitiveError struct {
	Backend string // provider name, e.g. "stub", "native"
	Op      string // operation, e.g. "KEMEncapsulate"
	Err     error
}

func (e *PrimitiveError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PrimitiveError) Unwrap() error {
	return e.Err
}

// Is reports a match for ErrPrimitiveFailure in addition to the wrapped chain.
func (e *PrimitiveError) Is(target error) bool {
	return target == ErrPrimitiveFailure
}

// NewPrimitiveError creates a PrimitiveError.
func NewPrimitiveError(backend, op string, err error) *PrimitiveError {
	return &PrimitiveError{Backend: backend, Op: op, Err: err}
}

// RotationError reports a failed or conflicting rotation with the key id and
// the generation observed when the operation started.
type RotationError struct {
	KeyID      uuid.UUID
	Generation uint64
	Attempts   int
	Err        error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("keyhier: rotate %s gen %d (attempts %d): %v",
		e.KeyID, e.Generation, e.Attempts, e.Err)
}

func (e *RotationError) Unwrap() error {
	return e.Err
}

// NewRotationError creates a RotationError.
func NewRotationError(id uuid.UUID, generation uint64, attempts int, err error) *RotationError {
	return &RotationError{KeyID: id, Generation: generation, Attempts: attempts, Err: err}
}

// KeyRefError reports a lookup failure with the offending reference.
type KeyRefError struct {
	KeyID      uuid.UUID
	Generation uint64
	Err        error
}

func (e *KeyRefError) Error() string {
	return fmt.Sprintf("keyhier: %s gen %d: %v", e.KeyID, e.Generation, e.Err)
}

func (e *KeyRefError) Unwrap() error {
	return e.Err
}

// NewKeyRefError creates a KeyRefError.
func NewKeyRefError(id uuid.UUID, generation uint64, err error) *KeyRefError {
	return &KeyRefError{KeyID: id, Generation: generation, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
