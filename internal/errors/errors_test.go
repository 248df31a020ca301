package errors_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

func TestConfigError(t *testing.T) {
	err := qerrors.NewConfigError("qubit_count", "must be positive")

	if !stderrors.Is(err, qerrors.ErrInvalidConfiguration) {
		t.Error("ConfigError does not match ErrInvalidConfiguration")
	}
	if !strings.Contains(err.Error(), "qubit_count") {
		t.Errorf("Message missing field name: %q", err.Error())
	}

	var ce *qerrors.ConfigError
	if !stderrors.As(err, &ce) || ce.Field != "qubit_count" {
		t.Error("As did not recover the ConfigError")
	}
}

func TestPrimitiveErrorChain(t *testing.T) {
	err := qerrors.NewPrimitiveError("native", "KEMEncapsulate", qerrors.ErrInvalidKeySize)

	if !stderrors.Is(err, qerrors.ErrPrimitiveFailure) {
		t.Error("PrimitiveError does not match ErrPrimitiveFailure")
	}
	if !stderrors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Error("PrimitiveError does not unwrap to its cause")
	}
	if msg := err.Error(); !strings.Contains(msg, "native") || !strings.Contains(msg, "KEMEncapsulate") {
		t.Errorf("Message missing context: %q", msg)
	}
}

func TestRotationError(t *testing.T) {
	id := uuid.New()
	err := qerrors.NewRotationError(id, 4, 5, qerrors.ErrRotationFailed)

	if !stderrors.Is(err, qerrors.ErrRotationFailed) {
		t.Error("RotationError does not unwrap to ErrRotationFailed")
	}

	var re *qerrors.RotationError
	if !stderrors.As(err, &re) {
		t.Fatal("As did not recover the RotationError")
	}
	if re.KeyID != id || re.Generation != 4 || re.Attempts != 5 {
		t.Errorf("Context fields: got %s/%d/%d", re.KeyID, re.Generation, re.Attempts)
	}
}

func TestKeyRefError(t *testing.T) {
	id := uuid.New()
	err := qerrors.NewKeyRefError(id, 2, qerrors.ErrDanglingWrap)

	if !stderrors.Is(err, qerrors.ErrDanglingWrap) {
		t.Error("KeyRefError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), id.String()) {
		t.Errorf("Message missing key id: %q", err.Error())
	}
}

func TestSentinelsDistinct(t *testing.T) {
	sentinels := []error{
		qerrors.ErrInvalidConfiguration,
		qerrors.ErrNoDerivationInput,
		qerrors.ErrProvenanceMismatch,
		qerrors.ErrPrimitiveFailure,
		qerrors.ErrAuthenticationFailed,
		qerrors.ErrProviderClosed,
		qerrors.ErrProviderUnavailable,
		qerrors.ErrInvalidKeySize,
		qerrors.ErrInvalidCiphertext,
		qerrors.ErrUnsupportedCipherSuite,
		qerrors.ErrKeyNotFound,
		qerrors.ErrDanglingWrap,
		qerrors.ErrRotationConflict,
		qerrors.ErrRotationFailed,
		qerrors.ErrWrongState,
		qerrors.ErrRootExists,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && stderrors.Is(a, b) {
				t.Errorf("Sentinels %d and %d are not distinct", i, j)
			}
		}
	}
}
