package config_test

import (
	"testing"
	"time"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.QubitCount != constants.DefaultQubitCount {
		t.Errorf("Qubit count: got %d, want %d", cfg.QubitCount, constants.DefaultQubitCount)
	}
	if cfg.QBERThreshold != constants.DefaultQBERThreshold {
		t.Errorf("Threshold: got %f, want %f", cfg.QBERThreshold, constants.DefaultQBERThreshold)
	}
}

func TestParseAppliesDefaultsToOmittedFields(t *testing.T) {
	cfg, err := config.Parse([]byte("qubit_count: 4096\nseed: 99\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.QubitCount != 4096 || cfg.Seed != 99 {
		t.Errorf("Explicit fields: got %d/%d, want 4096/99", cfg.QubitCount, cfg.Seed)
	}
	if cfg.QBERSampleFraction != constants.DefaultQBERSampleFraction {
		t.Errorf("Omitted field did not default: got %f", cfg.QBERSampleFraction)
	}
	if cfg.RotationInterval.Std() != constants.DefaultRotationInterval {
		t.Errorf("Omitted duration did not default: got %v", cfg.RotationInterval)
	}
}

func TestParseRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"NegativeQubits", "qubit_count: -1\n"},
		{"ZeroSampleFraction", "qber_sample_fraction: 0\n"},
		{"SampleFractionAboveOne", "qber_sample_fraction: 1.5\n"},
		{"NegativeThreshold", "qber_threshold: -0.5\n"},
		{"ThresholdAboveOne", "qber_threshold: 2\n"},
		{"UnknownBackend", "provider_backend: quantum\n"},
		{"UnknownSuite", "cipher_suite: des\n"},
		{"ZeroRotationInterval", "rotation_interval: 0s\n"},
		{"NegativeGrace", "grace_period: -1h\n"},
		{"UnknownPolicy", "kek_rewrap_policy: eager\n"},
		{"ZeroAttempts", "max_rotation_attempts: 0\n"},
		{"UnknownLogLevel", "log_level: verbose\n"},
		{"UnknownField", "qubits: 1024\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml))
			if !qerrors.Is(err, qerrors.ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestParseFullConfig(t *testing.T) {
	yaml := `qubit_count: 8192
eavesdropper_present: true
qber_sample_fraction: 0.2
qber_threshold: 0.08
seed: 7
provider_backend: stub
cipher_suite: chacha20-poly1305
rotation_interval: 12h
grace_period: 30m
kek_rewrap_policy: on-demand
max_rotation_attempts: 3
log_level: debug
`
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !cfg.EavesdropperPresent {
		t.Error("Eavesdropper flag not parsed")
	}
	if cfg.RotationInterval.Std() != 12*time.Hour || cfg.GracePeriod.Std() != 30*time.Minute {
		t.Errorf("Durations: got %v/%v", cfg.RotationInterval, cfg.GracePeriod)
	}

	suite, err := cfg.Suite()
	if err != nil {
		t.Fatalf("Suite failed: %v", err)
	}
	if suite != constants.CipherSuiteChaCha20Poly1305 {
		t.Errorf("Suite: got %s, want ChaCha20-Poly1305", suite)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("does-not-exist.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}
