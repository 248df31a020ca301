// Package config loads and validates simulation configuration from YAML.
//
// Validation is fail-fast: an out-of-range value is an error at load time,
// never silently replaced with a default. Defaults apply only to fields the
// file omits entirely.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
)

// Duration unmarshals from YAML strings like "30m" or "12h".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of a simulation run.
type Config struct {
	// QubitCount is the number of qubits per BB84 run.
	QubitCount int `yaml:"qubit_count"`

	// EavesdropperPresent enables the intercept-resend adversary.
	EavesdropperPresent bool `yaml:"eavesdropper_present"`

	// QBERSampleFraction is the fraction of sifted bits sacrificed to error
	// estimation, in (0, 1].
	QBERSampleFraction float64 `yaml:"qber_sample_fraction"`

	// QBERThreshold is the error rate above which a run is rejected, in
	// [0, 1].
	QBERThreshold float64 `yaml:"qber_threshold"`

	// Seed drives all simulation randomness. Equal seeds reproduce runs
	// bit for bit.
	Seed uint64 `yaml:"seed"`

	// ProviderBackend selects the primitive provider: "stub", "native" or
	// "auto".
	ProviderBackend string `yaml:"provider_backend"`

	// CipherSuite names the AEAD used for DEK wrapping: "aes-256-gcm" or
	// "chacha20-poly1305".
	CipherSuite string `yaml:"cipher_suite"`

	// RotationInterval is the DEK lifetime.
	RotationInterval Duration `yaml:"rotation_interval"`

	// GracePeriod is how long superseded generations keep serving unwraps.
	GracePeriod Duration `yaml:"grace_period"`

	// KEKRewrapPolicy selects how KEKs follow a root rotation. "time-based"
	// re-wraps dependents inside the rotation that supersedes their wrapping
	// generation; "on-demand" defers each re-wrap until RewrapKEK is called.
	KEKRewrapPolicy string `yaml:"kek_rewrap_policy"`

	// MaxRotationAttempts bounds optimistic-concurrency retries.
	MaxRotationAttempts int `yaml:"max_rotation_attempts"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		QubitCount:          constants.DefaultQubitCount,
		QBERSampleFraction:  constants.DefaultQBERSampleFraction,
		QBERThreshold:       constants.DefaultQBERThreshold,
		Seed:                1,
		ProviderBackend:     string(crypto.BackendAuto),
		CipherSuite:         "aes-256-gcm",
		RotationInterval:    Duration(constants.DefaultRotationInterval),
		GracePeriod:         Duration(constants.DefaultGracePeriod),
		KEKRewrapPolicy:     "time-based",
		MaxRotationAttempts: constants.MaxRotationAttempts,
		LogLevel:            "info",
	}
}

// Load reads, parses and validates a YAML config file. Omitted fields take
// their defaults before validation runs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, qerrors.NewConfigError("yaml", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field's range. The first violation is returned.
func (c *Config) Validate() error {
	if c.QubitCount <= 0 {
		return qerrors.NewConfigError("qubit_count", "must be positive")
	}
	if c.QBERSampleFraction <= 0 || c.QBERSampleFraction > 1 {
		return qerrors.NewConfigError("qber_sample_fraction", "must be in (0, 1]")
	}
	if c.QBERThreshold < 0 || c.QBERThreshold > 1 {
		return qerrors.NewConfigError("qber_threshold", "must be in [0, 1]")
	}
	switch crypto.Backend(c.ProviderBackend) {
	case crypto.BackendStub, crypto.BackendNative, crypto.BackendAuto:
	default:
		return qerrors.NewConfigError("provider_backend", "must be stub, native or auto")
	}
	if _, err := c.Suite(); err != nil {
		return err
	}
	if c.RotationInterval <= 0 {
		return qerrors.NewConfigError("rotation_interval", "must be positive")
	}
	if c.GracePeriod < 0 {
		return qerrors.NewConfigError("grace_period", "must not be negative")
	}
	switch c.KEKRewrapPolicy {
	case "time-based", "on-demand":
	default:
		return qerrors.NewConfigError("kek_rewrap_policy", "must be time-based or on-demand")
	}
	if c.MaxRotationAttempts < 1 {
		return qerrors.NewConfigError("max_rotation_attempts", "must be at least 1")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return qerrors.NewConfigError("log_level", "must be debug, info, warn or error")
	}
	return nil
}

// Suite resolves the configured AEAD cipher suite.
func (c *Config) Suite() (constants.CipherSuite, error) {
	switch c.CipherSuite {
	case "aes-256-gcm":
		return constants.CipherSuiteAES256GCM, nil
	case "chacha20-poly1305":
		return constants.CipherSuiteChaCha20Poly1305, nil
	default:
		return 0, qerrors.NewConfigError("cipher_suite", "must be aes-256-gcm or chacha20-poly1305")
	}
}
