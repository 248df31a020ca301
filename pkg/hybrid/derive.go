// Package hybrid combines classical, post-quantum and QKD-derived secrets
// into session keys.
//
// The combination is a single extract-and-expand step over SHAKE-256 with the
// inputs in a fixed canonical order (classical, then post-quantum, then QKD)
// so any party holding the same secrets derives the same key. A missing
// input contributes zero length; it is never substituted with a placeholder,
// and the length-prefixed KDF encoding keeps "absent" distinct from every
// present value. The derived key remains secure as long as ANY contributing
// secret is secure.
package hybrid

import (
	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
)

// SessionKey is a fixed-length symmetric key with a derivation-input
// manifest recording which provenances contributed, for audit.
type SessionKey struct {
	Key      [constants.SessionKeySize]byte
	Manifest []crypto.Provenance
}

// Bytes returns the key material. The caller must not retain the slice past
// the key's lifetime.
func (k *SessionKey) Bytes() []byte {
	return k.Key[:]
}

// Has reports whether the given provenance contributed to this key.
func (k *SessionKey) Has(p crypto.Provenance) bool {
	for _, m := range k.Manifest {
		if m == p {
			return true
		}
	}
	return false
}

// Zeroize overwrites the key material.
func (k *SessionKey) Zeroize() {
	for i := range k.Key {
		k.Key[i] = 0
	}
}

// Deriver derives session keys. The zero value is usable; options attach
// observability.
type Deriver struct {
	collector *metrics.Collector
}

// DeriverOption configures a Deriver.
type DeriverOption func(*Deriver)

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) DeriverOption {
	return func(d *Deriver) { d.collector = c }
}

// NewDeriver creates a Deriver.
func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// QKDSecret tags raw bits distilled from an accepted BB84 sifted key as a
// QKD-provenance shared secret.
func QKDSecret(raw []byte) *crypto.SharedSecret {
	return crypto.NewSharedSecret(crypto.ProvenanceQKD, raw)
}

// Derive combines up to three shared secrets and a context string into a
// 32-byte session key.
//
// At least one secret must be present; each must carry the provenance of its
// slot. Identical ordered inputs and context always yield the same key, and
// any single-bit change to any input changes the output unpredictably. The
// deriver never persists or logs secret material.
func (d *Deriver) Derive(classical, postQuantum, qkdSecret *crypto.SharedSecret, context []byte) (*SessionKey, error) {
	if classical == nil && postQuantum == nil && qkdSecret == nil {
		return nil, qerrors.ErrNoDerivationInput
	}

	if err := checkSlot(classical, crypto.ProvenanceClassical); err != nil {
		return nil, err
	}
	if err := checkSlot(postQuantum, crypto.ProvenancePostQuantum); err != nil {
		return nil, err
	}
	if err := checkSlot(qkdSecret, crypto.ProvenanceQKD); err != nil {
		return nil, err
	}

	// Canonical order. Absent slots contribute zero-length inputs.
	inputs := [][]byte{
		slotBytes(classical),
		slotBytes(postQuantum),
		slotBytes(qkdSecret),
		context,
	}

	material, err := crypto.DeriveKeyMultiple(constants.DomainSeparatorHybrid, inputs, constants.SessionKeySize)
	if err != nil {
		return nil, err
	}

	key := &SessionKey{}
	copy(key.Key[:], material)
	crypto.Zeroize(material)

	for _, s := range []*crypto.SharedSecret{classical, postQuantum, qkdSecret} {
		if s != nil {
			key.Manifest = append(key.Manifest, s.Provenance)
		}
	}

	if d.collector != nil {
		d.collector.RecordSessionKey()
	}
	return key, nil
}

func checkSlot(s *crypto.SharedSecret, want crypto.Provenance) error {
	if s == nil {
		return nil
	}
	if s.Provenance != want {
		return qerrors.ErrProvenanceMismatch
	}
	return nil
}

func slotBytes(s *crypto.SharedSecret) []byte {
	if s == nil {
		return nil
	}
	return s.Bytes
}
