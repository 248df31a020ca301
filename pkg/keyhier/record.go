// Package keyhier manages the root/KEK/DEK key hierarchy with crypto-agile
// rotation.
//
// The hierarchy is a directed acyclic graph addressed by (id, generation):
// an arena of immutable KeyRecords in which "mutation" is appending a new
// generation, never editing history in place. KEKs are wrapped under the
// root via the primitive provider's KEM; DEKs are wrapped under a KEK via
// AEAD. Rotation re-wraps key material only — bulk payload ciphertext
// encrypted under a DEK is never touched, so algorithm and parameter changes
// cost metadata, not data.
package keyhier

import (
	"time"

	"github.com/google/uuid"
)

// Role places a key in the hierarchy.
type Role uint8

const (
	// RoleRoot is the hierarchy root. Exactly one root id is Active at a time.
	RoleRoot Role = iota

	// RoleKEK is a key-encryption key, wrapped under the root.
	RoleKEK

	// RoleDEK is a data-encryption key, wrapped under a KEK, scoped to a
	// shard or time window and intended for aggressive independent rotation.
	RoleDEK
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleKEK:
		return "kek"
	case RoleDEK:
		return "dek"
	default:
		return "unknown"
	}
}

// State is a key generation's lifecycle state.
type State uint8

const (
	// StateActive generations are valid for new wraps and unwraps.
	StateActive State = iota

	// StateRotating generations remain valid for unwraps but not for new
	// wraps; they retire once the grace period elapses. A current generation
	// in this state is awaiting a forced rotation.
	StateRotating

	// StateRetired is terminal. Retired generations are kept for audit until
	// an explicit purge.
	StateRetired

	// StateCompromised marks a known-bad generation. Its dependents are
	// moved to StateRotating in the same logical operation.
	StateCompromised
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotating:
		return "rotating"
	case StateRetired:
		return "retired"
	case StateCompromised:
		return "compromised"
	default:
		return "unknown"
	}
}

// KeyRef addresses one generation of one key. Generation 0 in a lookup
// means "current generation".
type KeyRef struct {
	ID         uuid.UUID
	Generation uint64
}

// KeyRecord is one immutable generation of a key. Key material itself lives
// inside the manager and never appears on a record; WrapCiphertext is the
// wrapped (encrypted) form only.
type KeyRecord struct {
	ID           uuid.UUID
	Role         Role
	AlgorithmTag string

	// Generation is strictly increasing per id, starting at 1, never reused.
	Generation uint64

	State State

	// WrappedUnder references the wrapping ancestor generation. Nil for
	// roots.
	WrappedUnder *KeyRef

	// LegacyWrap flags a legacy-compatibility wrapping that does not resolve
	// to the current hierarchy root.
	LegacyWrap bool

	// WrapCiphertext is the wrapped key material: a KEM ciphertext for KEKs,
	// an AEAD ciphertext for DEKs.
	WrapCiphertext []byte

	// Scope is the shard or time window a DEK covers. Empty for other roles.
	Scope string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Ref returns the record's (id, generation) address.
func (r *KeyRecord) Ref() KeyRef {
	return KeyRef{ID: r.ID, Generation: r.Generation}
}

// Clone returns an independent copy of the record.
func (r *KeyRecord) Clone() *KeyRecord {
	c := *r
	if r.WrappedUnder != nil {
		ref := *r.WrappedUnder
		c.WrappedUnder = &ref
	}
	c.WrapCiphertext = append([]byte(nil), r.WrapCiphertext...)
	return &c
}

// RewrapPolicy controls how dependent KEKs follow a root rotation.
type RewrapPolicy uint8

const (
	// RewrapOnRotate re-wraps every dependent KEK within the root rotation
	// (time-based policy).
	RewrapOnRotate RewrapPolicy = iota

	// RewrapOnDemand leaves KEKs wrapped under the prior (Rotating) root
	// generation until RewrapKEK is called for each.
	RewrapOnDemand
)

// String returns a human-readable policy name.
func (p RewrapPolicy) String() string {
	if p == RewrapOnDemand {
		return "on-demand"
	}
	return "time-based"
}
