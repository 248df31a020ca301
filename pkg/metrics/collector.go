package metrics

import (
	"sync/atomic"
	"time"
)

// Collector aggregates counters for QKD runs and key-hierarchy operations.
// All methods are safe for concurrent use. There is no package-level default
// collector; callers own the lifecycle and thread the handle explicitly.
type Collector struct {
	qkdRuns      atomic.Uint64
	siftedBits   atomic.Uint64
	qberAccepted atomic.Uint64
	qberRejected atomic.Uint64

	sessionKeys atomic.Uint64

	rootsCreated atomic.Uint64
	keksIssued   atomic.Uint64
	deksIssued   atomic.Uint64

	rotationsStarted   atomic.Uint64
	rotationsCompleted atomic.Uint64
	rotationsFailed    atomic.Uint64
	rotationConflicts  atomic.Uint64

	compromisesMarked   atomic.Uint64
	cascadedDependents  atomic.Uint64
	providerFallbacks   atomic.Uint64
	authFailures        atomic.Uint64
	generationsRetired  atomic.Uint64
	generationsPurged   atomic.Uint64
	startedAt           time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

// RecordQKDRun records a completed BB84 run and its sifted key length.
func (c *Collector) RecordQKDRun(siftedBits int) {
	c.qkdRuns.Add(1)
	c.siftedBits.Add(uint64(siftedBits))
}

// RecordQBERVerdict records an accept/reject verdict.
func (c *Collector) RecordQBERVerdict(accepted bool) {
	if accepted {
		c.qberAccepted.Add(1)
	} else {
		c.qberRejected.Add(1)
	}
}

// RecordSessionKey records a derived session key.
func (c *Collector) RecordSessionKey() { c.sessionKeys.Add(1) }

// RecordRootCreated records a new root key.
func (c *Collector) RecordRootCreated() { c.rootsCreated.Add(1) }

// RecordKEKIssued records a new KEK.
func (c *Collector) RecordKEKIssued() { c.keksIssued.Add(1) }

// RecordDEKIssued records a new DEK.
func (c *Collector) RecordDEKIssued() { c.deksIssued.Add(1) }

// RecordRotationStarted records a rotation attempt beginning.
func (c *Collector) RecordRotationStarted() { c.rotationsStarted.Add(1) }

// RecordRotationCompleted records a successful rotation.
func (c *Collector) RecordRotationCompleted() { c.rotationsCompleted.Add(1) }

// RecordRotationFailed records a rotation that exhausted its retries.
func (c *Collector) RecordRotationFailed() { c.rotationsFailed.Add(1) }

// RecordRotationConflict records a single generation-increment collision.
func (c *Collector) RecordRotationConflict() { c.rotationConflicts.Add(1) }

// RecordCompromise records a compromise flag and how many dependents it
// cascaded to.
func (c *Collector) RecordCompromise(cascaded int) {
	c.compromisesMarked.Add(1)
	c.cascadedDependents.Add(uint64(cascaded))
}

// RecordProviderFallback records the provider chain serving from its
// fallback stage.
func (c *Collector) RecordProviderFallback() { c.providerFallbacks.Add(1) }

// RecordAuthFailure records an AEAD authentication failure.
func (c *Collector) RecordAuthFailure() { c.authFailures.Add(1) }

// RecordRetired records generations moved to Retired.
func (c *Collector) RecordRetired(n int) { c.generationsRetired.Add(uint64(n)) }

// RecordPurged records retired generations removed by an explicit purge.
func (c *Collector) RecordPurged(n int) { c.generationsPurged.Add(uint64(n)) }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	QKDRuns      uint64 `json:"qkd_runs"`
	SiftedBits   uint64 `json:"sifted_bits"`
	QBERAccepted uint64 `json:"qber_accepted"`
	QBERRejected uint64 `json:"qber_rejected"`

	SessionKeys uint64 `json:"session_keys"`

	RootsCreated uint64 `json:"roots_created"`
	KEKsIssued   uint64 `json:"keks_issued"`
	DEKsIssued   uint64 `json:"deks_issued"`

	RotationsStarted   uint64 `json:"rotations_started"`
	RotationsCompleted uint64 `json:"rotations_completed"`
	RotationsFailed    uint64 `json:"rotations_failed"`
	RotationConflicts  uint64 `json:"rotation_conflicts"`

	CompromisesMarked  uint64 `json:"compromises_marked"`
	CascadedDependents uint64 `json:"cascaded_dependents"`
	ProviderFallbacks  uint64 `json:"provider_fallbacks"`
	AuthFailures       uint64 `json:"auth_failures"`
	GenerationsRetired uint64 `json:"generations_retired"`
	GenerationsPurged  uint64 `json:"generations_purged"`

	Uptime time.Duration `json:"uptime"`
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		QKDRuns:            c.qkdRuns.Load(),
		SiftedBits:         c.siftedBits.Load(),
		QBERAccepted:       c.qberAccepted.Load(),
		QBERRejected:       c.qberRejected.Load(),
		SessionKeys:        c.sessionKeys.Load(),
		RootsCreated:       c.rootsCreated.Load(),
		KEKsIssued:         c.keksIssued.Load(),
		DEKsIssued:         c.deksIssued.Load(),
		RotationsStarted:   c.rotationsStarted.Load(),
		RotationsCompleted: c.rotationsCompleted.Load(),
		RotationsFailed:    c.rotationsFailed.Load(),
		RotationConflicts:  c.rotationConflicts.Load(),
		CompromisesMarked:  c.compromisesMarked.Load(),
		CascadedDependents: c.cascadedDependents.Load(),
		ProviderFallbacks:  c.providerFallbacks.Load(),
		AuthFailures:       c.authFailures.Load(),
		GenerationsRetired: c.generationsRetired.Load(),
		GenerationsPurged:  c.generationsPurged.Load(),
		Uptime:             time.Since(c.startedAt),
	}
}

// Reset zeroes all counters.
func (c *Collector) Reset() {
	c.qkdRuns.Store(0)
	c.siftedBits.Store(0)
	c.qberAccepted.Store(0)
	c.qberRejected.Store(0)
	c.sessionKeys.Store(0)
	c.rootsCreated.Store(0)
	c.keksIssued.Store(0)
	c.deksIssued.Store(0)
	c.rotationsStarted.Store(0)
	c.rotationsCompleted.Store(0)
	c.rotationsFailed.Store(0)
	c.rotationConflicts.Store(0)
	c.compromisesMarked.Store(0)
	c.cascadedDependents.Store(0)
	c.providerFallbacks.Store(0)
	c.authFailures.Store(0)
	c.generationsRetired.Store(0)
	c.generationsPurged.Store(0)
	c.startedAt = time.Now()
}
