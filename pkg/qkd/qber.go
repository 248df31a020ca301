// qber.go implements quantum bit error rate estimation and the
// accept/reject decision rule for a candidate sifted key.
//
// A random subset of sifted positions is sacrificed for error estimation.
// Publishing those bits for comparison destroys their secrecy, so the
// accepted key excludes every sampled position; this is a fundamental BB84
// rule and is enforced here, not left to the caller.
package qkd

import (
	"math/rand/v2"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// Verdict is the QBER accept/reject decision.
type Verdict uint8

const (
	// Rejected means the candidate key must not be used.
	Rejected Verdict = iota

	// Accepted means the sampled QBER is within the security threshold.
	Accepted
)

// String returns a human-readable verdict name.
func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Reason explains a QBER verdict.
type Reason string

const (
	// ReasonWithinThreshold accompanies an accepted key.
	ReasonWithinThreshold Reason = "qber within threshold"

	// ReasonThresholdExceeded marks likely eavesdropping or channel noise.
	ReasonThresholdExceeded Reason = "qber exceeds threshold"

	// ReasonInsufficientSample marks a sample too small to estimate from.
	ReasonInsufficientSample Reason = "insufficient sample"
)

// QBERReport is the outcome of one error estimation. Produced once per
// simulation run; immutable.
type QBERReport struct {
	SiftedLength  int
	SampleSize    int
	MismatchCount int
	QBER          float64
	Threshold     float64
	Verdict       Verdict
	Reason        Reason
}

// Evaluator renders QBER verdicts. The zero value is not valid; use
// NewEvaluator for defaults.
type Evaluator struct {
	// SampleFraction of the sifted key to sacrifice for estimation, in (0,1].
	SampleFraction float64

	// Threshold is the maximum acceptable QBER, in [0,1].
	Threshold float64
}

// NewEvaluator returns an Evaluator with the conventional defaults: a 10%
// sample and the 11% BB84 security bound.
func NewEvaluator() Evaluator {
	return Evaluator{
		SampleFraction: constants.DefaultQBERSampleFraction,
		Threshold:      constants.DefaultQBERThreshold,
	}
}

// Evaluate samples a random disjoint subset of the sifted key, estimates the
// error rate, and renders a verdict.
//
// The returned key is the sender-side sifted key with every sampled position
// removed; it is nil whenever the verdict is Rejected. Rejection is an
// expected statistical outcome, not an error; the error return covers only
// invalid parameters.
//
// The sample is drawn from a generator seeded by the caller, so evaluation
// is reproducible alongside the simulation run that produced the keys.
func (e Evaluator) Evaluate(sender, receiver SiftedKey, seed uint64) (*QBERReport, SiftedKey, error) {
	if e.SampleFraction <= 0 || e.SampleFraction > 1 {
		return nil, nil, qerrors.NewConfigError("qber_sample_fraction", "must be in (0,1]")
	}
	if e.Threshold < 0 || e.Threshold > 1 {
		return nil, nil, qerrors.NewConfigError("qber_threshold", "must be in [0,1]")
	}
	if len(sender) != len(receiver) {
		return nil, nil, qerrors.NewConfigError("sifted_keys", "sender and receiver lengths differ")
	}

	n := len(sender)
	sampleSize := int(e.SampleFraction * float64(n))

	report := &QBERReport{
		SiftedLength: n,
		SampleSize:   sampleSize,
		Threshold:    e.Threshold,
	}

	// A zero-size sample cannot estimate anything; reject explicitly rather
	// than divide by zero.
	if sampleSize == 0 {
		report.Verdict = Rejected
		report.Reason = ReasonInsufficientSample
		return report, nil, nil
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc908))
	sampled := make([]bool, n)
	for _, idx := range rng.Perm(n)[:sampleSize] {
		sampled[idx] = true
	}

	mismatches := 0
	for i := 0; i < n; i++ {
		if sampled[i] && sender[i] != receiver[i] {
			mismatches++
		}
	}

	report.MismatchCount = mismatches
	report.QBER = float64(mismatches) / float64(sampleSize)

	if report.QBER > e.Threshold {
		report.Verdict = Rejected
		report.Reason = ReasonThresholdExceeded
		return report, nil, nil
	}

	report.Verdict = Accepted
	report.Reason = ReasonWithinThreshold

	accepted := make(SiftedKey, 0, n-sampleSize)
	for i := 0; i < n; i++ {
		if !sampled[i] {
			accepted = append(accepted, sender[i])
		}
	}
	return report, accepted, nil
}

// Bytes packs a sifted key into bytes, 8 bits per byte MSB-first, for use as
// derivation input. Trailing bits in a partial final byte are zero-padded.
func (k SiftedKey) Bytes() []byte {
	out := make([]byte, (len(k)+7)/8)
	for i, bit := range k {
		if bit != 0 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}
