// Package qkd simulates BB84 quantum key distribution.
//
// No quantum state is modeled. The simulator reproduces the classical
// statistics BB84 produces: a receiver measuring in the sender's basis reads
// the bit exactly, a receiver measuring in the wrong basis reads a fair coin,
// and an intercept-resend eavesdropper disturbs one quarter of the sifted
// positions in expectation. Those statistics are all that the downstream
// QBER decision rule consumes.
//
// Every run owns its own seeded generator: identical (parameters, seed)
// reproduce identical transcripts, and concurrent runs with disjoint seeds
// share no state. Reusing a seed across concurrent sessions is a caller bug.
package qkd

import (
	"context"
	"math/rand/v2"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
)

// Basis is a BB84 measurement basis.
type Basis uint8

const (
	// Rectilinear is the Z (computational) basis.
	Rectilinear Basis = iota

	// Diagonal is the X (Hadamard) basis.
	Diagonal
)

// String returns a human-readable basis name.
func (b Basis) String() string {
	if b == Rectilinear {
		return "rectilinear"
	}
	return "diagonal"
}

// Bit is a single key bit, 0 or 1.
type Bit = uint8

// QubitEvent is one prepared qubit: a bit encoded in a basis. Immutable once
// created.
type QubitEvent struct {
	Bit   Bit
	Basis Basis
}

// SiftedKey is the ordered bit sequence retained at positions where sender
// and receiver basis choices matched.
type SiftedKey []Bit

// Result holds the outcome of one BB84 run. The sender and receiver sifted
// keys are parallel sequences; absent eavesdropping they are bit-identical.
type Result struct {
	Sender       SiftedKey
	Receiver     SiftedKey
	QubitCount   int
	Eavesdropped bool
	Seed         uint64
}

// SiftedLength returns the number of retained positions.
func (r *Result) SiftedLength() int { return len(r.Sender) }

// Simulator runs BB84 channel simulations. The zero value is usable; options
// attach observability.
type Simulator struct {
	tracer    metrics.Tracer
	collector *metrics.Collector
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithTracer attaches a tracer; each run becomes one span.
func WithTracer(t metrics.Tracer) SimulatorOption {
	return func(s *Simulator) { s.tracer = t }
}

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) SimulatorOption {
	return func(s *Simulator) { s.collector = c }
}

// NewSimulator creates a Simulator.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{tracer: metrics.NoOpTracer{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newRunRNG builds the per-run generator. The seed is split so that seed 0
// still yields a well-mixed PCG state.
func newRunRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Run simulates one BB84 exchange of qubitCount qubits.
//
// Per event the sender draws a uniform bit and basis. Without an
// eavesdropper the receiver draws an independent basis and measures: same
// basis reads the sender's bit exactly, different basis reads a fair coin.
// With an eavesdropper, intercept-resend is applied first: the eavesdropper
// measures against the sender's basis under the same rule and resends the
// qubit prepared in its own basis, and the receiver then measures the resent
// qubit against the eavesdropper's basis. Sifting retains positions where
// sender and receiver bases match.
//
// The run checks ctx between fixed-size segments, so large batch runs can be
// cancelled cooperatively; a cancelled run returns the context's error.
func (s *Simulator) Run(ctx context.Context, qubitCount int, eavesdropper bool, seed uint64) (*Result, error) {
	if qubitCount <= 0 {
		return nil, qerrors.NewConfigError("qubit_count", "must be positive")
	}

	ctx, end := s.span(ctx, qubitCount, eavesdropper)
	result, err := s.run(ctx, qubitCount, eavesdropper, seed)
	end(err)

	if s.collector != nil && err == nil {
		s.collector.RecordQKDRun(result.SiftedLength())
	}
	return result, err
}

func (s *Simulator) span(ctx context.Context, qubitCount int, eavesdropper bool) (context.Context, metrics.SpanEnder) {
	if s.tracer == nil {
		return ctx, func(error) {}
	}
	return s.tracer.StartSpan(ctx, "qkd.bb84.run", metrics.WithAttributes(map[string]interface{}{
		"qubit_count":  qubitCount,
		"eavesdropper": eavesdropper,
	}))
}

func (s *Simulator) run(ctx context.Context, qubitCount int, eavesdropper bool, seed uint64) (*Result, error) {
	rng := newRunRNG(seed)

	// Average sifted length is qubitCount/2 under uniform basis choice.
	sender := make(SiftedKey, 0, qubitCount/2+16)
	receiver := make(SiftedKey, 0, qubitCount/2+16)

	for done := 0; done < qubitCount; {
		segment := constants.QKDSegmentSize
		if remaining := qubitCount - done; remaining < segment {
			segment = remaining
		}

		for i := 0; i < segment; i++ {
			event := QubitEvent{
				Bit:   Bit(rng.Uint64() & 1),
				Basis: Basis(rng.Uint64() & 1),
			}

			// The qubit arriving at the receiver: either the sender's
			// original, or the eavesdropper's resent preparation.
			wire := event
			if eavesdropper {
				eveBasis := Basis(rng.Uint64() & 1)
				wire = QubitEvent{Bit: measure(rng, event, eveBasis), Basis: eveBasis}
			}

			receiverBasis := Basis(rng.Uint64() & 1)
			outcome := measure(rng, wire, receiverBasis)

			if receiverBasis == event.Basis {
				sender = append(sender, event.Bit)
				receiver = append(receiver, outcome)
			}
		}

		done += segment
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return &Result{
		Sender:       sender,
		Receiver:     receiver,
		QubitCount:   qubitCount,
		Eavesdropped: eavesdropper,
		Seed:         seed,
	}, nil
}

// measure reads a qubit in the given basis: the prepared bit when the bases
// agree, a fair coin when they differ.
func measure(rng *rand.Rand, q QubitEvent, basis Basis) Bit {
	if basis == q.Basis {
		return q.Bit
	}
	return Bit(rng.Uint64() & 1)
}
