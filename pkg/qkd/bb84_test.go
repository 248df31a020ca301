package qkd_test

import (
	"context"
	"math"
	"sync"
	"testing"

	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/qkd"
)

func TestRunRejectsInvalidQubitCount(t *testing.T) {
	sim := qkd.NewSimulator()

	for _, count := range []int{0, -1, -1024} {
		_, err := sim.Run(context.Background(), count, false, 1)
		if err == nil {
			t.Errorf("qubit count %d: expected error, got nil", count)
		}
		if !qerrors.Is(err, qerrors.ErrInvalidConfiguration) {
			t.Errorf("qubit count %d: expected ErrInvalidConfiguration, got %v", count, err)
		}
	}
}

func TestRunDeterministicPerSeed(t *testing.T) {
	sim := qkd.NewSimulator()
	ctx := context.Background()

	a, err := sim.Run(ctx, 2048, true, 42)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := sim.Run(ctx, 2048, true, 42)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(a.Sender) != len(b.Sender) {
		t.Fatalf("Sifted lengths differ: %d vs %d", len(a.Sender), len(b.Sender))
	}
	for i := range a.Sender {
		if a.Sender[i] != b.Sender[i] || a.Receiver[i] != b.Receiver[i] {
			t.Fatalf("Transcripts diverge at position %d", i)
		}
	}

	c, err := sim.Run(ctx, 2048, true, 43)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(c.Sender) == len(a.Sender) {
		same := true
		for i := range c.Sender {
			if c.Sender[i] != a.Sender[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("Different seeds produced identical transcripts")
		}
	}
}

func TestHonestRunSiftedKeysIdentical(t *testing.T) {
	sim := qkd.NewSimulator()

	result, err := sim.Run(context.Background(), 4096, false, 7)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Sender) != len(result.Receiver) {
		t.Fatalf("Sifted key lengths differ: %d vs %d", len(result.Sender), len(result.Receiver))
	}
	for i := range result.Sender {
		if result.Sender[i] != result.Receiver[i] {
			t.Fatalf("Honest channel mismatch at sifted position %d", i)
		}
	}
}

func TestSiftedLengthStatistics(t *testing.T) {
	sim := qkd.NewSimulator()
	ctx := context.Background()

	// Basis choices are uniform, so sifting keeps half the positions in
	// expectation. Over many runs the mean fraction should sit close to 0.5.
	const runs = 50
	const qubits = 2000

	total := 0
	for seed := uint64(1); seed <= runs; seed++ {
		result, err := sim.Run(ctx, qubits, false, seed)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.SiftedLength() > qubits {
			t.Fatalf("Sifted length %d exceeds qubit count %d", result.SiftedLength(), qubits)
		}
		total += result.SiftedLength()
	}

	mean := float64(total) / (runs * qubits)
	if math.Abs(mean-0.5) > 0.02 {
		t.Errorf("Mean sifted fraction: got %.4f, want ~0.5", mean)
	}
}

func TestEavesdropperDisturbance(t *testing.T) {
	sim := qkd.NewSimulator()
	ctx := context.Background()

	// Intercept-resend disturbs 1/4 of sifted positions in expectation.
	const runs = 20
	const qubits = 4000

	mismatches, sifted := 0, 0
	for seed := uint64(1); seed <= runs; seed++ {
		result, err := sim.Run(ctx, qubits, true, seed)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		for i := range result.Sender {
			if result.Sender[i] != result.Receiver[i] {
				mismatches++
			}
		}
		sifted += result.SiftedLength()
	}

	rate := float64(mismatches) / float64(sifted)
	if rate < 0.22 || rate > 0.28 {
		t.Errorf("Eavesdropper disturbance rate: got %.4f, want ~0.25", rate)
	}
}

func TestRunCancellation(t *testing.T) {
	sim := qkd.NewSimulator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, 1_000_000, false, 1)
	if err == nil {
		t.Fatal("Expected cancellation error, got nil")
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestConcurrentRunsIndependent(t *testing.T) {
	sim := qkd.NewSimulator()
	ctx := context.Background()

	reference, err := sim.Run(ctx, 1024, false, 99)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var wg sync.WaitGroup
	diverged := make(chan string, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sim.Run(ctx, 1024, false, 99)
			if err != nil {
				diverged <- err.Error()
				return
			}
			if len(result.Sender) != len(reference.Sender) {
				diverged <- "sifted length mismatch"
				return
			}
			for i := range result.Sender {
				if result.Sender[i] != reference.Sender[i] {
					diverged <- "sifted bits mismatch"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(diverged)

	for msg := range diverged {
		t.Fatalf("Concurrent runs with equal seeds diverged: %s", msg)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	sim := qkd.NewSimulator(qkd.WithCollector(collector))

	result, err := sim.Run(context.Background(), 1024, false, 5)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := collector.Snapshot()
	if snap.QKDRuns != 1 {
		t.Errorf("QKD runs: got %d, want 1", snap.QKDRuns)
	}
	if snap.SiftedBits != uint64(result.SiftedLength()) {
		t.Errorf("Sifted bits: got %d, want %d", snap.SiftedBits, result.SiftedLength())
	}
}
