package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/hybrid"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/keyhier"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/qkd"
)

func runBench(qkdRuns, qubits, primitives, rotations int, backend string) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Safe Simulator Benchmark                     ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if qkdRuns == 0 && primitives == 0 && rotations == 0 {
		fmt.Println("No benchmarks specified. Use --qkd-runs, --primitives or --rotations")
		fmt.Println("Run 'qsafe-sim bench --help' for usage")
		os.Exit(1)
	}

	provider, err := crypto.OpenProvider(crypto.Backend(backend), crypto.ProviderOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening provider: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = provider.Close() }()
	fmt.Printf("Provider backend: %s\n\n", provider.Name())

	if qkdRuns > 0 {
		benchQKD(qkdRuns, qubits)
		fmt.Println()
	}
	if primitives > 0 {
		benchPrimitives(provider, primitives)
		fmt.Println()
	}
	if rotations > 0 {
		benchRotations(provider, rotations)
	}
}

func benchQKD(runs, qubits int) {
	fmt.Printf("Benchmarking BB84 runs (%d iterations, %d qubits each)\n", runs, qubits)

	sim := qkd.NewSimulator()
	eval := qkd.NewEvaluator()
	hist := metrics.NewHistogram(metrics.DefaultLatencyBuckets())
	ctx := context.Background()

	siftedTotal := 0
	for i := 0; i < runs; i++ {
		start := time.Now()
		result, err := sim.Run(ctx, qubits, false, uint64(i)+1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: run %d failed: %v\n", i, err)
			os.Exit(1)
		}
		if _, _, err := eval.Evaluate(result.Sender, result.Receiver, uint64(i)+1); err != nil {
			fmt.Fprintf(os.Stderr, "Error: evaluation %d failed: %v\n", i, err)
			os.Exit(1)
		}
		hist.Observe(float64(time.Since(start).Microseconds()) / 1000)
		siftedTotal += result.SiftedLength()
	}

	printHistogram("run+evaluate", hist)
	fmt.Printf("  mean sifted length: %d bits (%.1f%% of channel)\n",
		siftedTotal/runs, 100*float64(siftedTotal)/float64(runs*qubits))
}

func benchPrimitives(provider crypto.Provider, iterations int) {
	fmt.Printf("Benchmarking primitives (%d iterations)\n", iterations)

	keygen := metrics.NewHistogram(metrics.DefaultLatencyBuckets())
	encap := metrics.NewHistogram(metrics.DefaultLatencyBuckets())
	decap := metrics.NewHistogram(metrics.DefaultLatencyBuckets())
	derive := metrics.NewHistogram(metrics.DefaultLatencyBuckets())

	deriver := hybrid.NewDeriver()

	for i := 0; i < iterations; i++ {
		start := time.Now()
		pub, priv, err := provider.KEMGenerateKeyPair()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: keygen failed: %v\n", err)
			os.Exit(1)
		}
		keygen.Observe(ms(start))

		start = time.Now()
		ct, secret, err := provider.KEMEncapsulate(pub)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: encapsulate failed: %v\n", err)
			os.Exit(1)
		}
		encap.Observe(ms(start))
		secret.Zeroize()

		start = time.Now()
		recovered, err := provider.KEMDecapsulate(priv, ct)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: decapsulate failed: %v\n", err)
			os.Exit(1)
		}
		decap.Observe(ms(start))

		start = time.Now()
		key, err := deriver.Derive(nil, recovered, nil, []byte("bench"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: derive failed: %v\n", err)
			os.Exit(1)
		}
		derive.Observe(ms(start))
		key.Zeroize()
		recovered.Zeroize()
	}

	printHistogram("KEM keygen", keygen)
	printHistogram("KEM encapsulate", encap)
	printHistogram("KEM decapsulate", decap)
	printHistogram("hybrid derive", derive)
}

func benchRotations(provider crypto.Provider, rotations int) {
	fmt.Printf("Benchmarking KEK rotations (%d iterations)\n", rotations)

	mgr, err := keyhier.NewManager(provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: creating manager: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if _, err := mgr.CreateRoot(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: creating root: %v\n", err)
		os.Exit(1)
	}
	kek, err := mgr.IssueKEK(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: issuing KEK: %v\n", err)
		os.Exit(1)
	}

	hist := metrics.NewHistogram(metrics.DefaultLatencyBuckets())
	for i := 0; i < rotations; i++ {
		start := time.Now()
		if _, err := mgr.Rotate(ctx, kek.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: rotation %d failed: %v\n", i, err)
			os.Exit(1)
		}
		hist.Observe(ms(start))
	}

	printHistogram("KEK rotation", hist)
	fmt.Printf("  retained generations before purge: %d\n", len(mgr.Snapshot()))
	mgr.SweepGrace(time.Now().Add(24 * time.Hour))
	fmt.Printf("  purged after sweep: %d\n", mgr.Purge())
}

func ms(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func printHistogram(name string, h *metrics.Histogram) {
	s := h.Summary()
	fmt.Printf("  %-18s mean %8.3fms  min %8.3fms  max %8.3fms  p50 %8.3fms  p99 %8.3fms\n",
		name, s.Mean, s.Min, s.Max, h.Quantile(0.5), h.Quantile(0.99))
}
