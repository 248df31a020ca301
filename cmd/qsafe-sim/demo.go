package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/surya0830/quantum-safe-data-pipelines/pkg/config"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/hybrid"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/keyhier"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/qkd"
)

func runDemo(configPath string, seed uint64, qubits int, backend, logLevel, logFormat, tracing string) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Safe Key Establishment Walkthrough           ║")
	fmt.Println("║      BB84 + X25519 + ML-KEM-1024 → SHAKE-256              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	cfg := loadConfig(configPath)
	if seed != 0 {
		cfg.Seed = seed
	}
	if qubits != 0 {
		cfg.QubitCount = qubits
	}
	if backend != "" {
		cfg.ProviderBackend = backend
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	format := metrics.FormatText
	if logFormat == "json" {
		format = metrics.FormatJSON
	}
	logger := metrics.NewLogger(
		metrics.WithLevel(metrics.ParseLevel(cfg.LogLevel)),
		metrics.WithFormat(format),
		metrics.WithName("qsafe-sim"),
	)

	var tracer metrics.Tracer = metrics.NoOpTracer{}
	var simple *metrics.SimpleTracer
	switch tracing {
	case "simple":
		simple = metrics.NewSimpleTracer()
		tracer = simple
	case "otel":
		if !metrics.OTelEnabled() {
			fmt.Fprintln(os.Stderr, "Error: otel tracing requires building with -tags otel")
			os.Exit(1)
		}
		tracer = metrics.NewOTelTracer("qsafe-sim")
	}

	collector := metrics.NewCollector()
	ctx := context.Background()

	suite, err := cfg.Suite()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	provider, err := crypto.OpenProvider(crypto.Backend(cfg.ProviderBackend), crypto.ProviderOptions{
		Suite:    suite,
		StubSeed: cfg.Seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening provider: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = provider.Close() }()

	fmt.Printf("Provider backend: %s, cipher suite: %s, seed: %d\n\n", provider.Name(), suite, cfg.Seed)

	accepted := demoQKD(ctx, cfg, tracer, collector)
	sessionKey := demoHybrid(provider, accepted, collector)
	defer sessionKey.Zeroize()
	demoHierarchy(ctx, cfg, provider, logger, tracer, collector)

	fmt.Println("Metrics")
	fmt.Println("───────")
	snap := collector.Snapshot()
	fmt.Printf("  QKD runs: %d (sifted bits: %d, accepted: %d, rejected: %d)\n",
		snap.QKDRuns, snap.SiftedBits, snap.QBERAccepted, snap.QBERRejected)
	fmt.Printf("  Session keys: %d\n", snap.SessionKeys)
	fmt.Printf("  Keys issued: %d root, %d KEK, %d DEK\n", snap.RootsCreated, snap.KEKsIssued, snap.DEKsIssued)
	fmt.Printf("  Rotations: %d completed, %d conflicts, %d failed\n",
		snap.RotationsCompleted, snap.RotationConflicts, snap.RotationsFailed)
	fmt.Printf("  Compromises: %d (cascaded to %d dependents)\n", snap.CompromisesMarked, snap.CascadedDependents)
	fmt.Printf("  Generations retired: %d, purged: %d\n", snap.GenerationsRetired, snap.GenerationsPurged)

	if simple != nil {
		fmt.Printf("\nRecorded %d spans:\n", len(simple.Spans()))
		for _, span := range simple.Spans() {
			fmt.Printf("  %-28s %8s  err=%v\n", span.Name, span.Duration.Round(time.Microsecond), span.Error != nil)
		}
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// demoQKD runs an honest and an eavesdropped exchange and returns the honest
// channel's accepted key.
func demoQKD(ctx context.Context, cfg *config.Config, tracer metrics.Tracer, collector *metrics.Collector) qkd.SiftedKey {
	fmt.Println("1. BB84 Quantum Key Distribution")
	fmt.Println("────────────────────────────────")

	sim := qkd.NewSimulator(qkd.WithTracer(tracer), qkd.WithCollector(collector))
	eval := qkd.Evaluator{SampleFraction: cfg.QBERSampleFraction, Threshold: cfg.QBERThreshold}

	var accepted qkd.SiftedKey
	for _, eve := range []bool{false, true} {
		label := "honest channel"
		if eve {
			label = "eavesdropped channel"
		}

		result, err := sim.Run(ctx, cfg.QubitCount, eve, cfg.Seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: simulation failed: %v\n", err)
			os.Exit(1)
		}

		report, key, err := eval.Evaluate(result.Sender, result.Receiver, cfg.Seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: evaluation failed: %v\n", err)
			os.Exit(1)
		}
		collector.RecordQBERVerdict(report.Verdict == qkd.Accepted)

		fmt.Printf("  %-22s %d qubits → %d sifted, QBER %.4f (threshold %.2f) → %s\n",
			label+":", cfg.QubitCount, report.SiftedLength, report.QBER, report.Threshold, report.Verdict)

		if !eve {
			if report.Verdict != qkd.Accepted {
				fmt.Fprintln(os.Stderr, "Error: honest channel rejected; channel model violated")
				os.Exit(1)
			}
			accepted = key
		}
	}
	fmt.Printf("  accepted key: %d bits (sampled positions discarded)\n\n", len(accepted))
	return accepted
}

// demoHybrid derives one session key from all three secret sources.
func demoHybrid(provider crypto.Provider, accepted qkd.SiftedKey, collector *metrics.Collector) *hybrid.SessionKey {
	fmt.Println("2. Hybrid Session-Key Derivation")
	fmt.Println("────────────────────────────────")

	classical, err := provider.ClassicalKeyExchange()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: classical exchange: %v\n", err)
		os.Exit(1)
	}
	defer classical.Zeroize()

	pub, priv, err := provider.KEMGenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: KEM keygen: %v\n", err)
		os.Exit(1)
	}
	ct, encapsulated, err := provider.KEMEncapsulate(pub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: KEM encapsulate: %v\n", err)
		os.Exit(1)
	}
	encapsulated.Zeroize()
	postQuantum, err := provider.KEMDecapsulate(priv, ct)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: KEM decapsulate: %v\n", err)
		os.Exit(1)
	}
	defer postQuantum.Zeroize()

	qkdSecret := hybrid.QKDSecret(accepted.Bytes())
	defer qkdSecret.Zeroize()

	deriver := hybrid.NewDeriver(hybrid.WithCollector(collector))
	key, err := deriver.Derive(classical, postQuantum, qkdSecret, []byte("demo-session"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: derivation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  inputs: classical %dB, post-quantum %dB, qkd %dB\n",
		len(classical.Bytes), len(postQuantum.Bytes), len(accepted.Bytes()))
	fmt.Printf("  session key: %d bytes, manifest %v\n\n", len(key.Bytes()), key.Manifest)
	return key
}

// demoHierarchy walks the key hierarchy through issuance, rotation,
// compromise and cleanup.
func demoHierarchy(ctx context.Context, cfg *config.Config, provider crypto.Provider, logger *metrics.Logger, tracer metrics.Tracer, collector *metrics.Collector) {
	fmt.Println("3. Key Hierarchy Lifecycle")
	fmt.Println("──────────────────────────")

	policy := keyhier.RewrapOnRotate
	if cfg.KEKRewrapPolicy == "on-demand" {
		policy = keyhier.RewrapOnDemand
	}

	mgr, err := keyhier.NewManager(provider,
		keyhier.WithLogger(logger),
		keyhier.WithCollector(collector),
		keyhier.WithTracer(tracer),
		keyhier.WithGracePeriod(cfg.GracePeriod.Std()),
		keyhier.WithRotationInterval(cfg.RotationInterval.Std()),
		keyhier.WithRewrapPolicy(policy),
		keyhier.WithMaxRotationAttempts(cfg.MaxRotationAttempts),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: creating manager: %v\n", err)
		os.Exit(1)
	}

	root := mustKey(mgr.CreateRoot(ctx))
	kek := mustKey(mgr.IssueKEK(ctx))
	dek := mustKey(mgr.IssueDEK(ctx, kek.ID, "shard-0"))
	mustKey(mgr.IssueDEK(ctx, kek.ID, "shard-1"))
	fmt.Printf("  root %s gen %d → kek %s → dek %s (scope %s)\n",
		short(root.ID.String()), root.Generation, short(kek.ID.String()), short(dek.ID.String()), dek.Scope)

	material, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unwrap DEK: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  unwrapped DEK: %d bytes of material\n", len(material))
	crypto.Zeroize(material)

	rotated := mustKey(mgr.Rotate(ctx, dek.ID))
	fmt.Printf("  rotated DEK to gen %d (old generation enters grace window)\n", rotated.Generation)

	newRoot := mustKey(mgr.Rotate(ctx, root.ID))
	rewrapped := mustKey(mgr.Resolve(keyhier.KeyRef{ID: kek.ID}))
	fmt.Printf("  rotated root to gen %d; KEK now gen %d under root gen %d (policy %s)\n",
		newRoot.Generation, rewrapped.Generation, rewrapped.WrappedUnder.Generation, policy)

	scheduled, err := mgr.MarkCompromised(ctx, kek.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: mark compromised: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  compromised KEK cascades to %d dependents, all scheduled for rotation\n", len(scheduled))

	retired := mgr.SweepGrace(time.Now().Add(cfg.GracePeriod.Std() + time.Second))
	purged := mgr.Purge()
	fmt.Printf("  grace sweep retired %d generations, purge removed %d\n", retired, purged)

	fmt.Printf("  final arena: %d records retained\n\n", len(mgr.Snapshot()))
}

func mustKey(record *keyhier.KeyRecord, err error) *keyhier.KeyRecord {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: hierarchy operation failed: %v\n", err)
		os.Exit(1)
	}
	return record
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
