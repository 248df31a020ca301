package main

import (
	"flag"
	"fmt"
	"os"

	pkgversion "github.com/surya0830/quantum-safe-data-pipelines/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand()
	case "bench":
		benchCommand()
	case "version":
		fmt.Printf("qsafe-sim version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qsafe-sim - Quantum-Safe Key Establishment Simulator

USAGE:
    qsafe-sim <command> [options]

COMMANDS:
    demo      Run the end-to-end walkthrough (QKD, hybrid derivation, hierarchy)
    bench     Run performance benchmarks
    version   Print version information
    help      Show this help message

Run 'qsafe-sim <command> --help' for more information on a command.

EXAMPLES:
    # Full walkthrough with defaults
    qsafe-sim demo

    # Reproducible run from a config file
    qsafe-sim demo --config sim.yaml --seed 42

    # Benchmark BB84 runs and primitives
    qsafe-sim bench --qkd-runs 100 --primitives 1000

PROJECT:
    Quantum-Safe Data Pipelines - key establishment and lifecycle simulation

    Channels: BB84 (simulated) with 11% QBER security bound
    Hybrid: X25519 + ML-KEM-1024 + QKD folded through SHAKE-256
    Hierarchy: root/KEK/DEK with crypto-agile rotation`)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (empty uses defaults)")
	seed := fs.Uint64("seed", 0, "Simulation seed override (0 keeps the config value)")
	qubits := fs.Int("qubits", 0, "Qubit count override (0 keeps the config value)")
	backend := fs.String("backend", "", "Provider backend override: stub, native or auto")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: qsafe-sim demo [options]

Run the full key lifecycle: an honest and an eavesdropped BB84 exchange,
QBER verdicts, hybrid session-key derivation, and a root/KEK/DEK hierarchy
walkthrough with rotation and compromise handling.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Defaults, deterministic seed
    qsafe-sim demo --seed 42

    # Larger channel, verbose logs
    qsafe-sim demo --qubits 8192 --log-level debug

    # Record spans in memory and print a summary
    qsafe-sim demo --tracing simple`)
	}

	_ = fs.Parse(os.Args[2:])

	runDemo(*configPath, *seed, *qubits, *backend, *logLevel, *logFormat, *tracing)
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	qkdRuns := fs.Int("qkd-runs", 0, "Number of BB84 runs to benchmark (0 = skip)")
	qubits := fs.Int("qubits", 8192, "Qubit count per benchmarked run")
	primitives := fs.Int("primitives", 0, "Iterations for KEM/derive benchmarks (0 = skip)")
	rotations := fs.Int("rotations", 0, "Number of KEK rotations to benchmark (0 = skip)")
	backend := fs.String("backend", "auto", "Provider backend: stub, native or auto")

	fs.Usage = func() {
		fmt.Println(`USAGE: qsafe-sim bench [options]

Run performance benchmarks over the simulator and primitives.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Benchmark 100 BB84 runs of 8192 qubits
    qsafe-sim bench --qkd-runs 100

    # Benchmark KEM and hybrid derivation
    qsafe-sim bench --primitives 1000

    # Benchmark hierarchy rotations with the stub provider
    qsafe-sim bench --rotations 500 --backend stub

    # Run everything
    qsafe-sim bench --qkd-runs 100 --primitives 1000 --rotations 500`)
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*qkdRuns, *qubits, *primitives, *rotations, *backend)
}
