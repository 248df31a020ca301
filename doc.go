// Package quantumsafe simulates quantum-safe key establishment and key
// lifecycle management for data pipelines.
//
// The module models the full journey of a symmetric key in a post-quantum
// deployment: a BB84 quantum key distribution channel simulated with classical
// statistics, error-rate verification against the 11% security bound, hybrid
// derivation that folds classical, post-quantum and QKD secrets into one
// session key, and a crypto-agile root/KEK/DEK hierarchy where rotation
// re-wraps keys without touching bulk ciphertext.
//
// # Quick Start
//
// Simulating a QKD exchange and deriving a session key:
//
//	import (
//		"github.com/surya0830/quantum-safe-data-pipelines/pkg/hybrid"
//		"github.com/surya0830/quantum-safe-data-pipelines/pkg/qkd"
//	)
//
//	sim := qkd.NewSimulator()
//	result, _ := sim.Run(ctx, 1024, false, seed)
//	report, accepted, _ := qkd.NewEvaluator().Evaluate(result.Sender, result.Receiver, seed)
//
//	deriver := hybrid.NewDeriver()
//	key, _ := deriver.Derive(classical, postQuantum, hybrid.QKDSecret(accepted.Bytes()), []byte("session-1"))
//
// Managing the key hierarchy:
//
//	import "github.com/surya0830/quantum-safe-data-pipelines/pkg/keyhier"
//
//	mgr, _ := keyhier.NewManager(provider)
//	root, _ := mgr.CreateRoot(ctx)
//	kek, _ := mgr.IssueKEK(ctx)
//	dek, _ := mgr.IssueDEK(ctx, kek.ID, "shard-0")
//	mgr.Rotate(ctx, kek.ID)
//
// # Package Structure
//
//   - pkg/qkd: BB84 channel simulation, sifting and QBER evaluation
//   - pkg/hybrid: hybrid session-key derivation with provenance manifests
//   - pkg/keyhier: root/KEK/DEK hierarchy with generations, rotation and
//     compromise cascade
//   - pkg/crypto: primitive providers (stub, native, native-first chain),
//     KDF and AEAD
//   - pkg/attack: Grover/Shor impact estimators for key sizing
//   - pkg/config: YAML configuration with fail-fast validation
//   - pkg/metrics: structured logging, tracing, counters and histograms
//   - internal/constants: security parameters and protocol constants
//   - internal/errors: custom error types for detailed error handling
//
// # Security Properties
//
//   - Hybrid guarantee: a derived session key is secure if ANY contributing
//     secret is secure
//   - Eavesdropper detection: intercept-resend attacks disturb ~25% of sifted
//     positions, far above the 11% rejection threshold
//   - Crypto-agility: algorithm changes in the hierarchy cost key re-wraps,
//     never bulk data re-encryption
//   - Authenticated wrapping: AES-256-GCM or ChaCha20-Poly1305 for DEKs,
//     ML-KEM encapsulation for KEKs
//
// # References
//
//   - Bennett & Brassard (1984): Quantum cryptography: public key distribution
//     and coin tossing
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - NIST FIPS 202: SHA-3 Standard (SHAKE-256)
package quantumsafe
