package keyhier_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/keyhier"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"

	"github.com/google/uuid"
)

func newManager(t *testing.T, opts ...keyhier.Option) *keyhier.Manager {
	t.Helper()
	provider := crypto.OpenStubProvider(1, constants.CipherSuiteAES256GCM)
	t.Cleanup(func() { _ = provider.Close() })

	mgr, err := keyhier.NewManager(provider, opts...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

func TestCreateRootOnce(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	root, err := mgr.CreateRoot(ctx)
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	if root.Role != keyhier.RoleRoot {
		t.Errorf("Role: got %s, want root", root.Role)
	}
	if root.Generation != 1 {
		t.Errorf("Generation: got %d, want 1", root.Generation)
	}
	if root.State != keyhier.StateActive {
		t.Errorf("State: got %s, want active", root.State)
	}
	if root.WrappedUnder != nil {
		t.Error("Root must not be wrapped under anything")
	}

	if _, err := mgr.CreateRoot(ctx); !qerrors.Is(err, qerrors.ErrRootExists) {
		t.Errorf("Second CreateRoot: expected ErrRootExists, got %v", err)
	}
}

func TestIssueKEKAndDEK(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	root, err := mgr.CreateRoot(ctx)
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}

	kek, err := mgr.IssueKEK(ctx)
	if err != nil {
		t.Fatalf("IssueKEK failed: %v", err)
	}
	if kek.Role != keyhier.RoleKEK || kek.Generation != 1 {
		t.Errorf("KEK: got role %s gen %d, want kek gen 1", kek.Role, kek.Generation)
	}
	if kek.WrappedUnder == nil || kek.WrappedUnder.ID != root.ID || kek.WrappedUnder.Generation != 1 {
		t.Errorf("KEK wrap reference: got %+v, want root gen 1", kek.WrappedUnder)
	}
	if len(kek.WrapCiphertext) == 0 {
		t.Error("KEK carries no wrap ciphertext")
	}

	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-7")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}
	if dek.Role != keyhier.RoleDEK || dek.Scope != "shard-7" {
		t.Errorf("DEK: got role %s scope %q, want dek shard-7", dek.Role, dek.Scope)
	}
	if dek.WrappedUnder == nil || dek.WrappedUnder.ID != kek.ID {
		t.Errorf("DEK wrap reference: got %+v, want kek", dek.WrappedUnder)
	}

	if _, err := mgr.IssueDEK(ctx, uuid.New(), "x"); !qerrors.Is(err, qerrors.ErrKeyNotFound) {
		t.Errorf("Unknown KEK: expected ErrKeyNotFound, got %v", err)
	}
}

func TestUnwrapDEK(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, err := mgr.IssueKEK(ctx)
	if err != nil {
		t.Fatalf("IssueKEK failed: %v", err)
	}
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}

	a, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK failed: %v", err)
	}
	if len(a) != constants.AESKeySize {
		t.Errorf("Material size: got %d, want %d", len(a), constants.AESKeySize)
	}

	b, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Repeated unwraps returned different material")
	}

	// Generation 0 resolves the current generation.
	c, err := mgr.UnwrapDEK(ctx, keyhier.KeyRef{ID: dek.ID})
	if err != nil {
		t.Fatalf("UnwrapDEK by current failed: %v", err)
	}
	if !bytes.Equal(a, c) {
		t.Error("Current-generation unwrap diverged")
	}

	if _, err := mgr.UnwrapDEK(ctx, keyhier.KeyRef{ID: uuid.New()}); !qerrors.Is(err, qerrors.ErrKeyNotFound) {
		t.Errorf("Unknown DEK: expected ErrKeyNotFound, got %v", err)
	}
}

func TestRotateDEK(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}
	oldMaterial, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK failed: %v", err)
	}

	rotated, err := mgr.Rotate(ctx, dek.ID)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if rotated.Generation != 2 {
		t.Errorf("Generation after rotation: got %d, want 2", rotated.Generation)
	}
	if rotated.Scope != "shard-0" {
		t.Errorf("Scope after rotation: got %q, want shard-0", rotated.Scope)
	}

	prior, err := mgr.Resolve(dek.Ref())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if prior.State != keyhier.StateRotating {
		t.Errorf("Prior generation state: got %s, want rotating", prior.State)
	}

	newMaterial, err := mgr.UnwrapDEK(ctx, rotated.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK failed: %v", err)
	}
	if bytes.Equal(oldMaterial, newMaterial) {
		t.Error("Rotation did not refresh key material")
	}

	// The superseded generation still unwraps during its grace window.
	graceMaterial, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("Grace-window unwrap failed: %v", err)
	}
	if !bytes.Equal(oldMaterial, graceMaterial) {
		t.Error("Grace-window unwrap diverged from original material")
	}
}

func TestRootRotationIsCryptoAgile(t *testing.T) {
	mgr := newManager(t, keyhier.WithRewrapPolicy(keyhier.RewrapOnRotate))
	ctx := context.Background()

	root, err := mgr.CreateRoot(ctx)
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}
	before, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK failed: %v", err)
	}

	newRoot, err := mgr.Rotate(ctx, root.ID)
	if err != nil {
		t.Fatalf("Root rotation failed: %v", err)
	}
	if newRoot.Generation != 2 {
		t.Errorf("Root generation: got %d, want 2", newRoot.Generation)
	}

	// The KEK was re-wrapped under the new root with the SAME material.
	rewrapped, err := mgr.Resolve(keyhier.KeyRef{ID: kek.ID})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rewrapped.Generation != 2 {
		t.Errorf("KEK generation after root rotation: got %d, want 2", rewrapped.Generation)
	}
	if rewrapped.WrappedUnder.Generation != 2 {
		t.Errorf("KEK wrap target: got root gen %d, want 2", rewrapped.WrappedUnder.Generation)
	}
	if bytes.Equal(rewrapped.WrapCiphertext, kek.WrapCiphertext) {
		t.Error("Re-wrap did not refresh the wrap ciphertext")
	}

	// DEK wrap bytes are untouched and the material still unwraps: rotation
	// cost metadata, not data.
	unchanged, err := mgr.Resolve(dek.Ref())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !bytes.Equal(unchanged.WrapCiphertext, dek.WrapCiphertext) {
		t.Error("Root rotation touched DEK wrap ciphertext")
	}
	after, err := mgr.UnwrapDEK(ctx, dek.Ref())
	if err != nil {
		t.Fatalf("UnwrapDEK after root rotation failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("DEK material changed across root rotation")
	}
}

func TestRewrapPolicyOnDemand(t *testing.T) {
	mgr := newManager(t, keyhier.WithRewrapPolicy(keyhier.RewrapOnDemand))
	ctx := context.Background()

	root, _ := mgr.CreateRoot(ctx)
	kek, _ := mgr.IssueKEK(ctx)

	if _, err := mgr.Rotate(ctx, root.ID); err != nil {
		t.Fatalf("Root rotation failed: %v", err)
	}

	// On-demand policy leaves the KEK under the prior root generation.
	stale, err := mgr.Resolve(keyhier.KeyRef{ID: kek.ID})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if stale.Generation != 1 || stale.WrappedUnder.Generation != 1 {
		t.Errorf("KEK: got gen %d under root gen %d, want 1 under 1",
			stale.Generation, stale.WrappedUnder.Generation)
	}

	rewrapped, err := mgr.RewrapKEK(ctx, kek.ID)
	if err != nil {
		t.Fatalf("RewrapKEK failed: %v", err)
	}
	if rewrapped.Generation != 2 || rewrapped.WrappedUnder.Generation != 2 {
		t.Errorf("KEK after rewrap: got gen %d under root gen %d, want 2 under 2",
			rewrapped.Generation, rewrapped.WrappedUnder.Generation)
	}
}

func TestConcurrentRotationAccounting(t *testing.T) {
	collector := metrics.NewCollector()
	mgr := newManager(t, keyhier.WithCollector(collector), keyhier.WithMaxRotationAttempts(10))
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, err := mgr.IssueKEK(ctx)
	if err != nil {
		t.Fatalf("IssueKEK failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, failures := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Rotate(ctx, kek.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if qerrors.Is(err, qerrors.ErrRotationFailed) {
				failures++
			} else {
				t.Errorf("Unexpected rotation error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes+failures != workers {
		t.Fatalf("Accounted %d outcomes, want %d", successes+failures, workers)
	}

	// Exactly one generation per successful rotation: no duplicates, no
	// skips.
	current, err := mgr.Resolve(keyhier.KeyRef{ID: kek.ID})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	wantGen := uint64(1 + successes)
	if current.Generation != wantGen {
		t.Errorf("Final generation: got %d, want %d", current.Generation, wantGen)
	}

	seen := make(map[uint64]bool)
	for _, rec := range mgr.Snapshot() {
		if rec.ID != kek.ID {
			continue
		}
		if seen[rec.Generation] {
			t.Errorf("Duplicate generation %d", rec.Generation)
		}
		seen[rec.Generation] = true
	}
	for gen := uint64(1); gen <= wantGen; gen++ {
		if !seen[gen] {
			t.Errorf("Missing generation %d", gen)
		}
	}

	snap := collector.Snapshot()
	if snap.RotationsCompleted != uint64(successes) {
		t.Errorf("Completed counter: got %d, want %d", snap.RotationsCompleted, successes)
	}
	if snap.RotationsFailed != uint64(failures) {
		t.Errorf("Failed counter: got %d, want %d", snap.RotationsFailed, failures)
	}
}

func TestCompromiseCascade(t *testing.T) {
	collector := metrics.NewCollector()
	mgr := newManager(t, keyhier.WithCollector(collector))
	ctx := context.Background()

	root, _ := mgr.CreateRoot(ctx)
	kek, _ := mgr.IssueKEK(ctx)
	dekA, _ := mgr.IssueDEK(ctx, kek.ID, "shard-a")
	dekB, _ := mgr.IssueDEK(ctx, kek.ID, "shard-b")

	scheduled, err := mgr.MarkCompromised(ctx, root.ID)
	if err != nil {
		t.Fatalf("MarkCompromised failed: %v", err)
	}
	if len(scheduled) != 3 {
		t.Fatalf("Scheduled dependents: got %d, want 3", len(scheduled))
	}

	compromised, _ := mgr.Resolve(keyhier.KeyRef{ID: root.ID})
	if compromised.State != keyhier.StateCompromised {
		t.Errorf("Root state: got %s, want compromised", compromised.State)
	}

	// No dependent of a compromised key may still be Active.
	for _, id := range []uuid.UUID{kek.ID, dekA.ID, dekB.ID} {
		rec, err := mgr.Resolve(keyhier.KeyRef{ID: id})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if rec.State == keyhier.StateActive {
			t.Errorf("Dependent %s still active after ancestor compromise", id)
		}
		if rec.State != keyhier.StateRotating {
			t.Errorf("Dependent state: got %s, want rotating", rec.State)
		}
	}

	snap := collector.Snapshot()
	if snap.CompromisesMarked != 1 || snap.CascadedDependents != 3 {
		t.Errorf("Compromise counters: got %d/%d, want 1/3", snap.CompromisesMarked, snap.CascadedDependents)
	}

	// A compromised root no longer serves new issuance.
	if _, err := mgr.IssueKEK(ctx); !qerrors.Is(err, qerrors.ErrWrongState) {
		t.Errorf("IssueKEK under compromised root: expected ErrWrongState, got %v", err)
	}
}

func TestGraceSweepAndPurge(t *testing.T) {
	now := time.Now()
	mgr := newManager(t,
		keyhier.WithGracePeriod(time.Hour),
		keyhier.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}
	if _, err := mgr.Rotate(ctx, dek.ID); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	if retired := mgr.SweepGrace(now.Add(59 * time.Minute)); retired != 0 {
		t.Errorf("Early sweep retired %d generations, want 0", retired)
	}
	if retired := mgr.SweepGrace(now.Add(61 * time.Minute)); retired != 1 {
		t.Errorf("Late sweep retired %d generations, want 1", retired)
	}

	retiredRec, err := mgr.Resolve(dek.Ref())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if retiredRec.State != keyhier.StateRetired {
		t.Errorf("Swept generation state: got %s, want retired", retiredRec.State)
	}

	// Retired history survives until an explicit purge.
	if purged := mgr.Purge(); purged != 1 {
		t.Errorf("Purge removed %d generations, want 1", purged)
	}
	if _, err := mgr.Resolve(dek.Ref()); !qerrors.Is(err, qerrors.ErrKeyNotFound) {
		t.Errorf("Purged generation: expected ErrKeyNotFound, got %v", err)
	}
}

func TestDanglingWrapSurfaced(t *testing.T) {
	mgr := newManager(t, keyhier.WithGracePeriod(0))
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}

	// Rotate the KEK, retire and purge its first generation; the DEK's wrap
	// now points into removed history.
	if _, err := mgr.Rotate(ctx, kek.ID); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	mgr.SweepGrace(time.Now().Add(time.Second))
	if purged := mgr.Purge(); purged == 0 {
		t.Fatal("Expected the superseded KEK generation to purge")
	}

	_, err = mgr.UnwrapDEK(ctx, dek.Ref())
	if !qerrors.Is(err, qerrors.ErrDanglingWrap) {
		t.Errorf("Expected ErrDanglingWrap, got %v", err)
	}
}

func TestRotationDue(t *testing.T) {
	now := time.Now()
	mgr := newManager(t,
		keyhier.WithClock(func() time.Time { return now }),
		keyhier.WithRotationInterval(time.Hour),
	)
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	dek, err := mgr.IssueDEK(ctx, kek.ID, "shard-0")
	if err != nil {
		t.Fatalf("IssueDEK failed: %v", err)
	}

	if due := mgr.RotationDue(now.Add(30 * time.Minute)); len(due) != 0 {
		t.Errorf("Early check: %d keys due, want 0", len(due))
	}

	due := mgr.RotationDue(now.Add(2 * time.Hour))
	if len(due) != 1 || due[0].ID != dek.ID {
		t.Errorf("DEK lifetime elapsed: got %v, want the DEK", due)
	}
}

func TestSnapshotOrderedAndIndependent(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateRoot(ctx); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	kek, _ := mgr.IssueKEK(ctx)
	if _, err := mgr.Rotate(ctx, kek.ID); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	snap := mgr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot size: got %d, want 3", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		prev, cur := snap[i-1], snap[i]
		if prev.ID == cur.ID && prev.Generation >= cur.Generation {
			t.Error("Snapshot not ordered by generation within an id")
		}
	}

	// Mutating the snapshot must not touch the registry.
	snap[0].State = keyhier.StateCompromised
	fresh, err := mgr.Resolve(snap[0].Ref())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if fresh.State == keyhier.StateCompromised {
		t.Error("Snapshot aliases internal records")
	}
}
