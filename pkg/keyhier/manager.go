package keyhier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surya0830/quantum-safe-data-pipelines/internal/constants"
	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/crypto"
	"github.com/surya0830/quantum-safe-data-pipelines/pkg/metrics"
)

// entry is one generation of one key, together with the plaintext material
// the in-memory model keeps alongside the public record. Material never
// leaves the manager except through UnwrapDEK.
type entry struct {
	record    *KeyRecord
	material  []byte
	kemPublic []byte // root generations only
	rotatedAt time.Time
}

// keyLine is the append-only generation history of one key id.
// gens[i] holds generation i+1; purged generations leave a nil hole so
// generation numbers are never reused.
type keyLine struct {
	id   uuid.UUID
	role Role
	gens []*entry
}

func (l *keyLine) current() *entry {
	return l.gens[len(l.gens)-1]
}

func (l *keyLine) at(generation uint64) *entry {
	if generation == 0 || generation > uint64(len(l.gens)) {
		return nil
	}
	return l.gens[generation-1]
}

// Manager owns the key registry and drives creation, rotation, re-wrapping
// and compromise handling. All mutating operations serialize per key id
// through optimistic generation checks: provider calls run outside the
// registry lock, and a commit succeeds only if the observed generation is
// unchanged, otherwise the operation retries with backoff up to a bounded
// number of attempts.
type Manager struct {
	provider  crypto.Provider
	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
	clock     func() time.Time

	grace        time.Duration
	rootLifetime time.Duration
	kekLifetime  time.Duration
	dekLifetime  time.Duration
	maxAttempts  int
	backoffBase  time.Duration
	rewrap       RewrapPolicy

	mu      sync.Mutex
	lines   map[uuid.UUID]*keyLine
	rootID  uuid.UUID
	hasRoot bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger. Only ids, generations and states are logged.
func WithLogger(l *metrics.Logger) Option {
	return func(m *Manager) { m.logger = l.Named("keyhier") }
}

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithTracer attaches a tracer; each mutating operation becomes one span.
func WithTracer(t metrics.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithGracePeriod sets how long superseded generations stay Rotating before
// SweepGrace retires them.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// WithRotationInterval sets the DEK lifetime used for ExpiresAt and
// RotationDue.
func WithRotationInterval(d time.Duration) Option {
	return func(m *Manager) { m.dekLifetime = d }
}

// WithRewrapPolicy sets how dependent KEKs follow a root rotation.
func WithRewrapPolicy(p RewrapPolicy) Option {
	return func(m *Manager) { m.rewrap = p }
}

// WithMaxRotationAttempts bounds optimistic-concurrency retries.
func WithMaxRotationAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

// NewManager creates a Manager over the given primitive provider.
func NewManager(provider crypto.Provider, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, qerrors.NewConfigError("provider", "must not be nil")
	}
	m := &Manager{
		provider:     provider,
		tracer:       metrics.NoOpTracer{},
		clock:        time.Now,
		grace:        constants.DefaultGracePeriod,
		rootLifetime: constants.DefaultRootExpiry,
		kekLifetime:  constants.DefaultKEKExpiry,
		dekLifetime:  constants.DefaultDEKExpiry,
		maxAttempts:  constants.MaxRotationAttempts,
		backoffBase:  constants.RotationBackoffBase,
		lines:        make(map[uuid.UUID]*keyLine),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) span(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, metrics.SpanEnder) {
	return m.tracer.StartSpan(ctx, name, metrics.WithAttributes(attrs))
}

func (m *Manager) info(msg string, fields metrics.Fields) {
	if m.logger != nil {
		m.logger.Info(msg, fields)
	}
}

func (m *Manager) lifetime(role Role) time.Duration {
	switch role {
	case RoleRoot:
		return m.rootLifetime
	case RoleKEK:
		return m.kekLifetime
	default:
		return m.dekLifetime
	}
}

func (m *Manager) newRecord(id uuid.UUID, role Role, generation uint64, algorithm string) *KeyRecord {
	now := m.clock()
	return &KeyRecord{
		ID:           id,
		Role:         role,
		AlgorithmTag: algorithm,
		Generation:   generation,
		State:        StateActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.lifetime(role)),
	}
}

// CreateRoot creates the hierarchy root. Exactly one root id exists per
// hierarchy; a second call fails with ErrRootExists.
func (m *Manager) CreateRoot(ctx context.Context) (*KeyRecord, error) {
	_, end := m.span(ctx, "keyhier.create_root", nil)

	record, err := m.createRoot()
	end(err)
	return record, err
}

func (m *Manager) createRoot() (*KeyRecord, error) {
	m.mu.Lock()
	exists := m.hasRoot
	m.mu.Unlock()
	if exists {
		return nil, qerrors.ErrRootExists
	}

	pub, priv, err := m.provider.KEMGenerateKeyPair()
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	record := m.newRecord(id, RoleRoot, 1, "kem/"+m.provider.Name())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasRoot {
		crypto.Zeroize(priv)
		return nil, qerrors.ErrRootExists
	}
	m.lines[id] = &keyLine{
		id:   id,
		role: RoleRoot,
		gens: []*entry{{record: record, material: priv, kemPublic: pub}},
	}
	m.rootID = id
	m.hasRoot = true

	if m.collector != nil {
		m.collector.RecordRootCreated()
	}
	m.info("root created", metrics.Fields{"key_id": id.String(), "generation": 1})
	return record.Clone(), nil
}

// wrapTarget is the ancestor snapshot an issuance or rotation wraps under.
type wrapTarget struct {
	ref      KeyRef
	state    State
	material []byte // KEK material for DEK wraps
	kemPub   []byte // root public key for KEK wraps
	scope    string
}

// rootTarget snapshots the current root generation, requiring it Active.
func (m *Manager) rootTarget() (wrapTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRoot {
		return wrapTarget{}, qerrors.ErrKeyNotFound
	}
	cur := m.lines[m.rootID].current()
	if cur.record.State != StateActive {
		return wrapTarget{}, qerrors.NewKeyRefError(m.rootID, cur.record.Generation, qerrors.ErrWrongState)
	}
	return wrapTarget{
		ref:    cur.record.Ref(),
		state:  cur.record.State,
		kemPub: append([]byte(nil), cur.kemPublic...),
	}, nil
}

// kekTarget snapshots a KEK's current generation, requiring it wrappable
// (Active, or Rotating for grace-period compatibility).
func (m *Manager) kekTarget(kekID uuid.UUID) (wrapTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[kekID]
	if !ok || line.role != RoleKEK {
		return wrapTarget{}, qerrors.NewKeyRefError(kekID, 0, qerrors.ErrKeyNotFound)
	}
	cur := line.current()
	if cur.record.State != StateActive && cur.record.State != StateRotating {
		return wrapTarget{}, qerrors.NewKeyRefError(kekID, cur.record.Generation, qerrors.ErrWrongState)
	}
	return wrapTarget{
		ref:      cur.record.Ref(),
		state:    cur.record.State,
		material: append([]byte(nil), cur.material...),
	}, nil
}

// targetUnchanged reports whether the ancestor generation observed by a
// snapshot is still the current one. Caller holds the lock.
func (m *Manager) targetUnchanged(t wrapTarget) bool {
	line, ok := m.lines[t.ref.ID]
	return ok && line.current().record.Generation == t.ref.Generation
}

func (m *Manager) backoff(ctx context.Context, attempt int) error {
	delay := m.backoffBase << uint(attempt-1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// IssueKEK generates a fresh KEK and wraps it under the current Active root
// via KEM encapsulation. Encapsulation failures propagate unchanged.
func (m *Manager) IssueKEK(ctx context.Context) (*KeyRecord, error) {
	_, end := m.span(ctx, "keyhier.issue_kek", nil)
	record, err := m.issueKEK(ctx)
	end(err)
	return record, err
}

func (m *Manager) issueKEK(ctx context.Context) (*KeyRecord, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, err := m.rootTarget()
		if err != nil {
			return nil, err
		}

		ct, material, err := m.encapsulateKEK(target.kemPub)
		if err != nil {
			return nil, err
		}

		id := uuid.New()
		record := m.newRecord(id, RoleKEK, 1, "kem-wrap/"+m.provider.Name())
		record.WrappedUnder = &KeyRef{ID: target.ref.ID, Generation: target.ref.Generation}
		record.WrapCiphertext = ct

		m.mu.Lock()
		if m.targetUnchanged(target) {
			m.lines[id] = &keyLine{id: id, role: RoleKEK, gens: []*entry{{record: record, material: material}}}
			m.mu.Unlock()
			if m.collector != nil {
				m.collector.RecordKEKIssued()
			}
			m.info("kek issued", metrics.Fields{"key_id": id.String(), "root_generation": target.ref.Generation})
			return record.Clone(), nil
		}
		m.mu.Unlock()

		crypto.Zeroize(material)
		if attempt >= m.maxAttempts {
			return nil, qerrors.NewRotationError(target.ref.ID, target.ref.Generation, attempt, qerrors.ErrRotationFailed)
		}
		if err := m.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// encapsulateKEK derives fresh KEK material from a KEM encapsulation to the
// root public key.
func (m *Manager) encapsulateKEK(rootPub []byte) (ciphertext, material []byte, err error) {
	ct, ss, err := m.provider.KEMEncapsulate(rootPub)
	if err != nil {
		return nil, nil, err
	}
	defer ss.Zeroize()

	material, err = crypto.DeriveKey(constants.DomainSeparatorKeyWrap, ss.Bytes, constants.AESKeySize)
	if err != nil {
		return nil, nil, err
	}
	return ct, material, nil
}

// dekAAD binds a DEK wrap to its id, wrapping KEK generation and scope.
func dekAAD(record *KeyRecord) []byte {
	return []byte(fmt.Sprintf("dek:%s|kek:%s:%d|scope:%s",
		record.ID, record.WrappedUnder.ID, record.WrappedUnder.Generation, record.Scope))
}

// IssueDEK generates a fresh DEK for the given shard or time-window scope,
// wrapped under the referenced KEK's current generation. A Rotating KEK is
// accepted for grace-period compatibility.
func (m *Manager) IssueDEK(ctx context.Context, kekID uuid.UUID, scope string) (*KeyRecord, error) {
	_, end := m.span(ctx, "keyhier.issue_dek", map[string]interface{}{"scope": scope})
	record, err := m.issueDEK(ctx, kekID, scope)
	end(err)
	return record, err
}

func (m *Manager) issueDEK(ctx context.Context, kekID uuid.UUID, scope string) (*KeyRecord, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, err := m.kekTarget(kekID)
		if err != nil {
			return nil, err
		}

		material, err := crypto.SecureRandomBytes(constants.AESKeySize)
		if err != nil {
			return nil, err
		}

		id := uuid.New()
		record := m.newRecord(id, RoleDEK, 1, "aead-wrap/"+m.provider.Name())
		record.WrappedUnder = &KeyRef{ID: target.ref.ID, Generation: target.ref.Generation}
		record.Scope = scope

		ct, err := m.provider.AEADEncrypt(target.material, material, dekAAD(record))
		crypto.Zeroize(target.material)
		if err != nil {
			crypto.Zeroize(material)
			return nil, err
		}
		record.WrapCiphertext = ct

		m.mu.Lock()
		if m.targetUnchanged(target) {
			m.lines[id] = &keyLine{id: id, role: RoleDEK, gens: []*entry{{record: record, material: material}}}
			m.mu.Unlock()
			if m.collector != nil {
				m.collector.RecordDEKIssued()
			}
			m.info("dek issued", metrics.Fields{"key_id": id.String(), "kek_id": kekID.String(), "scope": scope})
			return record.Clone(), nil
		}
		m.mu.Unlock()

		crypto.Zeroize(material)
		if attempt >= m.maxAttempts {
			return nil, qerrors.NewRotationError(kekID, target.ref.Generation, attempt, qerrors.ErrRotationFailed)
		}
		if err := m.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// UnwrapDEK recovers a DEK's plaintext material by unwrapping its ciphertext
// under the referenced KEK generation. A wrap pointing at a retired or
// purged generation surfaces ErrDanglingWrap; it is never auto-healed.
func (m *Manager) UnwrapDEK(ctx context.Context, ref KeyRef) ([]byte, error) {
	_, end := m.span(ctx, "keyhier.unwrap_dek", nil)
	material, err := m.unwrapDEK(ref)
	end(err)
	if err != nil && qerrors.Is(err, qerrors.ErrAuthenticationFailed) && m.collector != nil {
		m.collector.RecordAuthFailure()
	}
	return material, err
}

func (m *Manager) unwrapDEK(ref KeyRef) ([]byte, error) {
	m.mu.Lock()
	line, ok := m.lines[ref.ID]
	if !ok || line.role != RoleDEK {
		m.mu.Unlock()
		return nil, qerrors.NewKeyRefError(ref.ID, ref.Generation, qerrors.ErrKeyNotFound)
	}

	var dek *entry
	if ref.Generation == 0 {
		dek = line.current()
	} else if dek = line.at(ref.Generation); dek == nil {
		m.mu.Unlock()
		return nil, qerrors.NewKeyRefError(ref.ID, ref.Generation, qerrors.ErrKeyNotFound)
	}

	wrap := dek.record.WrappedUnder
	kekLine, ok := m.lines[wrap.ID]
	if !ok {
		m.mu.Unlock()
		return nil, qerrors.NewKeyRefError(wrap.ID, wrap.Generation, qerrors.ErrDanglingWrap)
	}
	kek := kekLine.at(wrap.Generation)
	if kek == nil || kek.record.State == StateRetired {
		m.mu.Unlock()
		return nil, qerrors.NewKeyRefError(wrap.ID, wrap.Generation, qerrors.ErrDanglingWrap)
	}

	kekMaterial := append([]byte(nil), kek.material...)
	ciphertext := append([]byte(nil), dek.record.WrapCiphertext...)
	aad := dekAAD(dek.record)
	m.mu.Unlock()

	defer crypto.Zeroize(kekMaterial)
	return m.provider.AEADDecrypt(kekMaterial, ciphertext, aad)
}

// Rotate appends a new generation of the key: fresh material, re-wrapped
// under the current ancestor. The prior generation moves to Rotating (valid
// for unwraps, not for new wraps) until the grace period elapses. Rotation
// never touches bulk payload ciphertext, only the key wrapping itself.
//
// Concurrent rotations of the same id are serialized by an optimistic
// generation check; a collision retries with backoff and surfaces
// ErrRotationFailed only once attempts are exhausted.
func (m *Manager) Rotate(ctx context.Context, id uuid.UUID) (*KeyRecord, error) {
	_, end := m.span(ctx, "keyhier.rotate", map[string]interface{}{"key_id": id.String()})
	if m.collector != nil {
		m.collector.RecordRotationStarted()
	}

	record, err := m.rotate(ctx, id, false)
	end(err)

	if m.collector != nil {
		if err != nil {
			m.collector.RecordRotationFailed()
		} else {
			m.collector.RecordRotationCompleted()
		}
	}
	return record, err
}

// RewrapKEK appends a new generation of a KEK that carries the SAME key
// material re-wrapped under the current Active root. Dependent DEK wrap
// bytes are untouched; this is the crypto-agility path a root rotation
// takes through its dependents.
func (m *Manager) RewrapKEK(ctx context.Context, id uuid.UUID) (*KeyRecord, error) {
	_, end := m.span(ctx, "keyhier.rewrap_kek", map[string]interface{}{"key_id": id.String()})
	record, err := m.rotate(ctx, id, true)
	end(err)
	return record, err
}

func (m *Manager) rotate(ctx context.Context, id uuid.UUID, rewrapOnly bool) (*KeyRecord, error) {
	m.mu.Lock()
	line, ok := m.lines[id]
	if !ok {
		m.mu.Unlock()
		return nil, qerrors.NewKeyRefError(id, 0, qerrors.ErrKeyNotFound)
	}
	role := line.role
	m.mu.Unlock()

	if rewrapOnly && role != RoleKEK {
		return nil, qerrors.NewKeyRefError(id, 0, qerrors.ErrWrongState)
	}

	var lastObserved uint64
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, committed, err := m.rotateOnce(line, role, rewrapOnly)
		if err != nil {
			return nil, err
		}
		if committed {
			m.info("rotation committed", metrics.Fields{
				"key_id":     id.String(),
				"role":       role.String(),
				"generation": record.Generation,
			})
			if role == RoleRoot && m.rewrap == RewrapOnRotate {
				if err := m.rewrapDependentKEKs(ctx); err != nil {
					return record, err
				}
			}
			return record, nil
		}

		lastObserved = record.Generation
		if m.collector != nil {
			m.collector.RecordRotationConflict()
		}
		if attempt >= m.maxAttempts {
			return nil, qerrors.NewRotationError(id, lastObserved, attempt, qerrors.ErrRotationFailed)
		}
		if err := m.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// rotateOnce performs one optimistic rotation attempt. When the generation
// moved underneath it, the returned record carries the generation observed
// and committed is false.
func (m *Manager) rotateOnce(line *keyLine, role Role, rewrapOnly bool) (*KeyRecord, bool, error) {
	m.mu.Lock()
	cur := line.current()
	observed := cur.record.Generation
	if cur.record.State == StateRetired {
		m.mu.Unlock()
		return nil, false, qerrors.NewKeyRefError(line.id, observed, qerrors.ErrWrongState)
	}
	oldState := cur.record.State
	var curMaterial []byte
	if rewrapOnly {
		curMaterial = append([]byte(nil), cur.material...)
	}
	wrap := cur.record.WrappedUnder
	m.mu.Unlock()

	next := m.newRecord(line.id, role, observed+1, cur.record.AlgorithmTag)
	var material, kemPub []byte

	switch role {
	case RoleRoot:
		pub, priv, err := m.provider.KEMGenerateKeyPair()
		if err != nil {
			return nil, false, err
		}
		material, kemPub = priv, pub

	case RoleKEK:
		target, err := m.rootTarget()
		if err != nil {
			return nil, false, err
		}
		if rewrapOnly {
			ct, ss, err := m.provider.KEMEncapsulate(target.kemPub)
			if err != nil {
				return nil, false, err
			}
			// Re-wrap keeps the KEK material; the fresh encapsulation secret
			// only refreshes the wrapping ciphertext. The in-memory model
			// stores material directly, so the secret is discarded.
			ss.Zeroize()
			material = curMaterial
			next.WrapCiphertext = ct
		} else {
			ct, fresh, err := m.encapsulateKEK(target.kemPub)
			if err != nil {
				return nil, false, err
			}
			material = fresh
			next.WrapCiphertext = ct
		}
		next.WrappedUnder = &KeyRef{ID: target.ref.ID, Generation: target.ref.Generation}

	case RoleDEK:
		target, err := m.kekTarget(wrap.ID)
		if err != nil {
			return nil, false, err
		}
		fresh, err := crypto.SecureRandomBytes(constants.AESKeySize)
		if err != nil {
			return nil, false, err
		}
		next.WrappedUnder = &KeyRef{ID: target.ref.ID, Generation: target.ref.Generation}
		next.Scope = cur.record.Scope
		ct, err := m.provider.AEADEncrypt(target.material, fresh, dekAAD(next))
		crypto.Zeroize(target.material)
		if err != nil {
			crypto.Zeroize(fresh)
			return nil, false, err
		}
		material = fresh
		next.WrapCiphertext = ct
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if line.current().record.Generation != observed {
		crypto.Zeroize(material)
		return &KeyRecord{Generation: line.current().record.Generation}, false, nil
	}

	// Commit: prior generation enters its grace window. A Compromised prior
	// generation keeps that state for the audit trail.
	if oldState != StateCompromised {
		cur.record.State = StateRotating
	}
	cur.rotatedAt = m.clock()

	line.gens = append(line.gens, &entry{record: next, material: material, kemPublic: kemPub})
	return next.Clone(), true, nil
}

// rewrapDependentKEKs re-wraps every KEK whose current generation is not
// wrapped under the current Active root, then retires root generations with
// no remaining dependents.
func (m *Manager) rewrapDependentKEKs(ctx context.Context) error {
	m.mu.Lock()
	rootGen := m.lines[m.rootID].current().record.Generation
	var stale []uuid.UUID
	for id, line := range m.lines {
		if line.role != RoleKEK {
			continue
		}
		cur := line.current()
		if cur.record.State == StateRetired {
			continue
		}
		if w := cur.record.WrappedUnder; w.ID != m.rootID || w.Generation != rootGen {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].String() < stale[j].String() })

	for _, id := range stale {
		if _, err := m.rotate(ctx, id, true); err != nil {
			return err
		}
	}

	m.retireOrphanRootGenerations()
	return nil
}

// retireOrphanRootGenerations retires superseded root generations once no
// current KEK generation is wrapped under them.
func (m *Manager) retireOrphanRootGenerations() {
	m.mu.Lock()
	defer m.mu.Unlock()

	referenced := make(map[uint64]bool)
	for _, line := range m.lines {
		if line.role != RoleKEK {
			continue
		}
		if w := line.current().record.WrappedUnder; w != nil && w.ID == m.rootID {
			referenced[w.Generation] = true
		}
	}

	rootLine := m.lines[m.rootID]
	retired := 0
	for _, e := range rootLine.gens[:len(rootLine.gens)-1] {
		if e == nil || e.record.State != StateRotating {
			continue
		}
		if !referenced[e.record.Generation] {
			e.record.State = StateRetired
			retired++
		}
	}
	if retired > 0 && m.collector != nil {
		m.collector.RecordRetired(retired)
	}
}

// MarkCompromised flags the key's current generation Compromised and marks
// every direct and transitive dependent Rotating within the same critical
// section, so there is no window in which a dependent still trusts a
// known-compromised ancestor. The returned refs are the dependents whose
// rotation is now due; completing those rotations is the caller's schedule.
func (m *Manager) MarkCompromised(ctx context.Context, id uuid.UUID) ([]KeyRef, error) {
	_, end := m.span(ctx, "keyhier.mark_compromised", map[string]interface{}{"key_id": id.String()})
	scheduled, err := m.markCompromised(id)
	end(err)
	return scheduled, err
}

func (m *Manager) markCompromised(id uuid.UUID) ([]KeyRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, ok := m.lines[id]
	if !ok {
		return nil, qerrors.NewKeyRefError(id, 0, qerrors.ErrKeyNotFound)
	}
	cur := line.current()
	if cur.record.State == StateRetired {
		return nil, qerrors.NewKeyRefError(id, cur.record.Generation, qerrors.ErrWrongState)
	}
	cur.record.State = StateCompromised

	// Breadth-first cascade over the dependency graph. Dependents are lines
	// whose current generation is wrapped under any generation of a tainted
	// id.
	tainted := map[uuid.UUID]bool{id: true}
	var scheduled []KeyRef
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for depID, depLine := range m.lines {
			depCur := depLine.current()
			w := depCur.record.WrappedUnder
			if w == nil || w.ID != parent || tainted[depID] {
				continue
			}
			tainted[depID] = true
			if depCur.record.State == StateActive {
				depCur.record.State = StateRotating
				depCur.rotatedAt = m.clock()
			}
			if depCur.record.State != StateRetired {
				scheduled = append(scheduled, depCur.record.Ref())
			}
			queue = append(queue, depID)
		}
	}

	sort.Slice(scheduled, func(i, j int) bool {
		return scheduled[i].ID.String() < scheduled[j].ID.String()
	})

	if m.collector != nil {
		m.collector.RecordCompromise(len(scheduled))
	}
	m.info("key compromised", metrics.Fields{
		"key_id":     id.String(),
		"cascaded":   len(scheduled),
		"generation": cur.record.Generation,
	})
	return scheduled, nil
}

// SweepGrace retires superseded Rotating generations whose grace period has
// elapsed. Returns the number of generations retired.
func (m *Manager) SweepGrace(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	retired := 0
	for _, line := range m.lines {
		// The current generation is never swept; a current Rotating
		// generation is awaiting rotation, not retirement.
		for _, e := range line.gens[:len(line.gens)-1] {
			if e == nil || e.record.State != StateRotating {
				continue
			}
			if !e.rotatedAt.Add(m.grace).After(now) {
				e.record.State = StateRetired
				retired++
			}
		}
	}

	if retired > 0 && m.collector != nil {
		m.collector.RecordRetired(retired)
	}
	return retired
}

// Purge removes Retired generations from the arena, zeroizing their
// material. Returns the number purged. History before an explicit purge is
// retained for audit and rollback.
func (m *Manager) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for _, line := range m.lines {
		for i, e := range line.gens {
			if e == nil || e.record.State != StateRetired {
				continue
			}
			crypto.Zeroize(e.material)
			line.gens[i] = nil
			purged++
		}
	}

	if purged > 0 && m.collector != nil {
		m.collector.RecordPurged(purged)
	}
	return purged
}

// Resolve returns a copy of the addressed record. Generation 0 resolves the
// current generation.
func (m *Manager) Resolve(ref KeyRef) (*KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, ok := m.lines[ref.ID]
	if !ok {
		return nil, qerrors.NewKeyRefError(ref.ID, ref.Generation, qerrors.ErrKeyNotFound)
	}
	if ref.Generation == 0 {
		return line.current().record.Clone(), nil
	}
	e := line.at(ref.Generation)
	if e == nil {
		return nil, qerrors.NewKeyRefError(ref.ID, ref.Generation, qerrors.ErrKeyNotFound)
	}
	return e.record.Clone(), nil
}

// ActiveRoot returns the current root generation.
func (m *Manager) ActiveRoot() (*KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRoot {
		return nil, qerrors.ErrKeyNotFound
	}
	return m.lines[m.rootID].current().record.Clone(), nil
}

// Snapshot returns a consistent copy of every retained record, ordered by
// id then generation. Records mid-transition are never observable: the
// registry lock is held for the whole copy.
func (m *Manager) Snapshot() []*KeyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*KeyRecord
	for _, line := range m.lines {
		for _, e := range line.gens {
			if e != nil {
				out = append(out, e.record.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Generation < out[j].Generation
	})
	return out
}

// RotationDue lists current generations whose lifetime has expired as of
// now, as candidates for the caller's rotation schedule.
func (m *Manager) RotationDue(now time.Time) []KeyRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []KeyRef
	for _, line := range m.lines {
		cur := line.current()
		if cur.record.State == StateRetired {
			continue
		}
		if !cur.record.ExpiresAt.After(now) {
			due = append(due, cur.record.Ref())
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID.String() < due[j].ID.String() })
	return due
}
