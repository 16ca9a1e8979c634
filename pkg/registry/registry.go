// Package registry is the control plane's orchestration core. It owns
// every live PAC together with its barrier, WRAP aggregator, and gate
// results, and serializes all mutations for one PAC behind a per-PAC
// lock. Reads hand out deep copies; callers never see live state.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/audit"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/barrier"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/config"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/depgraph"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/gates"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/lifecycle"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/observability"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/prooflog"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/settlement"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/store"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/wrapset"
)

var (
	// ErrPACNotFound is returned for operations against an unknown PAC.
	ErrPACNotFound = errors.New("registry: PAC not found")

	// ErrPACExists is returned when dispatching an already-known PAC ID.
	ErrPACExists = errors.New("registry: PAC already dispatched")

	// ErrSettlementBlocked is returned by Settle when the verdict is
	// BLOCKED. The PAC stays in BER_ISSUED; settlement can be retried
	// once the missing evidence lands.
	ErrSettlementBlocked = errors.New("registry: settlement blocked")

	// ErrNoVerdict is returned when no settlement verdict has been
	// computed for the PAC yet.
	ErrNoVerdict = errors.New("registry: no verdict evaluated")
)

// defaultLane is assigned to roster agents the governance profile does
// not pin to a lane.
const defaultLane = "execution"

// pacEntry bundles one PAC with its collaborating engines. The entry
// mutex serializes every mutation touching this PAC.
type pacEntry struct {
	mu sync.Mutex

	pac     *contracts.PAC
	barrier *barrier.Barrier
	wraps   *wrapset.Aggregator

	signals  []contracts.TrainingSignal
	closures []contracts.PositiveClosure

	rg01    *contracts.ReviewGateResult
	bsrg01  *contracts.SelfReviewResult
	verdict *contracts.SettlementReadinessVerdict
}

// Registry coordinates the full PAC lifecycle.
type Registry struct {
	mu   sync.RWMutex
	pacs map[string]*pacEntry

	machine   *lifecycle.Machine
	gates     *gates.Evaluator
	evaluator *settlement.Evaluator
	validator *wrapset.Validator

	proof    *prooflog.Log
	graph    *depgraph.Graph
	auditLog audit.Logger
	store    store.Store
	metrics  *observability.Provider
	profile  *config.GovernanceProfile
	clock    func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithStore attaches a persistence store. PACs and verdicts are saved
// after every sanctioned mutation.
func WithStore(s store.Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithAudit attaches an audit sink.
func WithAudit(l audit.Logger) Option {
	return func(r *Registry) { r.auditLog = l }
}

// WithMetrics attaches an observability provider.
func WithMetrics(p *observability.Provider) Option {
	return func(r *Registry) { r.metrics = p }
}

// WithClock overrides the clock for deterministic testing. The clock
// propagates to the lifecycle machine and the gate evaluator.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// New creates a registry governed by the given profile. A nil profile
// selects the defaults.
func New(profile *config.GovernanceProfile, opts ...Option) (*Registry, error) {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	validator, err := wrapset.NewValidator()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		pacs:      make(map[string]*pacEntry),
		machine:   lifecycle.NewMachine(),
		gates:     gates.NewEvaluator(),
		evaluator: settlement.NewEvaluator(profile.ACKLatencyThresholdMS),
		validator: validator,
		proof:     prooflog.New(),
		graph:     depgraph.New(),
		auditLog:  audit.Nop(),
		profile:   profile,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.machine.WithClock(r.clock)
	r.gates.WithClock(r.clock)
	r.evaluator.WithClock(r.clock)
	r.proof.WithClock(r.clock)
	r.validator.WithClock(r.clock)
	return r, nil
}

// ProofLog exposes the registry's hash-chained proof log.
func (r *Registry) ProofLog() *prooflog.Log { return r.proof }

// Graph exposes the PAC dependency graph.
func (r *Registry) Graph() *depgraph.Graph { return r.graph }

// Dispatch creates a PAC, moves it to ACK_PENDING, and opens one
// PENDING ACK per roster agent with the profile's deadline. Lanes come
// from the governance profile; unpinned agents get the default lane.
func (r *Registry) Dispatch(ctx context.Context, pacID, runtimeID string, agents []string) (*contracts.PAC, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("registry: dispatch %s: empty agent roster", pacID)
	}

	r.mu.RLock()
	_, exists := r.pacs[pacID]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrPACExists, pacID)
	}

	pac, err := r.machine.NewPAC(pacID, runtimeID)
	if err != nil {
		return nil, err
	}

	now := r.clock()
	lanes := make(map[string]string, len(agents))
	for _, agent := range agents {
		lane := r.profile.Lanes[agent]
		if lane == "" {
			lane = defaultLane
		}
		lanes[agent] = lane

		ack := &contracts.AgentACK{
			PACID:       pacID,
			AgentID:     agent,
			Lane:        lane,
			State:       contracts.ACKPending,
			RequestedAt: now,
			Deadline:    now.Add(r.profile.ACKDeadline.Std()),
		}
		hash, err := canonical.Hash(ack)
		if err != nil {
			return nil, fmt.Errorf("registry: hash ACK for %s/%s: %w", pacID, agent, err)
		}
		ack.ContentHash = hash
		pac.ACKs[agent] = ack
	}

	entry := &pacEntry{
		pac:     pac,
		barrier: barrier.New(pacID, contracts.ModeParallel, lanes).WithClock(r.clock),
		wraps:   wrapset.New(pacID, agents).WithClock(r.clock),
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Register only the fully constructed entry; a half-built PAC must
	// never be reachable by ID.
	r.mu.Lock()
	if _, ok := r.pacs[pacID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPACExists, pacID)
	}
	r.pacs[pacID] = entry
	r.mu.Unlock()

	if _, err := r.transitionLocked(ctx, entry, contracts.StateACKPending, "dispatched", "registry"); err != nil {
		r.mu.Lock()
		delete(r.pacs, pacID)
		r.mu.Unlock()
		return nil, err
	}

	r.graph.AddNode(pacID)
	r.persist(ctx, pac)
	r.audit(ctx, audit.EventSystem, "dispatch", pacID, "registry", map[string]any{
		"runtime_id": runtimeID,
		"agents":     append([]string{}, agents...),
	})
	return pac.Clone(), nil
}

// AddDependency declares that dependent cannot finalize before
// prerequisite. Cycles are refused.
func (r *Registry) AddDependency(prerequisite, dependent string) error {
	return r.graph.AddEdge(dependent, prerequisite)
}

// RecordACK records one agent's acknowledgement or rejection. The
// claimed lane must match the lane assigned at dispatch; out-of-roster
// agents and cross-lane claims are refused before any state is written.
// The barrier releases — and the PAC starts EXECUTING — when the last
// required agent acknowledges.
func (r *Registry) RecordACK(ctx context.Context, pacID, agentID, lane string, accept bool, reason string) (*contracts.AgentACK, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	pac := entry.pac
	if pac.State != contracts.StateACKPending {
		return nil, &contracts.InvalidTransitionError{PACID: pacID, From: pac.State, To: contracts.StateExecuting}
	}
	ack, ok := pac.ACKs[agentID]
	if !ok {
		return nil, &contracts.UnexpectedContributorError{PACID: pacID, AgentID: agentID, Kind: "ACK"}
	}
	if lane != ack.Lane {
		return nil, &contracts.UnauthorizedLaneError{AgentID: agentID, ClaimedLane: lane, RequiredLane: ack.Lane}
	}

	now := r.clock()
	if accept {
		if err := ack.Acknowledge(now); err != nil {
			return nil, err
		}
	} else {
		if err := ack.Reject(now, reason); err != nil {
			return nil, err
		}
	}
	if err := r.rehashACK(pac, ack); err != nil {
		return nil, err
	}

	if !accept {
		if _, err := r.transitionLocked(ctx, entry, contracts.StateACKRejected, "agent "+agentID+" rejected dispatch", agentID); err != nil {
			return nil, err
		}
		r.persist(ctx, pac)
		return cloneACK(ack), nil
	}

	if err := entry.barrier.RecordACK(ack); err != nil {
		return nil, err
	}
	if entry.barrier.CheckReleaseCondition() {
		released, releasedAt := entry.barrier.Release()
		if released {
			if _, err := r.transitionLocked(ctx, entry, contracts.StateExecuting, "quorum barrier released", "registry"); err != nil {
				return nil, err
			}
			if _, err := r.proof.Append(prooflog.EntryBarrier, pacID, "registry", map[string]any{
				"released_at": releasedAt.UTC().Format(time.RFC3339Nano),
				"agents":      entry.barrier.RequiredAgents(),
			}); err != nil {
				return nil, err
			}
			r.metrics.RecordBarrierRelease(ctx, len(entry.barrier.RequiredAgents()))
			r.audit(ctx, audit.EventBarrier, "release", pacID, "registry", nil)
		}
	}

	r.persist(ctx, pac)
	return cloneACK(ack), nil
}

// SubmitWRAP accepts one agent's result artifact, validates it against
// the submission schema and the agent's ACK, and folds it into the
// aggregation. Completing the set advances the PAC to WRAP_SUBMITTED
// and immediately on to WRAP_VALIDATED or WRAP_REJECTED.
func (r *Registry) SubmitWRAP(ctx context.Context, pacID, agentID string, payload json.RawMessage, artifactRefs []string) (*contracts.WRAPArtifact, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	pac := entry.pac
	if pac.State != contracts.StateExecuting && pac.State != contracts.StateWRAPPending {
		return nil, &contracts.InvalidTransitionError{PACID: pacID, From: pac.State, To: contracts.StateWRAPPending}
	}

	wrap := &contracts.WRAPArtifact{
		WRAPID:       uuid.New().String(),
		PACID:        pacID,
		AgentID:      agentID,
		State:        contracts.WRAPPending,
		ArtifactRefs: append([]string{}, artifactRefs...),
		Payload:      append(json.RawMessage(nil), payload...),
		SubmittedAt:  r.clock(),
	}
	if err := r.validator.Validate(wrap, pac.ACKs[agentID]); err != nil {
		return nil, err
	}
	if err := entry.wraps.AddWRAP(wrap); err != nil {
		return nil, err
	}
	pac.WRAPs[wrap.WRAPID] = wrap

	if pac.State == contracts.StateExecuting {
		if _, err := r.transitionLocked(ctx, entry, contracts.StateWRAPPending, "first WRAP received", agentID); err != nil {
			return nil, err
		}
	}
	if entry.wraps.IsComplete() {
		if _, err := r.transitionLocked(ctx, entry, contracts.StateWRAPSubmitted, "WRAP set complete", "registry"); err != nil {
			return nil, err
		}
		target := contracts.StateWRAPValidated
		reason := "all WRAPs valid"
		if !entry.wraps.AllValid() {
			target = contracts.StateWRAPRejected
			reason = "WRAP set contains non-valid members"
		}
		if _, err := r.transitionLocked(ctx, entry, target, reason, "registry"); err != nil {
			return nil, err
		}
	} else {
		// AddWRAP changed member hashes without a state transition.
		if err := r.rehashPAC(pac); err != nil {
			return nil, err
		}
	}

	r.persist(ctx, pac)
	r.audit(ctx, audit.EventSystem, "submit_wrap", pacID, agentID, map[string]any{
		"wrap_id": wrap.WRAPID,
		"state":   string(wrap.State),
	})
	return wrap.Clone(), nil
}

// Transition applies an explicit lifecycle transition. The adjacency
// table is the sole authority: anything outside it fails closed with
// InvalidTransitionError and the PAC is untouched.
func (r *Registry) Transition(ctx context.Context, pacID string, target contracts.PACState, reason, actor string) (*contracts.TransitionRecord, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	rec, err := r.transitionLocked(ctx, entry, target, reason, actor)
	if err != nil {
		return nil, err
	}
	r.persist(ctx, entry.pac)
	return rec, nil
}

// FailExecution marks an EXECUTING or WRAP_PENDING PAC as failed.
func (r *Registry) FailExecution(ctx context.Context, pacID, reason, actor string) error {
	entry, err := r.entry(pacID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, err := r.transitionLocked(ctx, entry, contracts.StateExecutionFailed, reason, actor); err != nil {
		return err
	}
	r.persist(ctx, entry.pac)
	return nil
}

// RecordTrainingSignal appends a per-agent training attestation.
func (r *Registry) RecordTrainingSignal(ctx context.Context, pacID string, signal contracts.TrainingSignal) error {
	entry, err := r.entry(pacID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	signal.PACID = pacID
	if signal.SignalID == "" {
		signal.SignalID = uuid.New().String()
	}
	if signal.EmittedAt.IsZero() {
		signal.EmittedAt = r.clock()
	}
	hash, err := canonical.Hash(&signal)
	if err != nil {
		return fmt.Errorf("registry: hash training signal for %s: %w", pacID, err)
	}
	signal.ContentHash = hash
	entry.signals = append(entry.signals, signal)
	return nil
}

// RecordPositiveClosure appends a per-agent closure attestation.
func (r *Registry) RecordPositiveClosure(ctx context.Context, pacID string, closure contracts.PositiveClosure) error {
	entry, err := r.entry(pacID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	closure.PACID = pacID
	if closure.ClosureID == "" {
		closure.ClosureID = uuid.New().String()
	}
	if closure.EmittedAt.IsZero() {
		closure.EmittedAt = r.clock()
	}
	hash, err := canonical.Hash(&closure)
	if err != nil {
		return fmt.Errorf("registry: hash positive closure for %s: %w", pacID, err)
	}
	closure.ContentHash = hash
	entry.closures = append(entry.closures, closure)
	return nil
}

// EvaluateRG01 runs the primary review gate over the current WRAP set
// and attestation streams, and records the fresh result.
func (r *Registry) EvaluateRG01(ctx context.Context, pacID string) (*contracts.ReviewGateResult, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	result, err := r.gates.EvaluateRG01(entry.wraps.Snapshot(), entry.signals, entry.closures)
	if err != nil {
		return nil, err
	}
	entry.rg01 = result

	r.metrics.RecordGate(ctx, "rg01", result.Passed())
	r.audit(ctx, audit.EventGate, "rg01", pacID, "registry", map[string]any{
		"outcome":      string(result.Outcome),
		"fail_reasons": len(result.FailReasons),
	})
	return result, nil
}

// EvaluateBSRG01 runs the self-review gate over a submitted
// self-attestation and records the fresh result.
func (r *Registry) EvaluateBSRG01(ctx context.Context, pacID string, att gates.SelfAttestation) (*contracts.SelfReviewResult, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	att.PACID = pacID
	result, err := r.gates.EvaluateBSRG01(att)
	if err != nil {
		return nil, err
	}
	entry.bsrg01 = result

	r.metrics.RecordGate(ctx, "bsrg01", result.SelfAttestation)
	r.audit(ctx, audit.EventGate, "bsrg01", pacID, "registry", map[string]any{
		"self_attestation": result.SelfAttestation,
		"violations":       len(result.Violations),
	})
	return result, nil
}

// IssueBER issues the execution report for a WRAP_VALIDATED PAC,
// committing to the aggregation's sorted member hashes. A PAC carries
// at most one BER; reissuing is an immutability violation.
func (r *Registry) IssueBER(ctx context.Context, pacID string, finality contracts.BERFinality) (*contracts.BERRecord, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	pac := entry.pac
	if pac.State != contracts.StateWRAPValidated {
		return nil, &contracts.InvalidTransitionError{PACID: pacID, From: pac.State, To: contracts.StateBERIssued}
	}
	if pac.BER != nil {
		return nil, &contracts.ImmutabilityViolationError{Entity: "BERRecord", ID: pac.BER.BERID, State: string(pac.BER.Status)}
	}

	ber := &contracts.BERRecord{
		BERID:         uuid.New().String(),
		PACID:         pacID,
		WRAPSetID:     entry.wraps.SetHash(),
		ExecutionMode: contracts.ModeParallel,
		Status:        contracts.BERIssued,
		Finality:      finality,
		CommitStatus:  contracts.CommitPending,
		WRAPHashes:    entry.wraps.MemberHashes(),
		IssuedAt:      r.clock(),
	}
	hash, err := canonical.Hash(ber)
	if err != nil {
		return nil, fmt.Errorf("registry: hash BER for %s: %w", pacID, err)
	}
	ber.ContentHash = hash
	pac.BER = ber

	if _, err := r.transitionLocked(ctx, entry, contracts.StateBERIssued, "execution report issued", "registry"); err != nil {
		pac.BER = nil
		return nil, err
	}
	if _, err := r.proof.Append(prooflog.EntryBER, pacID, "registry", map[string]any{
		"ber_id":   ber.BERID,
		"ber_hash": ber.ContentHash,
		"finality": string(ber.Finality),
	}); err != nil {
		return nil, err
	}

	r.persist(ctx, pac)
	berCopy := *ber
	berCopy.WRAPHashes = append([]string(nil), ber.WRAPHashes...)
	return &berCopy, nil
}

// CommitLedger binds the PAC's BER hash and WRAP hashes to an external
// ledger reference through the proof log, producing the attestation the
// settlement evaluator requires.
func (r *Registry) CommitLedger(ctx context.Context, pacID, ledgerRef string) (*contracts.LedgerCommitAttestation, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	pac := entry.pac
	if pac.BER == nil {
		return nil, fmt.Errorf("registry: commit ledger for %s: no issued execution report", pacID)
	}

	att, err := r.proof.Commit(pacID, pac.BER.ContentHash, pac.BER.WRAPHashes, ledgerRef)
	if err != nil {
		return nil, err
	}

	pac.BER.CommitStatus = contracts.CommitCommitted
	pac.BER.CommitHash = att.ContentHash
	berHash, err := canonical.Hash(pac.BER)
	if err != nil {
		return nil, fmt.Errorf("registry: rehash BER for %s: %w", pacID, err)
	}
	pac.BER.ContentHash = berHash
	if err := r.rehashPAC(pac); err != nil {
		return nil, err
	}

	r.persist(ctx, pac)
	r.audit(ctx, audit.EventSystem, "ledger_commit", pacID, "ledger", map[string]any{
		"ledger_ref": ledgerRef,
	})
	return att, nil
}

// EvaluateSettlementReadiness snapshots the PAC's evidence under the
// entry lock, then runs the eight-check evaluator lock-free over the
// copies. The verdict is recorded and, when a store is attached, saved.
func (r *Registry) EvaluateSettlementReadiness(ctx context.Context, pacID string) (*contracts.SettlementReadinessVerdict, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	pac := entry.pac.Clone()
	set := entry.wraps.Snapshot()
	rg01 := entry.rg01
	bsrg01 := entry.bsrg01
	signals := append([]contracts.TrainingSignal(nil), entry.signals...)
	closures := append([]contracts.PositiveClosure(nil), entry.closures...)
	entry.mu.Unlock()

	attestation, _ := r.proof.Attestation(pacID)

	start := r.clock()
	verdict, err := r.evaluator.Evaluate(pac, &set, rg01, bsrg01, signals, closures, attestation)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	entry.verdict = verdict
	entry.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveVerdict(ctx, verdict); err != nil {
			return nil, err
		}
	}
	r.metrics.RecordVerdict(ctx, string(verdict.Status), r.clock().Sub(start))
	r.audit(ctx, audit.EventVerdict, "evaluate", pacID, "registry", map[string]any{
		"status":           string(verdict.Status),
		"blocking_reasons": len(verdict.BlockingReasons),
	})
	return verdict, nil
}

// Settle evaluates settlement readiness and, on ELIGIBLE, moves the PAC
// to SETTLED. A BLOCKED verdict returns ErrSettlementBlocked without a
// state change: settlement is retryable until the evidence is complete.
func (r *Registry) Settle(ctx context.Context, pacID string) (*contracts.SettlementReadinessVerdict, error) {
	verdict, err := r.EvaluateSettlementReadiness(ctx, pacID)
	if err != nil {
		return nil, err
	}
	if !verdict.Eligible() {
		return verdict, fmt.Errorf("%w: %s (%d reasons)", ErrSettlementBlocked, pacID, len(verdict.BlockingReasons))
	}

	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, err := r.transitionLocked(ctx, entry, contracts.StateSettled, "settlement verdict ELIGIBLE", "registry"); err != nil {
		return nil, err
	}
	r.persist(ctx, entry.pac)
	return verdict, nil
}

// BlockSettlement terminally moves a BER_ISSUED PAC to
// SETTLEMENT_BLOCKED. Operator-invoked when a blocked PAC will never
// become eligible.
func (r *Registry) BlockSettlement(ctx context.Context, pacID, reason, actor string) error {
	entry, err := r.entry(pacID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, err := r.transitionLocked(ctx, entry, contracts.StateSettlementBlocked, reason, actor); err != nil {
		return err
	}
	r.persist(ctx, entry.pac)
	return nil
}

// SweepDeadlines expires every PENDING ACK whose deadline has passed as
// of now, moving affected PACs to ACK_TIMEOUT. Returns the IDs of PACs
// that timed out. Timeouts are data driven: nothing fires until a sweep
// observes the deadline.
func (r *Registry) SweepDeadlines(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pacs))
	for id := range r.pacs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	var timedOut []string
	for _, id := range ids {
		entry, err := r.entry(id)
		if err != nil {
			continue
		}
		entry.mu.Lock()
		pac := entry.pac
		if pac.State != contracts.StateACKPending {
			entry.mu.Unlock()
			continue
		}

		expired := false
		for _, agent := range sortedACKAgents(pac.ACKs) {
			ack := pac.ACKs[agent]
			if ack.State != contracts.ACKPending {
				continue
			}
			did, err := ack.Expire(now)
			if err != nil {
				entry.mu.Unlock()
				return timedOut, err
			}
			if did {
				if err := r.rehashACK(pac, ack); err != nil {
					entry.mu.Unlock()
					return timedOut, err
				}
				expired = true
			}
		}
		if expired {
			if _, err := r.transitionLocked(ctx, entry, contracts.StateACKTimeout, "ACK deadline passed", "registry"); err != nil {
				entry.mu.Unlock()
				return timedOut, err
			}
			r.persist(ctx, pac)
			timedOut = append(timedOut, id)
		}
		entry.mu.Unlock()
	}
	return timedOut, nil
}

// Snapshot returns a deep copy of the PAC.
func (r *Registry) Snapshot(pacID string) (*contracts.PAC, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.pac.Clone(), nil
}

// WRAPSet returns a copy-on-read view of the PAC's aggregation.
func (r *Registry) WRAPSet(pacID string) (contracts.MultiAgentWRAPSet, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return contracts.MultiAgentWRAPSet{}, err
	}
	return entry.wraps.Snapshot(), nil
}

// LatestVerdict returns the most recently evaluated verdict.
func (r *Registry) LatestVerdict(pacID string) (*contracts.SettlementReadinessVerdict, error) {
	entry, err := r.entry(pacID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.verdict == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVerdict, pacID)
	}
	v := *entry.verdict
	v.BlockingReasons = append([]contracts.BlockingReason(nil), entry.verdict.BlockingReasons...)
	return &v, nil
}

// List returns the sorted IDs of all registered PACs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pacs))
	for id := range r.pacs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) entry(pacID string) (*pacEntry, error) {
	r.mu.RLock()
	entry, ok := r.pacs[pacID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPACNotFound, pacID)
	}
	return entry, nil
}

// transitionLocked applies a lifecycle transition to an entry whose
// mutex the caller holds, mirroring it into the proof log, the metrics,
// and the dependency graph.
func (r *Registry) transitionLocked(ctx context.Context, entry *pacEntry, target contracts.PACState, reason, actor string) (*contracts.TransitionRecord, error) {
	pac := entry.pac
	rec, err := r.machine.Transition(pac, target, reason, actor)
	if err != nil {
		return nil, err
	}
	if _, err := r.proof.Append(prooflog.EntryTransition, pac.PACID, actor, map[string]any{
		"from":        string(rec.FromState),
		"to":          string(rec.ToState),
		"reason":      rec.Reason,
		"record_hash": rec.ContentHash,
	}); err != nil {
		return nil, err
	}
	r.metrics.RecordTransition(ctx, string(rec.FromState), string(rec.ToState))
	r.graphSync(pac.PACID, target)
	r.audit(ctx, audit.EventTransition, "transition", pac.PACID, actor, map[string]any{
		"from":   string(rec.FromState),
		"to":     string(rec.ToState),
		"reason": rec.Reason,
	})
	return rec, nil
}

// graphSync mirrors lifecycle state into the dependency graph.
func (r *Registry) graphSync(pacID string, state contracts.PACState) {
	switch {
	case state == contracts.StateSettled:
		_ = r.graph.SetStatus(pacID, depgraph.NodeFinalized)
	case state.Terminal():
		_ = r.graph.SetStatus(pacID, depgraph.NodeBlocked)
	case state == contracts.StateBERIssued:
		_ = r.graph.SetStatus(pacID, depgraph.NodeReady)
	}
}

func (r *Registry) rehashACK(pac *contracts.PAC, ack *contracts.AgentACK) error {
	hash, err := canonical.Hash(ack)
	if err != nil {
		return fmt.Errorf("registry: rehash ACK %s/%s: %w", pac.PACID, ack.AgentID, err)
	}
	ack.ContentHash = hash
	return r.rehashPAC(pac)
}

func (r *Registry) rehashPAC(pac *contracts.PAC) error {
	hash, err := canonical.Hash(pac)
	if err != nil {
		return fmt.Errorf("registry: rehash PAC %s: %w", pac.PACID, err)
	}
	pac.ContentHash = hash
	return nil
}

// persist writes the PAC through the attached store, if any. Save
// failures are surfaced through the audit stream rather than failing
// the governance operation: in-memory state is the source of truth.
func (r *Registry) persist(ctx context.Context, pac *contracts.PAC) {
	if r.store == nil {
		return
	}
	if err := r.store.SavePAC(ctx, pac); err != nil {
		r.audit(ctx, audit.EventSystem, "persist_failed", pac.PACID, "registry", map[string]any{
			"error": err.Error(),
		})
	}
}

func (r *Registry) audit(ctx context.Context, eventType audit.EventType, action, pacID, actor string, metadata map[string]any) {
	if r.auditLog == nil {
		return
	}
	_ = r.auditLog.Record(ctx, eventType, action, pacID, actor, metadata)
}

func cloneACK(ack *contracts.AgentACK) *contracts.AgentACK {
	cp := *ack
	if ack.AcknowledgedAt != nil {
		t := *ack.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	return &cp
}

func sortedACKAgents(acks map[string]*contracts.AgentACK) []string {
	agents := make([]string, 0, len(acks))
	for agent := range acks {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}
