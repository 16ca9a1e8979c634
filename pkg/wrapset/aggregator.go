// Package wrapset aggregates per-agent WRAP artifacts for one PAC and
// exposes the completeness and validity predicates the review gates
// evaluate.
//
// The set hash is recomputed from the sorted member hashes on every
// mutation. It is never cached independently of state, so a stale-hash /
// stale-state divergence cannot occur.
package wrapset

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// Aggregator collects one WRAP per expected agent.
type Aggregator struct {
	mu sync.RWMutex

	pacID    string
	expected []string

	// collected is keyed by agent ID — one artifact per agent.
	collected   map[string]*contracts.WRAPArtifact
	completedAt *time.Time
	setHash     string

	clock func() time.Time
}

// New creates an aggregator expecting one WRAP from each listed agent.
func New(pacID string, expectedAgents []string) *Aggregator {
	expected := append([]string(nil), expectedAgents...)
	sort.Strings(expected)
	return &Aggregator{
		pacID:     pacID,
		expected:  expected,
		collected: make(map[string]*contracts.WRAPArtifact, len(expected)),
		clock:     time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	a.clock = clock
	return a
}

// AddWRAP stores an artifact under its agent key. Submissions from
// agents outside the expected set are a hard error, never a silent drop.
// Completing the set stamps the aggregation time exactly once.
func (a *Aggregator) AddWRAP(wrap *contracts.WRAPArtifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isExpected(wrap.AgentID) {
		return &contracts.UnexpectedContributorError{PACID: a.pacID, AgentID: wrap.AgentID, Kind: "WRAP"}
	}
	if existing, ok := a.collected[wrap.AgentID]; ok && existing.State.Finalized() {
		return &contracts.ImmutabilityViolationError{Entity: "WRAPArtifact", ID: existing.WRAPID, State: string(existing.State)}
	}

	a.collected[wrap.AgentID] = wrap
	if err := a.recomputeHash(); err != nil {
		return err
	}

	if a.completedAt == nil && a.isComplete() {
		now := a.clock()
		a.completedAt = &now
	}
	return nil
}

func (a *Aggregator) isExpected(agentID string) bool {
	for _, e := range a.expected {
		if e == agentID {
			return true
		}
	}
	return false
}

func (a *Aggregator) isComplete() bool {
	return len(a.collected) == len(a.expected)
}

// recomputeHash derives the set hash from the sorted member WRAP hashes.
// Callers hold the write lock.
func (a *Aggregator) recomputeHash() error {
	hashes := make([]string, 0, len(a.collected))
	for _, w := range a.collected {
		hashes = append(hashes, w.ContentHash)
	}
	sort.Strings(hashes)
	h, err := canonical.HashValue(map[string]any{
		"pac_id":      a.pacID,
		"wrap_hashes": hashes,
	})
	if err != nil {
		return fmt.Errorf("wrapset: recompute set hash: %w", err)
	}
	a.setHash = h
	return nil
}

// IsComplete reports whether the collected key set equals the expected
// key set.
func (a *Aggregator) IsComplete() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isComplete()
}

// AllValid reports whether every collected WRAP is VALID. It
// short-circuits false on the first non-VALID entry and is false for an
// incomplete set only if a collected member fails — completeness is a
// separate predicate.
func (a *Aggregator) AllValid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, w := range a.collected {
		if w.State != contracts.WRAPValid {
			return false
		}
	}
	return true
}

// MissingAgents returns expected minus collected, sorted.
func (a *Aggregator) MissingAgents() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	missing := make([]string, 0)
	for _, e := range a.expected {
		if _, ok := a.collected[e]; !ok {
			missing = append(missing, e)
		}
	}
	return missing
}

// SetHash returns the current aggregation hash.
func (a *Aggregator) SetHash() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.setHash
}

// MemberHashes returns the sorted member WRAP hashes.
func (a *Aggregator) MemberHashes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	hashes := make([]string, 0, len(a.collected))
	for _, w := range a.collected {
		hashes = append(hashes, w.ContentHash)
	}
	sort.Strings(hashes)
	return hashes
}

// Snapshot returns a copy-on-read view for projections and gate
// evaluation.
func (a *Aggregator) Snapshot() contracts.MultiAgentWRAPSet {
	a.mu.RLock()
	defer a.mu.RUnlock()

	collected := make(map[string]*contracts.WRAPArtifact, len(a.collected))
	for k, v := range a.collected {
		collected[k] = v.Clone()
	}
	var completed *time.Time
	if a.completedAt != nil {
		t := *a.completedAt
		completed = &t
	}
	return contracts.MultiAgentWRAPSet{
		PACID:          a.pacID,
		ExpectedAgents: append([]string(nil), a.expected...),
		Collected:      collected,
		CompletedAt:    completed,
		SetHash:        a.setHash,
	}
}
