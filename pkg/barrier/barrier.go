// Package barrier implements the quorum gate that holds parallel
// execution until every required agent has acknowledged.
//
// Every refusal is typed: out-of-roster agents fail with
// UnexpectedContributorError, cross-lane actors with UnauthorizedLaneError,
// and in both cases nothing is recorded. Release latches exactly once.
package barrier

import (
	"sort"
	"sync"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// Barrier is the quorum gate for one PAC and one execution mode.
type Barrier struct {
	mu sync.RWMutex

	pacID string
	mode  contracts.ExecutionMode

	// required maps agent ID to its authorized lane.
	required map[string]string
	evidence map[string]*contracts.AgentACK

	released   bool
	releasedAt time.Time

	clock func() time.Time
}

// New creates a barrier requiring one ACK from every agent in lanes
// (agent ID -> authorized lane).
func New(pacID string, mode contracts.ExecutionMode, lanes map[string]string) *Barrier {
	required := make(map[string]string, len(lanes))
	for agent, lane := range lanes {
		required[agent] = lane
	}
	return &Barrier{
		pacID:    pacID,
		mode:     mode,
		required: required,
		evidence: make(map[string]*contracts.AgentACK, len(lanes)),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (b *Barrier) WithClock(clock func() time.Time) *Barrier {
	b.clock = clock
	return b
}

// Mode returns the barrier's execution mode.
func (b *Barrier) Mode() contracts.ExecutionMode { return b.mode }

// RequiredAgents returns the sorted roster.
func (b *Barrier) RequiredAgents() []string {
	agents := make([]string, 0, len(b.required))
	for agent := range b.required {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}

// RecordACK records an agent's acknowledgement as barrier evidence.
// Lane authorization and roster membership are hard preconditions,
// checked before any state is written.
func (b *Barrier) RecordACK(ack *contracts.AgentACK) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	requiredLane, ok := b.required[ack.AgentID]
	if !ok {
		return &contracts.UnexpectedContributorError{PACID: b.pacID, AgentID: ack.AgentID, Kind: "ACK"}
	}
	if ack.Lane != requiredLane {
		return &contracts.UnauthorizedLaneError{AgentID: ack.AgentID, ClaimedLane: ack.Lane, RequiredLane: requiredLane}
	}

	b.evidence[ack.AgentID] = ack
	return nil
}

// CheckReleaseCondition reports whether the received-evidence key set
// covers the required roster. Pure; takes only a read lock.
func (b *Barrier) CheckReleaseCondition() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conditionMet()
}

func (b *Barrier) conditionMet() bool {
	for agent := range b.required {
		if _, ok := b.evidence[agent]; !ok {
			return false
		}
	}
	return true
}

// Release latches the barrier open if the release condition holds.
// Once released, repeated calls are no-ops: the condition is never
// re-evaluated and the timestamp is never re-stamped.
func (b *Barrier) Release() (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return true, b.releasedAt
	}
	if !b.conditionMet() {
		return false, time.Time{}
	}
	b.released = true
	b.releasedAt = b.clock()
	return true, b.releasedAt
}

// Released reports the latch state and its timestamp.
func (b *Barrier) Released() (bool, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released, b.releasedAt
}

// MissingAgents returns required agents with no evidence yet, sorted.
func (b *Barrier) MissingAgents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	missing := make([]string, 0)
	for agent := range b.required {
		if _, ok := b.evidence[agent]; !ok {
			missing = append(missing, agent)
		}
	}
	sort.Strings(missing)
	return missing
}
