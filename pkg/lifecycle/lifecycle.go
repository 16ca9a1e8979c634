// Package lifecycle owns the PAC state machine: a fixed adjacency table
// and the single sanctioned mutation path for a PAC's state.
//
// Validation happens before any field write. A rejected transition
// returns InvalidTransitionError and leaves the PAC byte-identical —
// fail closed, no partial writes.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// adjacency is the allowed-transition table. Happy path runs
// DRAFT -> ... -> SETTLED; each intermediate state also edges into its
// failure state. Terminal states have no entry.
var adjacency = map[contracts.PACState][]contracts.PACState{
	contracts.StateDraft:         {contracts.StateACKPending},
	contracts.StateACKPending:    {contracts.StateExecuting, contracts.StateACKTimeout, contracts.StateACKRejected},
	contracts.StateExecuting:     {contracts.StateWRAPPending, contracts.StateExecutionFailed},
	contracts.StateWRAPPending:   {contracts.StateWRAPSubmitted, contracts.StateExecutionFailed},
	contracts.StateWRAPSubmitted: {contracts.StateWRAPValidated, contracts.StateWRAPRejected},
	contracts.StateWRAPValidated: {contracts.StateBERIssued, contracts.StateWRAPRejected},
	contracts.StateBERIssued:     {contracts.StateSettled, contracts.StateSettlementBlocked},
}

// Machine applies transitions to PACs. It holds no lock itself: callers
// (the registry) serialize all mutations for one PAC.
type Machine struct {
	clock func() time.Time
}

// NewMachine creates a state machine with the wall clock.
func NewMachine() *Machine {
	return &Machine{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (m *Machine) WithClock(clock func() time.Time) *Machine {
	m.clock = clock
	return m
}

// CanTransition reports whether target is reachable from current in one
// step.
func CanTransition(current, target contracts.PACState) bool {
	for _, next := range adjacency[current] {
		if next == target {
			return true
		}
	}
	return false
}

// Targets returns the states reachable from current in one step.
func Targets(current contracts.PACState) []contracts.PACState {
	return append([]contracts.PACState(nil), adjacency[current]...)
}

// Transition moves pac to target, appending an audit record and
// refreshing the cached settlement classification. On failure the PAC is
// left unmodified.
func (m *Machine) Transition(pac *contracts.PAC, target contracts.PACState, reason, actor string) (*contracts.TransitionRecord, error) {
	if !CanTransition(pac.State, target) {
		return nil, &contracts.InvalidTransitionError{PACID: pac.PACID, From: pac.State, To: target}
	}

	rec := contracts.TransitionRecord{
		RecordID:  uuid.New().String(),
		FromState: pac.State,
		ToState:   target,
		Reason:    reason,
		Actor:     actor,
		Timestamp: m.clock(),
	}
	hash, err := canonical.HashValue(map[string]any{
		"pac_id":     pac.PACID,
		"from_state": string(rec.FromState),
		"to_state":   string(rec.ToState),
		"reason":     rec.Reason,
		"actor":      rec.Actor,
		"timestamp":  rec.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: hash transition record: %w", err)
	}
	rec.ContentHash = hash

	pac.State = target
	pac.Class = ClassFor(target)
	pac.Transitions = append(pac.Transitions, rec)

	pacHash, err := canonical.Hash(pac)
	if err != nil {
		// The record mutation already happened; a hash failure here is a
		// programming error in CanonicalFields, not recoverable state.
		return nil, fmt.Errorf("lifecycle: rehash PAC %s: %w", pac.PACID, err)
	}
	pac.ContentHash = pacHash

	return &rec, nil
}

// ClassFor maps a lifecycle state to its settlement classification.
func ClassFor(state contracts.PACState) contracts.SettlementClass {
	switch state {
	case contracts.StateSettled:
		return contracts.ClassSettled
	case contracts.StateBERIssued:
		return contracts.ClassSettleable
	case contracts.StateACKTimeout, contracts.StateACKRejected,
		contracts.StateExecutionFailed, contracts.StateWRAPRejected,
		contracts.StateSettlementBlocked:
		return contracts.ClassUnsettleable
	case contracts.StateDraft, contracts.StateACKPending, contracts.StateExecuting,
		contracts.StateWRAPPending, contracts.StateWRAPSubmitted, contracts.StateWRAPValidated:
		return contracts.ClassInProgress
	}
	return contracts.ClassInProgress
}

// NewPAC constructs a dispatched PAC in DRAFT with its initial hash.
func (m *Machine) NewPAC(pacID, runtimeID string) (*contracts.PAC, error) {
	pac := &contracts.PAC{
		PACID:        pacID,
		RuntimeID:    runtimeID,
		State:        contracts.StateDraft,
		Class:        contracts.ClassInProgress,
		Transitions:  []contracts.TransitionRecord{},
		ACKs:         map[string]*contracts.AgentACK{},
		WRAPs:        map[string]*contracts.WRAPArtifact{},
		DispatchedAt: m.clock(),
	}
	hash, err := canonical.Hash(pac)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: hash new PAC %s: %w", pacID, err)
	}
	pac.ContentHash = hash
	return pac, nil
}
