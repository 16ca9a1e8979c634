// Package contracts defines the governed records of the ChainBridge
// settlement control plane: PACs, agent acknowledgements, WRAP artifacts,
// execution reports, review-gate results, and settlement verdicts.
//
// Records here are plain data. Every mutation happens through a sanctioned
// engine (lifecycle, barrier, aggregator); content hashes are computed by
// callers via pkg/canonical, never implicitly.
package contracts

import "time"

// PACState is the lifecycle state of a PAC. The set is closed; every
// transition site switches exhaustively over it.
type PACState string

const (
	StateDraft         PACState = "DRAFT"
	StateACKPending    PACState = "ACK_PENDING"
	StateExecuting     PACState = "EXECUTING"
	StateWRAPPending   PACState = "WRAP_PENDING"
	StateWRAPSubmitted PACState = "WRAP_SUBMITTED"
	StateWRAPValidated PACState = "WRAP_VALIDATED"
	StateBERIssued     PACState = "BER_ISSUED"
	StateSettled       PACState = "SETTLED"

	// Terminal failure states. No outgoing edges.
	StateACKTimeout        PACState = "ACK_TIMEOUT"
	StateACKRejected       PACState = "ACK_REJECTED"
	StateExecutionFailed   PACState = "EXECUTION_FAILED"
	StateWRAPRejected      PACState = "WRAP_REJECTED"
	StateSettlementBlocked PACState = "SETTLEMENT_BLOCKED"
)

// Terminal reports whether the state has no outgoing edges.
func (s PACState) Terminal() bool {
	switch s {
	case StateSettled, StateACKTimeout, StateACKRejected,
		StateExecutionFailed, StateWRAPRejected, StateSettlementBlocked:
		return true
	}
	return false
}

// SettlementClass is the cached settlement classification of a PAC,
// refreshed on every lifecycle transition. It is advisory: the
// settlement evaluator always recomputes from evidence.
type SettlementClass string

const (
	ClassUnsettleable SettlementClass = "UNSETTLEABLE"
	ClassInProgress   SettlementClass = "IN_PROGRESS"
	ClassSettleable   SettlementClass = "SETTLEABLE"
	ClassSettled      SettlementClass = "SETTLED"
)

// TransitionRecord is one append-only entry in a PAC's audit trail.
type TransitionRecord struct {
	RecordID    string    `json:"record_id"`
	FromState   PACState  `json:"from_state"`
	ToState     PACState  `json:"to_state"`
	Reason      string    `json:"reason"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	ContentHash string    `json:"content_hash"`
}

// PAC is a unit of dispatched, governed work. Created at dispatch,
// mutated only through the lifecycle machine, never deleted.
type PAC struct {
	PACID     string `json:"pac_id"`
	RuntimeID string `json:"runtime_id"`

	State       PACState           `json:"state"`
	Class       SettlementClass    `json:"settlement_class"`
	Transitions []TransitionRecord `json:"transitions"`

	// ACKs is keyed by agent ID; WRAPs by WRAP ID.
	ACKs  map[string]*AgentACK     `json:"acks"`
	WRAPs map[string]*WRAPArtifact `json:"wraps"`

	BER *BERRecord `json:"ber,omitempty"`

	DispatchedAt time.Time `json:"dispatched_at"`
	ContentHash  string    `json:"content_hash"`
}

// CanonicalFields returns the fields covered by the PAC's content hash.
// Per-entity hashes (ACKs, WRAPs, BER) stand in for their records so the
// PAC hash changes whenever any member changes.
func (p *PAC) CanonicalFields() map[string]any {
	ackHashes := make(map[string]string, len(p.ACKs))
	for agent, ack := range p.ACKs {
		ackHashes[agent] = ack.ContentHash
	}
	wrapHashes := make(map[string]string, len(p.WRAPs))
	for id, w := range p.WRAPs {
		wrapHashes[id] = w.ContentHash
	}
	berHash := ""
	if p.BER != nil {
		berHash = p.BER.ContentHash
	}
	return map[string]any{
		"pac_id":           p.PACID,
		"runtime_id":       p.RuntimeID,
		"state":            string(p.State),
		"settlement_class": string(p.Class),
		"transition_count": len(p.Transitions),
		"ack_hashes":       ackHashes,
		"wrap_hashes":      wrapHashes,
		"ber_hash":         berHash,
	}
}

// Clone returns a deep copy suitable for lock-free projection reads.
func (p *PAC) Clone() *PAC {
	cp := *p
	cp.Transitions = append([]TransitionRecord(nil), p.Transitions...)
	cp.ACKs = make(map[string]*AgentACK, len(p.ACKs))
	for k, v := range p.ACKs {
		ack := *v
		cp.ACKs[k] = &ack
	}
	cp.WRAPs = make(map[string]*WRAPArtifact, len(p.WRAPs))
	for k, v := range p.WRAPs {
		w := v.Clone()
		cp.WRAPs[k] = w
	}
	if p.BER != nil {
		ber := *p.BER
		ber.WRAPHashes = append([]string(nil), p.BER.WRAPHashes...)
		cp.BER = &ber
	}
	return &cp
}
