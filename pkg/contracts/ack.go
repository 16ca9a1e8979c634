package contracts

import "time"

// ACKState is the acknowledgement state of one (PAC, agent) pair.
type ACKState string

const (
	ACKPending      ACKState = "PENDING"
	ACKAcknowledged ACKState = "ACKNOWLEDGED"
	ACKRejected     ACKState = "REJECTED"
	ACKTimeout      ACKState = "TIMEOUT"
)

// TerminalACK reports whether the state is terminal. An ACK transitions
// exactly once out of PENDING, then freezes.
func (s ACKState) TerminalACK() bool {
	return s != ACKPending
}

// ExecutionMode declares how agents execute under a barrier.
// Parallel is the only mode in this design.
type ExecutionMode string

const ModeParallel ExecutionMode = "PARALLEL"

// AgentACK is one agent's acknowledgement of a dispatched PAC.
// Created PENDING with a deadline; resolved by explicit response or by
// the deadline sweep. Timeouts are data — a deadline timestamp — not a
// running timer.
type AgentACK struct {
	PACID   string `json:"pac_id"`
	AgentID string `json:"agent_id"`
	Lane    string `json:"lane"`

	State          ACKState   `json:"state"`
	RequestedAt    time.Time  `json:"requested_at"`
	Deadline       time.Time  `json:"deadline"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	LatencyMS      int64      `json:"latency_ms"`
	RejectReason   string     `json:"reject_reason,omitempty"`

	ContentHash string `json:"content_hash"`
}

// Acknowledge resolves a PENDING ACK to ACKNOWLEDGED, stamping latency.
func (a *AgentACK) Acknowledge(now time.Time) error {
	if a.State.TerminalACK() {
		return &ImmutabilityViolationError{Entity: "AgentACK", ID: a.AgentID, State: string(a.State)}
	}
	a.State = ACKAcknowledged
	a.AcknowledgedAt = &now
	a.LatencyMS = now.Sub(a.RequestedAt).Milliseconds()
	return nil
}

// Reject resolves a PENDING ACK to REJECTED.
func (a *AgentACK) Reject(now time.Time, reason string) error {
	if a.State.TerminalACK() {
		return &ImmutabilityViolationError{Entity: "AgentACK", ID: a.AgentID, State: string(a.State)}
	}
	a.State = ACKRejected
	a.AcknowledgedAt = &now
	a.LatencyMS = now.Sub(a.RequestedAt).Milliseconds()
	a.RejectReason = reason
	return nil
}

// Expire resolves a PENDING ACK past its deadline to TIMEOUT. Callers
// pass the sweep time; an ACK before its deadline is left untouched.
func (a *AgentACK) Expire(now time.Time) (bool, error) {
	if a.State.TerminalACK() {
		return false, &ImmutabilityViolationError{Entity: "AgentACK", ID: a.AgentID, State: string(a.State)}
	}
	if now.Before(a.Deadline) {
		return false, nil
	}
	a.State = ACKTimeout
	a.LatencyMS = a.Deadline.Sub(a.RequestedAt).Milliseconds()
	return true, nil
}

// CanonicalFields returns the fields covered by the ACK's content hash.
func (a *AgentACK) CanonicalFields() map[string]any {
	acked := ""
	if a.AcknowledgedAt != nil {
		acked = a.AcknowledgedAt.UTC().Format(time.RFC3339Nano)
	}
	return map[string]any{
		"pac_id":          a.PACID,
		"agent_id":        a.AgentID,
		"lane":            a.Lane,
		"state":           string(a.State),
		"requested_at":    a.RequestedAt.UTC().Format(time.RFC3339Nano),
		"deadline":        a.Deadline.UTC().Format(time.RFC3339Nano),
		"acknowledged_at": acked,
		"latency_ms":      a.LatencyMS,
		"reject_reason":   a.RejectReason,
	}
}
