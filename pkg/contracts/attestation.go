package contracts

import "time"

// TrainingSignal is a per-agent attestation that execution produced a
// usable training observation. Append-only; never mutated or retracted.
type TrainingSignal struct {
	SignalID  string    `json:"signal_id"`
	PACID     string    `json:"pac_id"`
	AgentID   string    `json:"agent_id"`
	Kind      string    `json:"kind"`
	EmittedAt time.Time `json:"emitted_at"`

	ContentHash string `json:"content_hash"`
}

// CanonicalFields returns the fields covered by the signal's hash.
func (t *TrainingSignal) CanonicalFields() map[string]any {
	return map[string]any{
		"signal_id":  t.SignalID,
		"pac_id":     t.PACID,
		"agent_id":   t.AgentID,
		"kind":       t.Kind,
		"emitted_at": t.EmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

// PositiveClosure is a per-agent attestation that the agent closed out
// its share of the PAC. Append-only.
type PositiveClosure struct {
	ClosureID string    `json:"closure_id"`
	PACID     string    `json:"pac_id"`
	AgentID   string    `json:"agent_id"`
	EmittedAt time.Time `json:"emitted_at"`

	ScopeComplete     bool `json:"scope_complete"`
	NoViolations      bool `json:"no_violations"`
	ReadyForNextStage bool `json:"ready_for_next_stage"`

	ContentHash string `json:"content_hash"`
}

// Valid reports whether the closure counts toward gate evaluation:
// all three sub-attestations must hold.
func (c *PositiveClosure) Valid() bool {
	return c.ScopeComplete && c.NoViolations && c.ReadyForNextStage
}

// CanonicalFields returns the fields covered by the closure's hash.
func (c *PositiveClosure) CanonicalFields() map[string]any {
	return map[string]any{
		"closure_id":           c.ClosureID,
		"pac_id":               c.PACID,
		"agent_id":             c.AgentID,
		"emitted_at":           c.EmittedAt.UTC().Format(time.RFC3339Nano),
		"scope_complete":       c.ScopeComplete,
		"no_violations":        c.NoViolations,
		"ready_for_next_stage": c.ReadyForNextStage,
	}
}
