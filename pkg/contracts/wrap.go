package contracts

import (
	"encoding/json"
	"time"
)

// WRAPValidationState classifies a per-agent result artifact.
type WRAPValidationState string

const (
	WRAPPending     WRAPValidationState = "PENDING"
	WRAPSubmitted   WRAPValidationState = "SUBMITTED"
	WRAPValid       WRAPValidationState = "VALID"
	WRAPInvalid     WRAPValidationState = "INVALID"
	WRAPSchemaError WRAPValidationState = "SCHEMA_ERROR"
	WRAPMissingACK  WRAPValidationState = "MISSING_ACK"
)

// Finalized reports whether the artifact has left PENDING. A finalized
// WRAP is immutable.
func (s WRAPValidationState) Finalized() bool {
	return s != WRAPPending
}

// WRAPArtifact is one agent's result submission for a PAC.
type WRAPArtifact struct {
	WRAPID  string `json:"wrap_id"`
	PACID   string `json:"pac_id"`
	AgentID string `json:"agent_id"`

	State        WRAPValidationState `json:"state"`
	ArtifactRefs []string            `json:"artifact_refs"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
	FailDetail   string              `json:"fail_detail,omitempty"`
	SubmittedAt  time.Time           `json:"submitted_at"`

	ContentHash string `json:"content_hash"`
}

// Finalize moves the artifact out of PENDING exactly once.
func (w *WRAPArtifact) Finalize(state WRAPValidationState, detail string) error {
	if w.State.Finalized() {
		return &ImmutabilityViolationError{Entity: "WRAPArtifact", ID: w.WRAPID, State: string(w.State)}
	}
	w.State = state
	w.FailDetail = detail
	return nil
}

// CanonicalFields returns the fields covered by the WRAP's content hash.
func (w *WRAPArtifact) CanonicalFields() map[string]any {
	return map[string]any{
		"wrap_id":       w.WRAPID,
		"pac_id":        w.PACID,
		"agent_id":      w.AgentID,
		"state":         string(w.State),
		"artifact_refs": append([]string{}, w.ArtifactRefs...),
		"payload":       string(w.Payload),
		"fail_detail":   w.FailDetail,
		"submitted_at":  w.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Clone returns a deep copy.
func (w *WRAPArtifact) Clone() *WRAPArtifact {
	cp := *w
	cp.ArtifactRefs = append([]string(nil), w.ArtifactRefs...)
	cp.Payload = append(json.RawMessage(nil), w.Payload...)
	return &cp
}

// MultiAgentWRAPSet is the aggregation record for one PAC: the expected
// agent roster and the WRAPs collected so far, keyed by agent.
// Mutation goes through wrapset.Aggregator, which recomputes SetHash from
// the sorted member hashes on every change.
type MultiAgentWRAPSet struct {
	PACID          string                   `json:"pac_id"`
	ExpectedAgents []string                 `json:"expected_agents"`
	Collected      map[string]*WRAPArtifact `json:"collected"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	SetHash        string                   `json:"set_hash"`
}
