package contracts

import "time"

// GateOutcome is the binary result of a review gate.
type GateOutcome string

const (
	GatePass GateOutcome = "PASS"
	GateFail GateOutcome = "FAIL"
)

// ReviewGateResult is the outcome of the primary review gate (RG-01)
// over a PAC's aggregated WRAP set and attestation streams. Evaluation
// is idempotent and re-runnable; prior results are never trusted without
// re-evaluation.
type ReviewGateResult struct {
	GateID      string      `json:"gate_id"`
	PACID       string      `json:"pac_id"`
	Outcome     GateOutcome `json:"outcome"`
	FailReasons []string    `json:"fail_reasons"`

	TrainingSignalsPresent bool `json:"training_signals_present"`
	PositiveClosurePresent bool `json:"positive_closure_present"`

	EvaluatedAt time.Time `json:"evaluated_at"`
	ContentHash string    `json:"content_hash"`
}

// Passed reports whether the gate passed with no fail reasons.
func (r *ReviewGateResult) Passed() bool {
	return r.Outcome == GatePass && len(r.FailReasons) == 0
}

// CanonicalFields returns the fields covered by the result's hash.
// EvaluatedAt and GateID are excluded: re-running the gate over the same
// evidence must reproduce the same hash.
func (r *ReviewGateResult) CanonicalFields() map[string]any {
	return map[string]any{
		"pac_id":                   r.PACID,
		"outcome":                  string(r.Outcome),
		"fail_reasons":             append([]string{}, r.FailReasons...),
		"training_signals_present": r.TrainingSignalsPresent,
		"positive_closure_present": r.PositiveClosurePresent,
	}
}

// SelfReviewResult is the outcome of the self-review gate (BSRG-01):
// four boolean sub-attestations plus an empty violations list.
// SelfAttestation is the logical AND of all five conditions.
type SelfReviewResult struct {
	GateID string `json:"gate_id"`
	PACID  string `json:"pac_id"`

	NoOverride                 bool `json:"no_override"`
	NoDrift                    bool `json:"no_drift"`
	ParallelSemanticsRespected bool `json:"parallel_semantics_respected"`
	TrainingClosureVerified    bool `json:"training_closure_verified"`

	Violations      []string `json:"violations"`
	SelfAttestation bool     `json:"self_attestation"`

	EvaluatedAt time.Time `json:"evaluated_at"`
	ContentHash string    `json:"content_hash"`
}

// CanonicalFields returns the fields covered by the result's hash.
func (r *SelfReviewResult) CanonicalFields() map[string]any {
	return map[string]any{
		"pac_id":                       r.PACID,
		"no_override":                  r.NoOverride,
		"no_drift":                     r.NoDrift,
		"parallel_semantics_respected": r.ParallelSemanticsRespected,
		"training_closure_verified":    r.TrainingClosureVerified,
		"violations":                   append([]string{}, r.Violations...),
		"self_attestation":             r.SelfAttestation,
	}
}
