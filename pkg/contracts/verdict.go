package contracts

import "time"

// VerdictStatus is strictly binary. There is no partial eligibility and
// no manual override path.
type VerdictStatus string

const (
	VerdictEligible VerdictStatus = "ELIGIBLE"
	VerdictBlocked  VerdictStatus = "BLOCKED"
)

// BlockingReasonCode categorizes why settlement is blocked. Each code
// maps to exactly one of the evaluator's eight checks.
type BlockingReasonCode string

const (
	ReasonMissingACK           BlockingReasonCode = "MISSING_ACK"
	ReasonACKTimeout           BlockingReasonCode = "ACK_TIMEOUT"
	ReasonACKRejected          BlockingReasonCode = "ACK_REJECTED"
	ReasonACKLatencyExceeded   BlockingReasonCode = "ACK_LATENCY_EXCEEDED"
	ReasonMissingWRAP          BlockingReasonCode = "MISSING_WRAP"
	ReasonWRAPValidationFailed BlockingReasonCode = "WRAP_VALIDATION_FAILED"
	ReasonRG01NotEvaluated     BlockingReasonCode = "RG01_NOT_EVALUATED"
	ReasonRG01Failed           BlockingReasonCode = "RG01_FAILED"
	ReasonBSRG01NotAttested    BlockingReasonCode = "BSRG01_NOT_ATTESTED"
	ReasonBSRG01Failed         BlockingReasonCode = "BSRG01_FAILED"
	ReasonBERNotIssued         BlockingReasonCode = "BER_NOT_ISSUED"
	ReasonBERProvisional       BlockingReasonCode = "BER_FINALITY_PROVISIONAL"
	ReasonTrainingMissing      BlockingReasonCode = "TRAINING_SIGNALS_MISSING"
	ReasonClosureMissing       BlockingReasonCode = "POSITIVE_CLOSURE_MISSING"
	ReasonClosureInvalid       BlockingReasonCode = "POSITIVE_CLOSURE_INVALID"
	ReasonLedgerCommitPending  BlockingReasonCode = "LEDGER_COMMIT_PENDING"
)

// BlockingReason is one typed entry in a verdict's blocking list,
// citing the evidentiary source that produced it.
type BlockingReason struct {
	Code   BlockingReasonCode `json:"code"`
	Source string             `json:"source"`
	Detail string             `json:"detail"`
}

// SettlementReadinessVerdict is the machine-only settlement-eligibility
// outcome. Always freshly computed; never edited by a human actor.
type SettlementReadinessVerdict struct {
	VerdictID string        `json:"verdict_id"`
	PACID     string        `json:"pac_id"`
	Status    VerdictStatus `json:"status"`

	BlockingReasons []BlockingReason `json:"blocking_reasons"`

	EvaluatedAt time.Time `json:"evaluated_at"`
	ContentHash string    `json:"content_hash"`
}

// Eligible reports the biconditional: ELIGIBLE iff zero blocking reasons.
func (v *SettlementReadinessVerdict) Eligible() bool {
	return v.Status == VerdictEligible && len(v.BlockingReasons) == 0
}

// CanonicalFields returns the fields covered by the verdict's hash.
// VerdictID and EvaluatedAt are non-deterministic and excluded: identical
// evidence must reproduce an identical hash.
func (v *SettlementReadinessVerdict) CanonicalFields() map[string]any {
	reasons := make([]map[string]any, 0, len(v.BlockingReasons))
	for _, r := range v.BlockingReasons {
		reasons = append(reasons, map[string]any{
			"code":   string(r.Code),
			"source": r.Source,
			"detail": r.Detail,
		})
	}
	return map[string]any{
		"pac_id":           v.PACID,
		"status":           string(v.Status),
		"blocking_reasons": reasons,
	}
}
