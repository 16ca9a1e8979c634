package gates

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// SelfAttestation is the raw self-review input submitted for a PAC.
type SelfAttestation struct {
	PACID string `json:"pac_id"`

	NoOverride                 bool `json:"no_override"`
	NoDrift                    bool `json:"no_drift"`
	ParallelSemanticsRespected bool `json:"parallel_semantics_respected"`
	TrainingClosureVerified    bool `json:"training_closure_verified"`

	Violations []string `json:"violations"`
}

// EvaluateBSRG01 runs the self-review gate: four boolean
// sub-attestations plus a zero-length violations list. The aggregate
// SelfAttestation flag is the logical AND of all five conditions.
func (e *Evaluator) EvaluateBSRG01(att SelfAttestation) (*contracts.SelfReviewResult, error) {
	result := &contracts.SelfReviewResult{
		GateID:                     uuid.New().String(),
		PACID:                      att.PACID,
		NoOverride:                 att.NoOverride,
		NoDrift:                    att.NoDrift,
		ParallelSemanticsRespected: att.ParallelSemanticsRespected,
		TrainingClosureVerified:    att.TrainingClosureVerified,
		Violations:                 append([]string{}, att.Violations...),
		EvaluatedAt:                e.clock(),
	}
	result.SelfAttestation = att.NoOverride &&
		att.NoDrift &&
		att.ParallelSemanticsRespected &&
		att.TrainingClosureVerified &&
		len(att.Violations) == 0

	hash, err := canonical.Hash(result)
	if err != nil {
		return nil, fmt.Errorf("gates: hash BSRG-01 result: %w", err)
	}
	result.ContentHash = hash
	return result, nil
}
