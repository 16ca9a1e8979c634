// Package settlement computes the binary settlement-readiness verdict
// for a PAC from its recorded evidence.
//
// Evaluate is a pure function: it takes no lock, performs no I/O, and
// identical inputs produce an identical verdict modulo the VerdictID and
// EvaluatedAt fields, which carry no eligibility weight. Eight
// independent checks each append zero or more typed blocking reasons;
// ELIGIBLE holds iff the list is empty. There is no partial eligibility
// and no override path — a caller cannot force ELIGIBLE.
package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// DefaultACKLatencyThresholdMS is the ceiling applied when no governance
// profile overrides it.
const DefaultACKLatencyThresholdMS int64 = 2000

// Evaluator holds the fixed thresholds settlement evaluation compares
// against. Thresholds are data, supplied at construction.
type Evaluator struct {
	ackLatencyThresholdMS int64
	clock                 func() time.Time
}

// NewEvaluator creates an evaluator with the given ACK latency ceiling
// in milliseconds; zero or negative selects the default.
func NewEvaluator(ackLatencyThresholdMS int64) *Evaluator {
	if ackLatencyThresholdMS <= 0 {
		ackLatencyThresholdMS = DefaultACKLatencyThresholdMS
	}
	return &Evaluator{
		ackLatencyThresholdMS: ackLatencyThresholdMS,
		clock:                 time.Now,
	}
}

// WithClock overrides the clock for deterministic testing. The clock
// stamps EvaluatedAt only; it never influences eligibility.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Evaluate synthesizes the eight evidence streams into one verdict.
// All checks run; nothing stops at the first failure.
func (e *Evaluator) Evaluate(
	pac *contracts.PAC,
	wrapSet *contracts.MultiAgentWRAPSet,
	rg01 *contracts.ReviewGateResult,
	bsrg01 *contracts.SelfReviewResult,
	signals []contracts.TrainingSignal,
	closures []contracts.PositiveClosure,
	attestation *contracts.LedgerCommitAttestation,
) (*contracts.SettlementReadinessVerdict, error) {
	var reasons []contracts.BlockingReason

	reasons = append(reasons, e.checkACKStates(pac)...)
	reasons = append(reasons, e.checkACKLatency(pac)...)
	reasons = append(reasons, e.checkWRAPSet(wrapSet)...)
	reasons = append(reasons, e.checkRG01(rg01)...)
	reasons = append(reasons, e.checkBSRG01(bsrg01)...)
	reasons = append(reasons, e.checkBER(pac)...)
	reasons = append(reasons, e.checkAttestations(signals, closures)...)
	reasons = append(reasons, e.checkLedgerCommit(attestation)...)

	status := contracts.VerdictEligible
	if len(reasons) > 0 {
		status = contracts.VerdictBlocked
	}

	verdict := &contracts.SettlementReadinessVerdict{
		VerdictID:       uuid.New().String(),
		PACID:           pac.PACID,
		Status:          status,
		BlockingReasons: reasons,
		EvaluatedAt:     e.clock(),
	}
	hash, err := canonical.Hash(verdict)
	if err != nil {
		return nil, fmt.Errorf("settlement: hash verdict for PAC %s: %w", pac.PACID, err)
	}
	verdict.ContentHash = hash
	return verdict, nil
}

// checkACKStates — check 1: every ACK is ACKNOWLEDGED. Each non-terminal
// or negative ACK yields its own reason, keyed to the ACK state.
func (e *Evaluator) checkACKStates(pac *contracts.PAC) []contracts.BlockingReason {
	var reasons []contracts.BlockingReason
	for _, agent := range sortedAgents(pac.ACKs) {
		ack := pac.ACKs[agent]
		switch ack.State {
		case contracts.ACKAcknowledged:
			// counted toward quorum
		case contracts.ACKPending:
			reasons = append(reasons, contracts.BlockingReason{
				Code:   contracts.ReasonMissingACK,
				Source: "ack:" + agent,
				Detail: fmt.Sprintf("agent %s has not acknowledged", agent),
			})
		case contracts.ACKTimeout:
			reasons = append(reasons, contracts.BlockingReason{
				Code:   contracts.ReasonACKTimeout,
				Source: "ack:" + agent,
				Detail: fmt.Sprintf("agent %s acknowledgement timed out", agent),
			})
		case contracts.ACKRejected:
			reasons = append(reasons, contracts.BlockingReason{
				Code:   contracts.ReasonACKRejected,
				Source: "ack:" + agent,
				Detail: fmt.Sprintf("agent %s rejected the dispatch: %s", agent, ack.RejectReason),
			})
		}
	}
	return reasons
}

// checkACKLatency — check 2: maximum observed ACK latency within the
// fixed threshold. Only resolved ACKs carry a measured latency.
func (e *Evaluator) checkACKLatency(pac *contracts.PAC) []contracts.BlockingReason {
	var maxLatency int64
	var slowest string
	for _, agent := range sortedAgents(pac.ACKs) {
		ack := pac.ACKs[agent]
		if ack.State == contracts.ACKAcknowledged && ack.LatencyMS > maxLatency {
			maxLatency = ack.LatencyMS
			slowest = agent
		}
	}
	if maxLatency > e.ackLatencyThresholdMS {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonACKLatencyExceeded,
			Source: "ack:" + slowest,
			Detail: fmt.Sprintf("max ACK latency %dms exceeds threshold %dms", maxLatency, e.ackLatencyThresholdMS),
		}}
	}
	return nil
}

// checkWRAPSet — check 3: the WRAP set exists, is complete, and every
// member is VALID.
func (e *Evaluator) checkWRAPSet(set *contracts.MultiAgentWRAPSet) []contracts.BlockingReason {
	if set == nil {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonMissingWRAP,
			Source: "wrap_set",
			Detail: "no WRAP set recorded",
		}}
	}

	var reasons []contracts.BlockingReason
	for _, agent := range set.ExpectedAgents {
		if _, ok := set.Collected[agent]; !ok {
			reasons = append(reasons, contracts.BlockingReason{
				Code:   contracts.ReasonMissingWRAP,
				Source: "wrap_set:" + agent,
				Detail: fmt.Sprintf("agent %s has not submitted a WRAP", agent),
			})
		}
	}
	for _, agent := range set.ExpectedAgents {
		w, ok := set.Collected[agent]
		if !ok {
			continue
		}
		if w.State != contracts.WRAPValid {
			reasons = append(reasons, contracts.BlockingReason{
				Code:   contracts.ReasonWRAPValidationFailed,
				Source: "wrap:" + w.WRAPID,
				Detail: fmt.Sprintf("WRAP from agent %s is %s", agent, w.State),
			})
		}
	}
	return reasons
}

// checkRG01 — check 4: the primary review gate exists and passed.
func (e *Evaluator) checkRG01(rg01 *contracts.ReviewGateResult) []contracts.BlockingReason {
	if rg01 == nil {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonRG01NotEvaluated,
			Source: "rg01",
			Detail: "primary review gate has not been evaluated",
		}}
	}
	if !rg01.Passed() {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonRG01Failed,
			Source: "rg01:" + rg01.GateID,
			Detail: fmt.Sprintf("primary review gate failed with %d reasons", len(rg01.FailReasons)),
		}}
	}
	return nil
}

// checkBSRG01 — check 5: the self-review gate exists and self-attested.
func (e *Evaluator) checkBSRG01(bsrg01 *contracts.SelfReviewResult) []contracts.BlockingReason {
	if bsrg01 == nil {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonBSRG01NotAttested,
			Source: "bsrg01",
			Detail: "self-review gate has not been attested",
		}}
	}
	if !bsrg01.SelfAttestation {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonBSRG01Failed,
			Source: "bsrg01:" + bsrg01.GateID,
			Detail: "self-review attestation did not hold",
		}}
	}
	return nil
}

// checkBER — check 6: a BER exists, is ISSUED, and its finality is
// FINAL. Finality is checked independently of existence.
func (e *Evaluator) checkBER(pac *contracts.PAC) []contracts.BlockingReason {
	ber := pac.BER
	if ber == nil || ber.Status != contracts.BERIssued {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonBERNotIssued,
			Source: "ber",
			Detail: "no issued execution report",
		}}
	}
	if ber.Finality == contracts.FinalityProvisional {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonBERProvisional,
			Source: "ber:" + ber.BERID,
			Detail: "execution report finality is PROVISIONAL",
		}}
	}
	return nil
}

// checkAttestations — check 7: at least one training signal and at
// least one valid positive closure exist.
func (e *Evaluator) checkAttestations(signals []contracts.TrainingSignal, closures []contracts.PositiveClosure) []contracts.BlockingReason {
	var reasons []contracts.BlockingReason
	if len(signals) == 0 {
		reasons = append(reasons, contracts.BlockingReason{
			Code:   contracts.ReasonTrainingMissing,
			Source: "training_signals",
			Detail: "no training signals recorded",
		})
	}
	switch {
	case len(closures) == 0:
		reasons = append(reasons, contracts.BlockingReason{
			Code:   contracts.ReasonClosureMissing,
			Source: "positive_closures",
			Detail: "no positive closures recorded",
		})
	case !anyValidClosure(closures):
		reasons = append(reasons, contracts.BlockingReason{
			Code:   contracts.ReasonClosureInvalid,
			Source: "positive_closures",
			Detail: "no recorded positive closure is valid",
		})
	}
	return reasons
}

// checkLedgerCommit — check 8: a ledger-commit attestation exists.
// Absence is a normal in-progress condition, surfaced as a reason, never
// an error.
func (e *Evaluator) checkLedgerCommit(attestation *contracts.LedgerCommitAttestation) []contracts.BlockingReason {
	if attestation == nil {
		return []contracts.BlockingReason{{
			Code:   contracts.ReasonLedgerCommitPending,
			Source: "ledger",
			Detail: "ledger commit attestation not yet supplied",
		}}
	}
	return nil
}

func anyValidClosure(closures []contracts.PositiveClosure) bool {
	for i := range closures {
		if closures[i].Valid() {
			return true
		}
	}
	return false
}

func sortedAgents(acks map[string]*contracts.AgentACK) []string {
	agents := make([]string, 0, len(acks))
	for agent := range acks {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}
