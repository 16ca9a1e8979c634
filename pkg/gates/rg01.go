// Package gates evaluates the layered review gates over a PAC's
// aggregated evidence: RG-01 (primary review) and BSRG-01 (self review).
//
// Every gate condition is independent and always evaluated — no
// short-circuit — so one evaluation pass reports the complete failure
// set. Results are freshly computed each time; a prior result is never
// trusted without re-evaluation.
package gates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// Evaluator runs the review gates.
type Evaluator struct {
	clock func() time.Time
}

// NewEvaluator creates a gate evaluator with the wall clock.
func NewEvaluator() *Evaluator {
	return &Evaluator{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// EvaluateRG01 runs the primary review gate over the aggregated WRAP set
// plus the two mandatory attestation streams. Four conditions, all
// evaluated:
//
//	(a) the WRAP set is complete,
//	(b) every collected WRAP is VALID,
//	(c) every expected agent has exactly one training signal,
//	(d) every expected agent has exactly one valid positive closure.
func (e *Evaluator) EvaluateRG01(
	set contracts.MultiAgentWRAPSet,
	signals []contracts.TrainingSignal,
	closures []contracts.PositiveClosure,
) (*contracts.ReviewGateResult, error) {
	var failReasons []string

	// (a) completeness
	missing := missingAgents(set)
	if len(missing) > 0 {
		failReasons = append(failReasons, fmt.Sprintf("wrap set incomplete: missing %v", missing))
	}

	// (b) all-valid
	for _, agent := range set.ExpectedAgents {
		w, ok := set.Collected[agent]
		if !ok {
			continue // already reported by (a)
		}
		if w.State != contracts.WRAPValid {
			failReasons = append(failReasons, fmt.Sprintf("wrap %s from agent %s is %s", w.WRAPID, agent, w.State))
		}
	}

	// (c) exactly one training signal per expected agent
	signalCounts := make(map[string]int, len(signals))
	for _, s := range signals {
		signalCounts[s.AgentID]++
	}
	for _, agent := range set.ExpectedAgents {
		switch n := signalCounts[agent]; {
		case n == 0:
			failReasons = append(failReasons, fmt.Sprintf("agent %s has no training signal", agent))
		case n > 1:
			failReasons = append(failReasons, fmt.Sprintf("agent %s has %d training signals, expected exactly one", agent, n))
		}
	}

	// (d) exactly one valid positive closure per expected agent
	closuresByAgent := make(map[string][]contracts.PositiveClosure, len(closures))
	for _, c := range closures {
		closuresByAgent[c.AgentID] = append(closuresByAgent[c.AgentID], c)
	}
	for _, agent := range set.ExpectedAgents {
		cs := closuresByAgent[agent]
		switch {
		case len(cs) == 0:
			failReasons = append(failReasons, fmt.Sprintf("agent %s has no positive closure", agent))
		case len(cs) > 1:
			failReasons = append(failReasons, fmt.Sprintf("agent %s has %d positive closures, expected exactly one", agent, len(cs)))
		case !cs[0].Valid():
			failReasons = append(failReasons, fmt.Sprintf("agent %s positive closure is not valid", agent))
		}
	}

	outcome := contracts.GatePass
	if len(failReasons) > 0 {
		outcome = contracts.GateFail
	}

	result := &contracts.ReviewGateResult{
		GateID:                 uuid.New().String(),
		PACID:                  set.PACID,
		Outcome:                outcome,
		FailReasons:            failReasons,
		TrainingSignalsPresent: len(signals) > 0,
		PositiveClosurePresent: len(closures) > 0,
		EvaluatedAt:            e.clock(),
	}
	hash, err := canonical.Hash(result)
	if err != nil {
		return nil, fmt.Errorf("gates: hash RG-01 result: %w", err)
	}
	result.ContentHash = hash
	return result, nil
}

func missingAgents(set contracts.MultiAgentWRAPSet) []string {
	missing := make([]string, 0)
	for _, agent := range set.ExpectedAgents {
		if _, ok := set.Collected[agent]; !ok {
			missing = append(missing, agent)
		}
	}
	return missing
}
