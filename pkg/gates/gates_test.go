package gates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/gates"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func completeSet(states ...contracts.WRAPValidationState) contracts.MultiAgentWRAPSet {
	agents := []string{"agent-1", "agent-2"}
	collected := map[string]*contracts.WRAPArtifact{}
	for i, agent := range agents {
		state := contracts.WRAPValid
		if i < len(states) {
			state = states[i]
		}
		collected[agent] = &contracts.WRAPArtifact{
			WRAPID:  "WRAP-" + agent,
			PACID:   "PAC-001",
			AgentID: agent,
			State:   state,
		}
	}
	return contracts.MultiAgentWRAPSet{
		PACID:          "PAC-001",
		ExpectedAgents: agents,
		Collected:      collected,
	}
}

func signalsFor(agents ...string) []contracts.TrainingSignal {
	out := make([]contracts.TrainingSignal, 0, len(agents))
	for _, a := range agents {
		out = append(out, contracts.TrainingSignal{SignalID: "TS-" + a, PACID: "PAC-001", AgentID: a})
	}
	return out
}

func closuresFor(agents ...string) []contracts.PositiveClosure {
	out := make([]contracts.PositiveClosure, 0, len(agents))
	for _, a := range agents {
		out = append(out, contracts.PositiveClosure{
			ClosureID: "PC-" + a, PACID: "PAC-001", AgentID: a,
			ScopeComplete: true, NoViolations: true, ReadyForNextStage: true,
		})
	}
	return out
}

func TestRG01PassesOnFullEvidence(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())
	res, err := e.EvaluateRG01(completeSet(), signalsFor("agent-1", "agent-2"), closuresFor("agent-1", "agent-2"))
	require.NoError(t, err)

	assert.Equal(t, contracts.GatePass, res.Outcome)
	assert.True(t, res.Passed())
	assert.Empty(t, res.FailReasons)
	assert.True(t, res.TrainingSignalsPresent)
	assert.True(t, res.PositiveClosurePresent)
}

func TestRG01ReportsAllViolationsInOnePass(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())

	set := completeSet(contracts.WRAPInvalid)
	delete(set.Collected, "agent-2")

	// No signals, no closures: conditions (a) through (d) all fail and
	// every violation appears — no short-circuit.
	res, err := e.EvaluateRG01(set, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, contracts.GateFail, res.Outcome)
	// (a) incomplete, (b) agent-1 invalid, (c) x2 missing signals,
	// (d) x2 missing closures.
	assert.Len(t, res.FailReasons, 6)
	assert.False(t, res.TrainingSignalsPresent)
	assert.False(t, res.PositiveClosurePresent)
}

func TestRG01DuplicateSignalFails(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())
	dup := append(signalsFor("agent-1", "agent-2"), signalsFor("agent-1")...)

	res, err := e.EvaluateRG01(completeSet(), dup, closuresFor("agent-1", "agent-2"))
	require.NoError(t, err)
	assert.Equal(t, contracts.GateFail, res.Outcome)
	assert.Len(t, res.FailReasons, 1)
}

func TestRG01InvalidClosureFails(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())
	closures := closuresFor("agent-1", "agent-2")
	closures[1].NoViolations = false

	res, err := e.EvaluateRG01(completeSet(), signalsFor("agent-1", "agent-2"), closures)
	require.NoError(t, err)
	assert.Equal(t, contracts.GateFail, res.Outcome)
	assert.Len(t, res.FailReasons, 1)
	assert.Contains(t, res.FailReasons[0], "agent-2")
}

func TestRG01ReEvaluationIsIdempotent(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())
	set := completeSet()
	signals := signalsFor("agent-1", "agent-2")
	closures := closuresFor("agent-1", "agent-2")

	r1, err := e.EvaluateRG01(set, signals, closures)
	require.NoError(t, err)
	r2, err := e.EvaluateRG01(set, signals, closures)
	require.NoError(t, err)

	// GateID differs; the evidence-derived hash does not.
	assert.NotEqual(t, r1.GateID, r2.GateID)
	assert.Equal(t, r1.ContentHash, r2.ContentHash)
	assert.Equal(t, r1.Outcome, r2.Outcome)
}

func TestBSRG01AllFiveRequired(t *testing.T) {
	e := gates.NewEvaluator().WithClock(fixedClock())

	full := gates.SelfAttestation{
		PACID:                      "PAC-001",
		NoOverride:                 true,
		NoDrift:                    true,
		ParallelSemanticsRespected: true,
		TrainingClosureVerified:    true,
	}
	res, err := e.EvaluateBSRG01(full)
	require.NoError(t, err)
	assert.True(t, res.SelfAttestation)

	for name, mutate := range map[string]func(*gates.SelfAttestation){
		"no_override":      func(a *gates.SelfAttestation) { a.NoOverride = false },
		"no_drift":         func(a *gates.SelfAttestation) { a.NoDrift = false },
		"parallel":         func(a *gates.SelfAttestation) { a.ParallelSemanticsRespected = false },
		"training_closure": func(a *gates.SelfAttestation) { a.TrainingClosureVerified = false },
		"violations":       func(a *gates.SelfAttestation) { a.Violations = []string{"drift detected"} },
	} {
		att := full
		att.Violations = append([]string{}, full.Violations...)
		mutate(&att)
		res, err := e.EvaluateBSRG01(att)
		require.NoError(t, err)
		assert.False(t, res.SelfAttestation, "condition %s must gate the aggregate", name)
	}
}
