package settlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/settlement"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time { return func() time.Time { return t0 } }

// fixture assembles a PAC with full passing evidence; tests knock out
// individual streams.
type fixture struct {
	pac         *contracts.PAC
	set         *contracts.MultiAgentWRAPSet
	rg01        *contracts.ReviewGateResult
	bsrg01      *contracts.SelfReviewResult
	signals     []contracts.TrainingSignal
	closures    []contracts.PositiveClosure
	attestation *contracts.LedgerCommitAttestation
}

func ackedACK(agent string, latencyMS int64) *contracts.AgentACK {
	at := t0.Add(time.Duration(latencyMS) * time.Millisecond)
	return &contracts.AgentACK{
		PACID: "PAC-001", AgentID: agent, Lane: "builder",
		State: contracts.ACKAcknowledged, RequestedAt: t0,
		Deadline: t0.Add(30 * time.Second), AcknowledgedAt: &at, LatencyMS: latencyMS,
	}
}

func passingFixture() *fixture {
	agents := []string{"agent-1", "agent-2"}
	collected := map[string]*contracts.WRAPArtifact{}
	for _, a := range agents {
		collected[a] = &contracts.WRAPArtifact{
			WRAPID: "WRAP-" + a, PACID: "PAC-001", AgentID: a,
			State: contracts.WRAPValid, ContentHash: "sha256:" + a,
		}
	}
	completed := t0
	pac := &contracts.PAC{
		PACID: "PAC-001", RuntimeID: "runtime-a",
		State: contracts.StateBERIssued, Class: contracts.ClassSettleable,
		ACKs: map[string]*contracts.AgentACK{
			"agent-1": ackedACK("agent-1", 150),
			"agent-2": ackedACK("agent-2", 320),
		},
		WRAPs: map[string]*contracts.WRAPArtifact{},
		BER: &contracts.BERRecord{
			BERID: "BER-1", PACID: "PAC-001", Status: contracts.BERIssued,
			Finality: contracts.FinalityFinal, ExecutionMode: contracts.ModeParallel,
		},
	}
	return &fixture{
		pac: pac,
		set: &contracts.MultiAgentWRAPSet{
			PACID: "PAC-001", ExpectedAgents: agents,
			Collected: collected, CompletedAt: &completed,
		},
		rg01:   &contracts.ReviewGateResult{GateID: "RG-1", PACID: "PAC-001", Outcome: contracts.GatePass},
		bsrg01: &contracts.SelfReviewResult{GateID: "SRG-1", PACID: "PAC-001", SelfAttestation: true},
		signals: []contracts.TrainingSignal{
			{SignalID: "TS-1", PACID: "PAC-001", AgentID: "agent-1"},
			{SignalID: "TS-2", PACID: "PAC-001", AgentID: "agent-2"},
		},
		closures: []contracts.PositiveClosure{
			{ClosureID: "PC-1", PACID: "PAC-001", AgentID: "agent-1", ScopeComplete: true, NoViolations: true, ReadyForNextStage: true},
		},
		attestation: &contracts.LedgerCommitAttestation{PACID: "PAC-001", BERHash: "sha256:ber", LedgerRef: "ledger://block/42"},
	}
}

func evaluate(t *testing.T, f *fixture) *contracts.SettlementReadinessVerdict {
	t.Helper()
	e := settlement.NewEvaluator(0).WithClock(fixedClock())
	v, err := e.Evaluate(f.pac, f.set, f.rg01, f.bsrg01, f.signals, f.closures, f.attestation)
	require.NoError(t, err)
	return v
}

func TestEligibleWithFullEvidence(t *testing.T) {
	v := evaluate(t, passingFixture())
	assert.Equal(t, contracts.VerdictEligible, v.Status)
	assert.Empty(t, v.BlockingReasons)
	assert.True(t, v.Eligible())
}

// TestPendingACKThenFullEvidence walks the two-agent scenario: agent-1
// acknowledged at 150ms, agent-2 still pending blocks with exactly one
// MISSING_ACK citing agent-2; resolving agent-2 at 320ms with the rest
// of the evidence flips the verdict to ELIGIBLE.
func TestPendingACKThenFullEvidence(t *testing.T) {
	f := passingFixture()
	f.pac.ACKs["agent-2"] = &contracts.AgentACK{
		PACID: "PAC-001", AgentID: "agent-2", Lane: "builder",
		State: contracts.ACKPending, RequestedAt: t0, Deadline: t0.Add(30 * time.Second),
	}

	v := evaluate(t, f)
	require.Equal(t, contracts.VerdictBlocked, v.Status)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonMissingACK, v.BlockingReasons[0].Code)
	assert.Equal(t, "ack:agent-2", v.BlockingReasons[0].Source)

	require.NoError(t, f.pac.ACKs["agent-2"].Acknowledge(t0.Add(320*time.Millisecond)))
	v = evaluate(t, f)
	assert.Equal(t, contracts.VerdictEligible, v.Status)
	assert.Empty(t, v.BlockingReasons)
}

// TestProvisionalBEROnlyReason demonstrates finality is checked
// independently of BER existence.
func TestProvisionalBEROnlyReason(t *testing.T) {
	f := passingFixture()
	f.pac.BER.Finality = contracts.FinalityProvisional

	v := evaluate(t, f)
	require.Equal(t, contracts.VerdictBlocked, v.Status)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonBERProvisional, v.BlockingReasons[0].Code)
}

func TestChecksAreIndependentNoShortCircuit(t *testing.T) {
	f := passingFixture()
	f.pac.ACKs["agent-1"].State = contracts.ACKRejected
	f.set = nil
	f.rg01 = nil
	f.bsrg01 = nil
	f.pac.BER = nil
	f.signals = nil
	f.closures = nil
	f.attestation = nil

	v := evaluate(t, f)
	require.Equal(t, contracts.VerdictBlocked, v.Status)

	codes := map[contracts.BlockingReasonCode]bool{}
	for _, r := range v.BlockingReasons {
		codes[r.Code] = true
	}
	for _, want := range []contracts.BlockingReasonCode{
		contracts.ReasonACKRejected,
		contracts.ReasonMissingWRAP,
		contracts.ReasonRG01NotEvaluated,
		contracts.ReasonBSRG01NotAttested,
		contracts.ReasonBERNotIssued,
		contracts.ReasonTrainingMissing,
		contracts.ReasonClosureMissing,
		contracts.ReasonLedgerCommitPending,
	} {
		assert.True(t, codes[want], "expected reason %s", want)
	}
}

func TestACKLatencyThreshold(t *testing.T) {
	f := passingFixture()
	f.pac.ACKs["agent-2"] = ackedACK("agent-2", 5000)

	e := settlement.NewEvaluator(2000).WithClock(fixedClock())
	v, err := e.Evaluate(f.pac, f.set, f.rg01, f.bsrg01, f.signals, f.closures, f.attestation)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictBlocked, v.Status)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonACKLatencyExceeded, v.BlockingReasons[0].Code)
	assert.Equal(t, "ack:agent-2", v.BlockingReasons[0].Source)
}

func TestTimedOutACK(t *testing.T) {
	f := passingFixture()
	f.pac.ACKs["agent-1"].State = contracts.ACKTimeout

	v := evaluate(t, f)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonACKTimeout, v.BlockingReasons[0].Code)
}

func TestInvalidWRAPBlocks(t *testing.T) {
	f := passingFixture()
	f.set.Collected["agent-2"].State = contracts.WRAPSchemaError

	v := evaluate(t, f)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonWRAPValidationFailed, v.BlockingReasons[0].Code)
}

func TestAllClosuresInvalidBlocks(t *testing.T) {
	f := passingFixture()
	f.closures = []contracts.PositiveClosure{
		{ClosureID: "PC-1", PACID: "PAC-001", AgentID: "agent-1", ScopeComplete: true, NoViolations: false, ReadyForNextStage: true},
	}

	v := evaluate(t, f)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonClosureInvalid, v.BlockingReasons[0].Code)
}

func TestRG01FailedBlocks(t *testing.T) {
	f := passingFixture()
	f.rg01.Outcome = contracts.GateFail
	f.rg01.FailReasons = []string{"wrap set incomplete"}

	v := evaluate(t, f)
	require.Len(t, v.BlockingReasons, 1)
	assert.Equal(t, contracts.ReasonRG01Failed, v.BlockingReasons[0].Code)
}

// TestVerdictBiconditional: ELIGIBLE iff the blocking list is empty.
func TestVerdictBiconditional(t *testing.T) {
	eligible := evaluate(t, passingFixture())
	assert.Equal(t, contracts.VerdictEligible, eligible.Status)
	assert.Empty(t, eligible.BlockingReasons)

	f := passingFixture()
	f.attestation = nil
	blocked := evaluate(t, f)
	assert.Equal(t, contracts.VerdictBlocked, blocked.Status)
	assert.NotEmpty(t, blocked.BlockingReasons)
}

// TestVerdictHashDeterministic: identical evidence reproduces an
// identical content hash even though VerdictID differs.
func TestVerdictHashDeterministic(t *testing.T) {
	v1 := evaluate(t, passingFixture())
	v2 := evaluate(t, passingFixture())
	assert.NotEqual(t, v1.VerdictID, v2.VerdictID)
	assert.Equal(t, v1.ContentHash, v2.ContentHash)
}
