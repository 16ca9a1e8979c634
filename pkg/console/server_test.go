package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/registry"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(nil)
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer(reg, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func dispatch(t *testing.T, ts *httptest.Server, pacID string, agents []string) {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/pacs", map[string]any{
		"pac_id":     pacID,
		"runtime_id": "runtime-1",
		"agents":     agents,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestConsoleDispatchAndGet(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-200", []string{"agent-1"})

	resp, err := http.Get(ts.URL + "/v1/pacs/PAC-200")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pac := decode[contracts.PAC](t, resp)
	assert.Equal(t, "PAC-200", pac.PACID)
	assert.Equal(t, contracts.StateACKPending, pac.State)
}

func TestConsoleListProjection(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-201", []string{"agent-1"})
	dispatch(t, ts, "PAC-202", []string{"agent-1"})

	resp, err := http.Get(ts.URL + "/v1/pacs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(2), body["total"])
}

func TestConsoleProjectionsRejectMutatingMethods(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-203", []string{"agent-1"})

	for _, target := range []string{
		"/v1/pacs/PAC-203",
		"/v1/pacs/PAC-203/verdict",
		"/v1/pacs/PAC-203/wraps",
		"/v1/prooflog/verify",
	} {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+target, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, target)
	}
}

func TestConsoleGetUnknownPAC(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/pacs/PAC-none")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestConsoleACKWrongLaneForbidden(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-204", []string{"agent-1"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-204/ack", map[string]any{
		"agent_id": "agent-1",
		"lane":     "review",
		"accept":   true,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConsoleFullLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-205", []string{"agent-1", "agent-2"})

	for _, agent := range []string{"agent-1", "agent-2"} {
		resp := postJSON(t, ts.URL+"/v1/pacs/PAC-205/ack", map[string]any{
			"agent_id": agent, "lane": "execution", "accept": true,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	for _, agent := range []string{"agent-1", "agent-2"} {
		resp := postJSON(t, ts.URL+"/v1/pacs/PAC-205/wrap", map[string]any{
			"agent_id": agent,
			"payload":  map[string]any{"outcome": "SUCCESS", "summary": "done"},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/signals", map[string]any{
			"agent_id": agent, "kind": "trajectory",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/closures", map[string]any{
			"agent_id": agent, "scope_complete": true, "no_violations": true, "ready_for_next_stage": true,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-205/gates/rg01", map[string]any{})
	rg01 := decode[contracts.ReviewGateResult](t, resp)
	require.Equal(t, contracts.GatePass, rg01.Outcome, "fail reasons: %v", rg01.FailReasons)

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/gates/bsrg01", map[string]any{
		"no_override": true, "no_drift": true,
		"parallel_semantics_respected": true, "training_closure_verified": true,
	})
	bsrg01 := decode[contracts.SelfReviewResult](t, resp)
	require.True(t, bsrg01.SelfAttestation)

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/ber", map[string]any{"finality": "FINAL"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/ledger-commit", map[string]any{"ledger_ref": "ledger://block/7"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-205/settle", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	verdict := decode[contracts.SettlementReadinessVerdict](t, resp)
	assert.True(t, verdict.Eligible())

	getResp, err := http.Get(ts.URL + "/v1/pacs/PAC-205/verdict")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	latest := decode[contracts.SettlementReadinessVerdict](t, getResp)
	assert.Equal(t, verdict.ContentHash, latest.ContentHash)

	getResp, err = http.Get(ts.URL + "/v1/prooflog/verify")
	require.NoError(t, err)
	body := decode[map[string]any](t, getResp)
	assert.Equal(t, true, body["intact"])
}

func TestConsoleSettleBlockedReturnsVerdict(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-206", []string{"agent-1"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-206/ack", map[string]any{
		"agent_id": "agent-1", "lane": "execution", "accept": true,
	})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-206/wrap", map[string]any{
		"agent_id": "agent-1",
		"payload":  map[string]any{"outcome": "SUCCESS", "summary": "done"},
	})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-206/ber", map[string]any{"finality": "FINAL"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-206/settle", map[string]any{})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	verdict := decode[contracts.SettlementReadinessVerdict](t, resp)
	assert.Equal(t, contracts.VerdictBlocked, verdict.Status)
	assert.NotEmpty(t, verdict.BlockingReasons)
}

func TestConsoleEvaluateReportsBlockingReasons(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-207", []string{"agent-1", "agent-2"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-207/evaluate", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	verdict := decode[contracts.SettlementReadinessVerdict](t, resp)
	assert.Equal(t, contracts.VerdictBlocked, verdict.Status)

	codes := map[contracts.BlockingReasonCode]bool{}
	for _, reason := range verdict.BlockingReasons {
		codes[reason.Code] = true
	}
	for _, want := range []contracts.BlockingReasonCode{
		contracts.ReasonMissingACK,
		contracts.ReasonRG01NotEvaluated,
		contracts.ReasonBSRG01NotAttested,
		contracts.ReasonBERNotIssued,
		contracts.ReasonLedgerCommitPending,
	} {
		assert.True(t, codes[want], fmt.Sprintf("missing %s", want))
	}
}

func TestConsoleExplicitTransition(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-210", []string{"agent-1"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-210/ack", map[string]any{
		"agent_id": "agent-1", "lane": "execution", "accept": true,
	})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-210/transition", map[string]any{
		"target": "EXECUTION_FAILED", "reason": "agent crashed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[contracts.TransitionRecord](t, resp)
	assert.Equal(t, contracts.StateExecutionFailed, rec.ToState)

	// Terminal states refuse further transitions.
	resp = postJSON(t, ts.URL+"/v1/pacs/PAC-210/transition", map[string]any{
		"target": "SETTLED",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConsoleBERInvalidFinality(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-208", []string{"agent-1"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-208/ber", map[string]any{"finality": "MAYBE"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsoleUnknownOperation(t *testing.T) {
	ts, _ := newTestServer(t)
	dispatch(t, ts, "PAC-209", []string{"agent-1"})

	resp := postJSON(t, ts.URL+"/v1/pacs/PAC-209/force-settle", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
