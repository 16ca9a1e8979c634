// Package console exposes the governance control plane over HTTP.
//
// Projections are GET-only and serve copy-on-read snapshots; every
// mutation has its own explicit operation endpoint. There is no generic
// update route — state changes only through sanctioned operations.
package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/api"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/gates"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/registry"
)

// Server serves the control-plane API for one registry.
type Server struct {
	registry *registry.Registry
	log      *slog.Logger
}

// NewServer wires a console server around a registry.
func NewServer(reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{registry: reg, log: log}
}

// Handler returns the full route set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pacs", s.handlePACs)
	mux.HandleFunc("/v1/pacs/", s.handlePACSubroutes)
	mux.HandleFunc("/v1/prooflog/verify", s.handleProofVerify)
	mux.HandleFunc("/v1/sweep", s.handleSweep)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// pacSummary is the list-projection shape.
type pacSummary struct {
	PACID       string `json:"pac_id"`
	RuntimeID   string `json:"runtime_id"`
	State       string `json:"state"`
	Class       string `json:"settlement_class"`
	ContentHash string `json:"content_hash"`
}

type dispatchRequest struct {
	PACID     string   `json:"pac_id"`
	RuntimeID string   `json:"runtime_id"`
	Agents    []string `json:"agents"`
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type ackRequest struct {
	AgentID string `json:"agent_id"`
	Lane    string `json:"lane"`
	Accept  bool   `json:"accept"`
	Reason  string `json:"reason,omitempty"`
}

type wrapRequest struct {
	AgentID      string          `json:"agent_id"`
	Payload      json.RawMessage `json:"payload"`
	ArtifactRefs []string        `json:"artifact_refs,omitempty"`
}

type signalRequest struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
}

type closureRequest struct {
	AgentID           string `json:"agent_id"`
	ScopeComplete     bool   `json:"scope_complete"`
	NoViolations      bool   `json:"no_violations"`
	ReadyForNextStage bool   `json:"ready_for_next_stage"`
}

type berRequest struct {
	Finality string `json:"finality"`
}

type ledgerCommitRequest struct {
	LedgerRef string `json:"ledger_ref"`
}

// handlePACs serves GET list / POST dispatch on /v1/pacs.
func (s *Server) handlePACs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := s.registry.List()
		summaries := make([]pacSummary, 0, len(ids))
		for _, id := range ids {
			pac, err := s.registry.Snapshot(id)
			if err != nil {
				continue
			}
			summaries = append(summaries, pacSummary{
				PACID:       pac.PACID,
				RuntimeID:   pac.RuntimeID,
				State:       string(pac.State),
				Class:       string(pac.Class),
				ContentHash: pac.ContentHash,
			})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"pacs": summaries, "total": len(summaries)})

	case http.MethodPost:
		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
		if req.PACID == "" || len(req.Agents) == 0 {
			api.WriteBadRequest(w, "pac_id and a non-empty agent roster are required")
			return
		}
		pac, err := s.registry.Dispatch(r.Context(), req.PACID, req.RuntimeID, req.Agents)
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
		s.log.Info("pac dispatched", "pac_id", pac.PACID, "agents", len(req.Agents))
		s.writeJSON(w, http.StatusCreated, pac)

	default:
		api.WriteMethodNotAllowed(w)
	}
}

// handlePACSubroutes routes /v1/pacs/{id}[/...].
func (s *Server) handlePACSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/pacs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		api.WriteNotFound(w, "missing PAC id")
		return
	}
	pacID := parts[0]

	if len(parts) == 1 {
		s.handlePACByID(w, r, pacID)
		return
	}

	op := strings.Join(parts[1:], "/")
	switch op {
	case "verdict":
		s.getOnly(w, r, func() { s.handleVerdict(w, r, pacID) })
	case "wraps":
		s.getOnly(w, r, func() { s.handleWRAPSet(w, r, pacID) })
	case "prooflog":
		s.getOnly(w, r, func() { s.handlePACProofLog(w, r, pacID) })
	case "transition":
		s.postOnly(w, r, func() { s.handleTransition(w, r, pacID) })
	case "ack":
		s.postOnly(w, r, func() { s.handleACK(w, r, pacID) })
	case "wrap":
		s.postOnly(w, r, func() { s.handleWRAP(w, r, pacID) })
	case "signals":
		s.postOnly(w, r, func() { s.handleSignal(w, r, pacID) })
	case "closures":
		s.postOnly(w, r, func() { s.handleClosure(w, r, pacID) })
	case "gates/rg01":
		s.postOnly(w, r, func() { s.handleRG01(w, r, pacID) })
	case "gates/bsrg01":
		s.postOnly(w, r, func() { s.handleBSRG01(w, r, pacID) })
	case "ber":
		s.postOnly(w, r, func() { s.handleBER(w, r, pacID) })
	case "ledger-commit":
		s.postOnly(w, r, func() { s.handleLedgerCommit(w, r, pacID) })
	case "evaluate":
		s.postOnly(w, r, func() { s.handleEvaluate(w, r, pacID) })
	case "settle":
		s.postOnly(w, r, func() { s.handleSettle(w, r, pacID) })
	default:
		api.WriteNotFound(w, "unknown operation "+op)
	}
}

func (s *Server) getOnly(w http.ResponseWriter, r *http.Request, next func()) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}
	next()
}

func (s *Server) postOnly(w http.ResponseWriter, r *http.Request, next func()) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	next()
}

func (s *Server) handlePACByID(w http.ResponseWriter, r *http.Request, pacID string) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}
	pac, err := s.registry.Snapshot(pacID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pac)
}

func (s *Server) handleVerdict(w http.ResponseWriter, _ *http.Request, pacID string) {
	verdict, err := s.registry.LatestVerdict(pacID)
	if err != nil {
		if errors.Is(err, registry.ErrNoVerdict) {
			api.WriteNotFound(w, err.Error())
			return
		}
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleWRAPSet(w http.ResponseWriter, _ *http.Request, pacID string) {
	set, err := s.registry.WRAPSet(pacID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, set)
}

func (s *Server) handlePACProofLog(w http.ResponseWriter, _ *http.Request, pacID string) {
	entries := s.registry.ProofLog().Entries(pacID)
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, pacID string) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Target == "" {
		api.WriteBadRequest(w, "target state is required")
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "operator"
	}
	rec, err := s.registry.Transition(r.Context(), pacID, contracts.PACState(req.Target), req.Reason, actor)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleACK(w http.ResponseWriter, r *http.Request, pacID string) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	ack, err := s.registry.RecordACK(r.Context(), pacID, req.AgentID, req.Lane, req.Accept, req.Reason)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleWRAP(w http.ResponseWriter, r *http.Request, pacID string) {
	var req wrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	wrap, err := s.registry.SubmitWRAP(r.Context(), pacID, req.AgentID, req.Payload, req.ArtifactRefs)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wrap)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request, pacID string) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	err := s.registry.RecordTrainingSignal(r.Context(), pacID, contracts.TrainingSignal{
		AgentID: req.AgentID,
		Kind:    req.Kind,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClosure(w http.ResponseWriter, r *http.Request, pacID string) {
	var req closureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	err := s.registry.RecordPositiveClosure(r.Context(), pacID, contracts.PositiveClosure{
		AgentID:           req.AgentID,
		ScopeComplete:     req.ScopeComplete,
		NoViolations:      req.NoViolations,
		ReadyForNextStage: req.ReadyForNextStage,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRG01(w http.ResponseWriter, r *http.Request, pacID string) {
	result, err := s.registry.EvaluateRG01(r.Context(), pacID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBSRG01(w http.ResponseWriter, r *http.Request, pacID string) {
	var att gates.SelfAttestation
	if err := json.NewDecoder(r.Body).Decode(&att); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	result, err := s.registry.EvaluateBSRG01(r.Context(), pacID, att)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBER(w http.ResponseWriter, r *http.Request, pacID string) {
	var req berRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	finality := contracts.BERFinality(req.Finality)
	if finality != contracts.FinalityFinal && finality != contracts.FinalityProvisional {
		api.WriteBadRequest(w, "finality must be FINAL or PROVISIONAL")
		return
	}
	ber, err := s.registry.IssueBER(r.Context(), pacID, finality)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ber)
}

func (s *Server) handleLedgerCommit(w http.ResponseWriter, r *http.Request, pacID string) {
	var req ledgerCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.LedgerRef == "" {
		api.WriteBadRequest(w, "ledger_ref is required")
		return
	}
	att, err := s.registry.CommitLedger(r.Context(), pacID, req.LedgerRef)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, att)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, pacID string) {
	verdict, err := s.registry.EvaluateSettlementReadiness(r.Context(), pacID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request, pacID string) {
	verdict, err := s.registry.Settle(r.Context(), pacID)
	if err != nil {
		if errors.Is(err, registry.ErrSettlementBlocked) {
			// The verdict explains the refusal; surface it with the 409.
			s.writeJSON(w, http.StatusConflict, verdict)
			return
		}
		api.WriteDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

// handleProofVerify re-derives the whole proof-log chain.
func (s *Server) handleProofVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}
	ok, reason := s.registry.ProofLog().Verify()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"intact": ok,
		"reason": reason,
		"head":   s.registry.ProofLog().Head(),
		"length": s.registry.ProofLog().Length(),
	})
}

// handleSweep runs a deadline sweep at the server's current time.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	timedOut, err := s.registry.SweepDeadlines(r.Context(), time.Now())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	if timedOut == nil {
		timedOut = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"timed_out": timedOut})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}
