// Package api — RFC 7807 Problem Detail error responses for the
// ChainBridge HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/registry"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://chainbridge.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusForbidden, "Forbidden", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteConflict writes a 409 error response.
func WriteConflict(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusConflict, "Conflict", detail)
}

// WriteUnprocessable writes a 422 error response.
func WriteUnprocessable(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", detail)
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but NEVER exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteDomainError maps typed governance errors to their HTTP shape:
//
//	unknown PAC                  -> 404
//	invalid lifecycle transition -> 409
//	unauthorized lane            -> 403
//	out-of-roster contributor    -> 422
//	immutability violation       -> 409
//	blocked settlement           -> 409
//
// Anything unmapped is an internal error.
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		transition   *contracts.InvalidTransitionError
		lane         *contracts.UnauthorizedLaneError
		contributor  *contracts.UnexpectedContributorError
		immutability *contracts.ImmutabilityViolationError
	)
	switch {
	case errors.Is(err, registry.ErrPACNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, registry.ErrPACExists):
		WriteConflict(w, err.Error())
	case errors.Is(err, registry.ErrSettlementBlocked):
		WriteConflict(w, err.Error())
	case errors.As(err, &transition):
		WriteConflict(w, err.Error())
	case errors.As(err, &lane):
		WriteForbidden(w, err.Error())
	case errors.As(err, &contributor):
		WriteUnprocessable(w, err.Error())
	case errors.As(err, &immutability):
		WriteConflict(w, err.Error())
	default:
		WriteInternal(w, err)
	}
}
