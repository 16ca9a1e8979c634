package contracts

import "fmt"

// InvalidTransitionError reports a transition outside the adjacency
// table. The PAC is left unchanged; the call fails closed.
type InvalidTransitionError struct {
	PACID string
	From  PACState
	To    PACState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for PAC %s: %s -> %s", e.PACID, e.From, e.To)
}

// UnauthorizedLaneError reports an agent acting outside its declared
// authorization lane. Nothing is recorded.
type UnauthorizedLaneError struct {
	AgentID      string
	ClaimedLane  string
	RequiredLane string
}

func (e *UnauthorizedLaneError) Error() string {
	return fmt.Sprintf("agent %s not authorized for lane %q (requires %q)",
		e.AgentID, e.ClaimedLane, e.RequiredLane)
}

// UnexpectedContributorError reports an ACK or WRAP from an agent that
// is not in the expected set. Never a silent drop.
type UnexpectedContributorError struct {
	PACID   string
	AgentID string
	Kind    string // "ACK" or "WRAP"
}

func (e *UnexpectedContributorError) Error() string {
	return fmt.Sprintf("unexpected %s contributor %s for PAC %s", e.Kind, e.AgentID, e.PACID)
}

// ImmutabilityViolationError reports an attempt to re-finalize a
// terminal entity.
type ImmutabilityViolationError struct {
	Entity string
	ID     string
	State  string
}

func (e *ImmutabilityViolationError) Error() string {
	return fmt.Sprintf("%s %s is terminal (state=%s); mutation refused", e.Entity, e.ID, e.State)
}
