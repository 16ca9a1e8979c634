package wrapset

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// wrapSchema is the submission contract every WRAP payload must satisfy
// before it can be counted as VALID.
const wrapSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["outcome", "summary"],
  "properties": {
    "outcome": {"type": "string", "enum": ["SUCCESS", "PARTIAL", "FAILURE"]},
    "summary": {"type": "string", "minLength": 1},
    "metrics": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    },
    "artifacts": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "additionalProperties": false
}`

// Validator finalizes submitted WRAPs against the submission schema and
// the ACK record of the submitting agent.
type Validator struct {
	schema *jsonschema.Schema
	clock  func() time.Time
}

// NewValidator compiles the WRAP submission schema.
func NewValidator() (*Validator, error) {
	schema, err := jsonschema.CompileString("wrap.schema.json", wrapSchema)
	if err != nil {
		return nil, fmt.Errorf("wrapset: compile schema: %w", err)
	}
	return &Validator{schema: schema, clock: time.Now}, nil
}

// WithClock overrides the clock for deterministic testing.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate finalizes wrap exactly once:
//   - no ACKNOWLEDGED ACK from the agent  -> MISSING_ACK
//   - payload fails the submission schema -> SCHEMA_ERROR
//   - payload parses but reports FAILURE  -> INVALID
//   - otherwise                           -> VALID
//
// The artifact's content hash is recomputed after finalization.
func (v *Validator) Validate(wrap *contracts.WRAPArtifact, ack *contracts.AgentACK) error {
	state, detail := v.classify(wrap, ack)
	if err := wrap.Finalize(state, detail); err != nil {
		return err
	}
	hash, err := canonical.Hash(wrap)
	if err != nil {
		return fmt.Errorf("wrapset: rehash WRAP %s: %w", wrap.WRAPID, err)
	}
	wrap.ContentHash = hash
	return nil
}

func (v *Validator) classify(wrap *contracts.WRAPArtifact, ack *contracts.AgentACK) (contracts.WRAPValidationState, string) {
	if ack == nil || ack.State != contracts.ACKAcknowledged {
		return contracts.WRAPMissingACK, fmt.Sprintf("agent %s has no ACKNOWLEDGED ack", wrap.AgentID)
	}

	var payload any
	if err := json.Unmarshal(wrap.Payload, &payload); err != nil {
		return contracts.WRAPSchemaError, fmt.Sprintf("payload is not valid JSON: %v", err)
	}
	if err := v.schema.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return contracts.WRAPSchemaError, ve.Error()
		}
		return contracts.WRAPSchemaError, err.Error()
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return contracts.WRAPSchemaError, "payload is not an object"
	}
	if outcome, _ := obj["outcome"].(string); outcome == "FAILURE" {
		return contracts.WRAPInvalid, "agent reported FAILURE outcome"
	}
	return contracts.WRAPValid, ""
}
