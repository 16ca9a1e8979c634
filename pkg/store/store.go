// Package store persists control-plane records. The plane assumes
// at-least-once durable writes and re-validates loaded records through
// their content hashes instead of trusting the backend.
package store

import (
	"context"
	"errors"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("store: record not found")

// ErrTampered reports a loaded record whose re-derived content hash
// does not match the stored one.
var ErrTampered = errors.New("store: content hash mismatch")

// Store persists PACs and settlement verdicts by id.
type Store interface {
	SavePAC(ctx context.Context, pac *contracts.PAC) error
	LoadPAC(ctx context.Context, pacID string) (*contracts.PAC, error)
	ListPACIDs(ctx context.Context) ([]string, error)

	SaveVerdict(ctx context.Context, verdict *contracts.SettlementReadinessVerdict) error
	LoadVerdict(ctx context.Context, pacID string) (*contracts.SettlementReadinessVerdict, error)
}
