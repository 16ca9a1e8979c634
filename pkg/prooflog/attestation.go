package prooflog

import (
	"fmt"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// AttestationSource supplies ledger-commit attestations to the
// settlement evaluator. The evaluator treats the result as data; it
// never performs the lookup itself during evaluation.
type AttestationSource interface {
	Attestation(pacID string) (*contracts.LedgerCommitAttestation, bool)
}

// Commit appends a LEDGER_COMMIT entry binding the PAC's WRAP hashes
// and BER hash to a ledger reference, and returns the attestation.
func (l *Log) Commit(pacID, berHash string, wrapHashes []string, ledgerRef string) (*contracts.LedgerCommitAttestation, error) {
	seq, err := l.Append(EntryCommit, pacID, "ledger", map[string]any{
		"ber_hash":    berHash,
		"wrap_hashes": append([]string{}, wrapHashes...),
		"ledger_ref":  ledgerRef,
	})
	if err != nil {
		return nil, err
	}
	entry, err := l.Get(seq)
	if err != nil {
		return nil, err
	}

	att := &contracts.LedgerCommitAttestation{
		PACID:       pacID,
		BERHash:     berHash,
		WRAPHashes:  append([]string{}, wrapHashes...),
		LedgerRef:   ledgerRef,
		CommittedAt: entry.Timestamp,
	}
	hash, err := canonical.Hash(att)
	if err != nil {
		return nil, fmt.Errorf("prooflog: hash attestation for PAC %s: %w", pacID, err)
	}
	att.ContentHash = hash
	return att, nil
}

// Attestation rebuilds the attestation for a PAC from its most recent
// LEDGER_COMMIT entry, if one exists.
func (l *Log) Attestation(pacID string) (*contracts.LedgerCommitAttestation, bool) {
	var found *Entry
	for _, e := range l.Entries(pacID) {
		if e.EntryType == EntryCommit {
			entry := e
			found = &entry
		}
	}
	if found == nil {
		return nil, false
	}

	berHash, _ := found.Data["ber_hash"].(string)
	ledgerRef, _ := found.Data["ledger_ref"].(string)
	var wrapHashes []string
	switch hs := found.Data["wrap_hashes"].(type) {
	case []string:
		wrapHashes = append([]string{}, hs...)
	case []any:
		for _, h := range hs {
			if s, ok := h.(string); ok {
				wrapHashes = append(wrapHashes, s)
			}
		}
	}

	att := &contracts.LedgerCommitAttestation{
		PACID:       pacID,
		BERHash:     berHash,
		WRAPHashes:  wrapHashes,
		LedgerRef:   ledgerRef,
		CommittedAt: found.Timestamp,
	}
	if hash, err := canonical.Hash(att); err == nil {
		att.ContentHash = hash
	}
	return att, true
}
