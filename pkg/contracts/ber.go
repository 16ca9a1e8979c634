package contracts

import "time"

// BERStatus is the issuance state of an execution report.
type BERStatus string

const (
	BERDraft  BERStatus = "DRAFT"
	BERIssued BERStatus = "ISSUED"
)

// BERFinality distinguishes a committed report from a provisional one.
// Settlement requires FINAL; PROVISIONAL blocks on its own.
type BERFinality string

const (
	FinalityFinal       BERFinality = "FINAL"
	FinalityProvisional BERFinality = "PROVISIONAL"
)

// LedgerCommitStatus tracks whether the report's evidence reached the
// external ledger.
type LedgerCommitStatus string

const (
	CommitPending   LedgerCommitStatus = "PENDING"
	CommitCommitted LedgerCommitStatus = "COMMITTED"
)

// BERRecord is the execution report issued once a PAC's WRAP set
// validates. Issued once per PAC; immutable after issuance.
type BERRecord struct {
	BERID     string `json:"ber_id"`
	PACID     string `json:"pac_id"`
	WRAPSetID string `json:"wrap_set_id"`

	ExecutionMode ExecutionMode `json:"execution_mode"`
	Status        BERStatus     `json:"status"`
	Finality      BERFinality   `json:"finality"`

	CommitStatus LedgerCommitStatus `json:"ledger_commit_status"`
	CommitHash   string             `json:"ledger_commit_hash,omitempty"`

	// WRAPHashes is the sorted set of member WRAP hashes the report
	// commits to.
	WRAPHashes []string  `json:"wrap_hashes"`
	IssuedAt   time.Time `json:"issued_at"`

	ContentHash string `json:"content_hash"`
}

// CanonicalFields returns the fields covered by the BER's content hash.
func (b *BERRecord) CanonicalFields() map[string]any {
	return map[string]any{
		"ber_id":               b.BERID,
		"pac_id":               b.PACID,
		"wrap_set_id":          b.WRAPSetID,
		"execution_mode":       string(b.ExecutionMode),
		"status":               string(b.Status),
		"finality":             string(b.Finality),
		"ledger_commit_status": string(b.CommitStatus),
		"ledger_commit_hash":   b.CommitHash,
		"wrap_hashes":          append([]string{}, b.WRAPHashes...),
		"issued_at":            b.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// LedgerCommitAttestation binds a PAC's WRAP-hash-set and BER hash to an
// external ledger reference. Its presence is a hard precondition for
// settlement.
type LedgerCommitAttestation struct {
	PACID       string    `json:"pac_id"`
	BERHash     string    `json:"ber_hash"`
	WRAPHashes  []string  `json:"wrap_hashes"`
	LedgerRef   string    `json:"ledger_ref"`
	CommittedAt time.Time `json:"committed_at"`

	ContentHash string `json:"content_hash"`
}

// CanonicalFields returns the fields covered by the attestation's hash.
func (l *LedgerCommitAttestation) CanonicalFields() map[string]any {
	return map[string]any{
		"pac_id":       l.PACID,
		"ber_hash":     l.BERHash,
		"wrap_hashes":  append([]string{}, l.WRAPHashes...),
		"ledger_ref":   l.LedgerRef,
		"committed_at": l.CommittedAt.UTC().Format(time.RFC3339Nano),
	}
}
