// Package prooflog is the append-only, hash-chained log of governance
// events: transitions, barrier releases, BER issuance, and ledger
// commits. Each entry chains to its predecessor; nothing is deleted or
// mutated after append.
//
// The log doubles as the in-process ledger-attestation source: a COMMIT
// entry for a PAC yields its LedgerCommitAttestation.
package prooflog

import (
	"fmt"
	"sync"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
)

// EntryType categorizes a proof-log entry.
type EntryType string

const (
	EntryTransition EntryType = "TRANSITION"
	EntryBarrier    EntryType = "BARRIER_RELEASE"
	EntryBER        EntryType = "BER_ISSUED"
	EntryCommit     EntryType = "LEDGER_COMMIT"
)

// genesisHash seeds the chain before the first entry.
const genesisHash = "genesis"

// Entry is one immutable, hash-chained record.
type Entry struct {
	Sequence    uint64         `json:"sequence"`
	EntryType   EntryType      `json:"entry_type"`
	PACID       string         `json:"pac_id"`
	ContentHash string         `json:"content_hash"`
	PrevHash    string         `json:"prev_hash"`
	Timestamp   time.Time      `json:"timestamp"`
	Actor       string         `json:"actor,omitempty"`
	Data        map[string]any `json:"data"`
}

// Log is an append-only, hash-chained proof log.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	headHash string
	clock    func() time.Time
}

// New creates an empty proof log.
func New() *Log {
	return &Log{headHash: genesisHash, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// Append adds an entry, chaining it to the current head. Returns the
// sequence number.
func (l *Log) Append(entryType EntryType, pacID, actor string, data map[string]any) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	contentHash, err := entryHash(seq, entryType, pacID, data, l.headHash)
	if err != nil {
		return 0, err
	}

	l.entries = append(l.entries, Entry{
		Sequence:    seq,
		EntryType:   entryType,
		PACID:       pacID,
		ContentHash: contentHash,
		PrevHash:    l.headHash,
		Timestamp:   l.clock(),
		Actor:       actor,
		Data:        data,
	})
	l.headHash = contentHash
	return seq, nil
}

func entryHash(seq uint64, entryType EntryType, pacID string, data map[string]any, prev string) (string, error) {
	h, err := canonical.HashValue(map[string]any{
		"seq":    seq,
		"type":   string(entryType),
		"pac_id": pacID,
		"data":   data,
		"prev":   prev,
	})
	if err != nil {
		return "", fmt.Errorf("prooflog: hash entry %d: %w", seq, err)
	}
	return h, nil
}

// Head returns the current chain head hash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Length returns the number of entries.
func (l *Log) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Get returns the entry with the given sequence number.
func (l *Log) Get(seq uint64) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq == 0 || seq > uint64(len(l.entries)) {
		return Entry{}, fmt.Errorf("prooflog: no entry with sequence %d", seq)
	}
	return l.entries[seq-1], nil
}

// Entries returns a copy of all entries for a PAC, in append order.
func (l *Log) Entries(pacID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.PACID == pacID {
			out = append(out, e)
		}
	}
	return out
}

// Verify walks the chain re-deriving every entry hash. It returns false
// with a reason on the first break — a spliced, reordered, or edited
// entry cannot reproduce the chain.
func (l *Log) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prev := genesisHash
	for i, e := range l.entries {
		if e.PrevHash != prev {
			return false, fmt.Sprintf("entry %d prev-hash mismatch", i+1)
		}
		want, err := entryHash(e.Sequence, e.EntryType, e.PACID, e.Data, e.PrevHash)
		if err != nil {
			return false, fmt.Sprintf("entry %d unhashable: %v", i+1, err)
		}
		if want != e.ContentHash {
			return false, fmt.Sprintf("entry %d content-hash mismatch", i+1)
		}
		prev = e.ContentHash
	}
	if prev != l.headHash {
		return false, "head hash does not match last entry"
	}
	return true, ""
}
