package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates and wraps an open sqlite handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) a sqlite database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS pacs (
		pac_id TEXT PRIMARY KEY,
		runtime_id TEXT,
		state TEXT,
		content_hash TEXT NOT NULL,
		payload JSON NOT NULL,
		updated_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS verdicts (
		pac_id TEXT PRIMARY KEY,
		verdict_id TEXT,
		status TEXT,
		content_hash TEXT NOT NULL,
		payload JSON NOT NULL,
		evaluated_at DATETIME
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// SavePAC upserts the full PAC record, keyed by id.
func (s *SQLiteStore) SavePAC(ctx context.Context, pac *contracts.PAC) error {
	payload, err := json.Marshal(pac)
	if err != nil {
		return fmt.Errorf("store: marshal PAC %s: %w", pac.PACID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pacs (pac_id, runtime_id, state, content_hash, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pac_id) DO UPDATE SET
			runtime_id = excluded.runtime_id,
			state = excluded.state,
			content_hash = excluded.content_hash,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		pac.PACID, pac.RuntimeID, string(pac.State), pac.ContentHash, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save PAC %s: %w", pac.PACID, err)
	}
	return nil
}

// LoadPAC loads a PAC and re-derives its content hash. A stored hash
// the record cannot reproduce fails with ErrTampered.
func (s *SQLiteStore) LoadPAC(ctx context.Context, pacID string) (*contracts.PAC, error) {
	var payload []byte
	var storedHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, content_hash FROM pacs WHERE pac_id = ?`, pacID).
		Scan(&payload, &storedHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load PAC %s: %w", pacID, err)
	}

	var pac contracts.PAC
	if err := json.Unmarshal(payload, &pac); err != nil {
		return nil, fmt.Errorf("store: unmarshal PAC %s: %w", pacID, err)
	}
	return &pac, verifyPAC(&pac, storedHash)
}

func verifyPAC(pac *contracts.PAC, storedHash string) error {
	ok, err := canonical.Verify(pac, storedHash)
	if err != nil {
		return fmt.Errorf("store: verify PAC %s: %w", pac.PACID, err)
	}
	if !ok || pac.ContentHash != storedHash {
		return fmt.Errorf("%w: PAC %s", ErrTampered, pac.PACID)
	}
	return nil
}

// ListPACIDs returns all stored PAC ids.
func (s *SQLiteStore) ListPACIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pac_id FROM pacs ORDER BY pac_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list PACs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveVerdict upserts the latest verdict for a PAC.
func (s *SQLiteStore) SaveVerdict(ctx context.Context, verdict *contracts.SettlementReadinessVerdict) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("store: marshal verdict %s: %w", verdict.VerdictID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (pac_id, verdict_id, status, content_hash, payload, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pac_id) DO UPDATE SET
			verdict_id = excluded.verdict_id,
			status = excluded.status,
			content_hash = excluded.content_hash,
			payload = excluded.payload,
			evaluated_at = excluded.evaluated_at`,
		verdict.PACID, verdict.VerdictID, string(verdict.Status), verdict.ContentHash, payload, verdict.EvaluatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save verdict for %s: %w", verdict.PACID, err)
	}
	return nil
}

// LoadVerdict loads the latest verdict for a PAC.
func (s *SQLiteStore) LoadVerdict(ctx context.Context, pacID string) (*contracts.SettlementReadinessVerdict, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM verdicts WHERE pac_id = ?`, pacID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load verdict for %s: %w", pacID, err)
	}
	var verdict contracts.SettlementReadinessVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, fmt.Errorf("store: unmarshal verdict for %s: %w", pacID, err)
	}
	return &verdict, nil
}

// Close closes the underlying handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
