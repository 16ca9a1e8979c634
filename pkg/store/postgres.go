package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

// PostgresStore persists records in PostgreSQL for multi-node deployments.
// Schema mirrors the sqlite store; payloads are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore migrates and wraps an open database handle.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects using a lib/pq connection string.
func OpenPostgres(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return NewPostgresStore(db)
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS pacs (
		pac_id TEXT PRIMARY KEY,
		runtime_id TEXT,
		state TEXT,
		content_hash TEXT NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS verdicts (
		pac_id TEXT PRIMARY KEY,
		verdict_id TEXT,
		status TEXT,
		content_hash TEXT NOT NULL,
		payload JSONB NOT NULL,
		evaluated_at TIMESTAMPTZ
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) SavePAC(ctx context.Context, pac *contracts.PAC) error {
	payload, err := json.Marshal(pac)
	if err != nil {
		return fmt.Errorf("store: marshal PAC %s: %w", pac.PACID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pacs (pac_id, runtime_id, state, content_hash, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pac_id) DO UPDATE SET
			runtime_id = EXCLUDED.runtime_id,
			state = EXCLUDED.state,
			content_hash = EXCLUDED.content_hash,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		pac.PACID, pac.RuntimeID, string(pac.State), pac.ContentHash, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save PAC %s: %w", pac.PACID, err)
	}
	return nil
}

func (s *PostgresStore) LoadPAC(ctx context.Context, pacID string) (*contracts.PAC, error) {
	var payload []byte
	var storedHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, content_hash FROM pacs WHERE pac_id = $1`, pacID).
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

func (s *PostgresStore) ListPACIDs(ctx context.Context) ([]string, error) {
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

func (s *PostgresStore) SaveVerdict(ctx context.Context, verdict *contracts.SettlementReadinessVerdict) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("store: marshal verdict %s: %w", verdict.VerdictID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (pac_id, verdict_id, status, content_hash, payload, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pac_id) DO UPDATE SET
			verdict_id = EXCLUDED.verdict_id,
			status = EXCLUDED.status,
			content_hash = EXCLUDED.content_hash,
			payload = EXCLUDED.payload,
			evaluated_at = EXCLUDED.evaluated_at`,
		verdict.PACID, verdict.VerdictID, string(verdict.Status), verdict.ContentHash, payload, verdict.EvaluatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save verdict for %s: %w", verdict.PACID, err)
	}
	return nil
}

func (s *PostgresStore) LoadVerdict(ctx context.Context, pacID string) (*contracts.SettlementReadinessVerdict, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM verdicts WHERE pac_id = $1`, pacID).Scan(&payload)
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

func (s *PostgresStore) Close() error { return s.db.Close() }
