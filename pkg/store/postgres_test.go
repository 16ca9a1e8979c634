package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/canonical"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func TestPostgresStoreSavePAC(t *testing.T) {
	s, mock := newMockPostgres(t)

	pac := &contracts.PAC{
		PACID:     "PAC-010",
		RuntimeID: "runtime-1",
		State:     contracts.StateExecuting,
		ACKs:      map[string]*contracts.AgentACK{},
		WRAPs:     map[string]*contracts.WRAPArtifact{},
	}
	hash, err := canonical.Hash(pac)
	require.NoError(t, err)
	pac.ContentHash = hash

	mock.ExpectExec(`INSERT INTO pacs`).
		WithArgs("PAC-010", "runtime-1", "EXECUTING", hash, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SavePAC(context.Background(), pac))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadPAC(t *testing.T) {
	s, mock := newMockPostgres(t)

	pac := &contracts.PAC{
		PACID:     "PAC-011",
		RuntimeID: "runtime-1",
		State:     contracts.StateWRAPValidated,
		ACKs:      map[string]*contracts.AgentACK{},
		WRAPs:     map[string]*contracts.WRAPArtifact{},
	}
	hash, err := canonical.Hash(pac)
	require.NoError(t, err)
	pac.ContentHash = hash
	payload, err := json.Marshal(pac)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload, content_hash FROM pacs`).
		WithArgs("PAC-011").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "content_hash"}).AddRow(payload, hash))

	loaded, err := s.LoadPAC(context.Background(), "PAC-011")
	require.NoError(t, err)
	assert.Equal(t, contracts.StateWRAPValidated, loaded.State)
	assert.Equal(t, hash, loaded.ContentHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadPACTampered(t *testing.T) {
	s, mock := newMockPostgres(t)

	pac := &contracts.PAC{
		PACID: "PAC-012",
		State: contracts.StateSettled,
		ACKs:  map[string]*contracts.AgentACK{},
		WRAPs: map[string]*contracts.WRAPArtifact{},
	}
	hash, err := canonical.Hash(pac)
	require.NoError(t, err)
	pac.ContentHash = hash
	// The payload says SETTLED but the stored row carries a hash derived
	// from a different state.
	pac.State = contracts.StateExecuting
	forged, err := canonical.Hash(pac)
	require.NoError(t, err)
	pac.State = contracts.StateSettled
	payload, err := json.Marshal(pac)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload, content_hash FROM pacs`).
		WithArgs("PAC-012").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "content_hash"}).AddRow(payload, forged))

	_, err = s.LoadPAC(context.Background(), "PAC-012")
	assert.ErrorIs(t, err, ErrTampered)
}

func TestPostgresStoreLoadPACMissing(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT payload, content_hash FROM pacs`).
		WithArgs("PAC-none").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "content_hash"}))

	_, err := s.LoadPAC(context.Background(), "PAC-none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreVerdictRoundTrip(t *testing.T) {
	s, mock := newMockPostgres(t)

	verdict := &contracts.SettlementReadinessVerdict{
		VerdictID:       "verdict-9",
		PACID:           "PAC-013",
		Status:          contracts.VerdictEligible,
		BlockingReasons: nil,
		EvaluatedAt:     time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	hash, err := canonical.Hash(verdict)
	require.NoError(t, err)
	verdict.ContentHash = hash
	payload, err := json.Marshal(verdict)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO verdicts`).
		WithArgs("PAC-013", "verdict-9", "ELIGIBLE", hash, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT payload FROM verdicts`).
		WithArgs("PAC-013").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	ctx := context.Background()
	require.NoError(t, s.SaveVerdict(ctx, verdict))

	loaded, err := s.LoadVerdict(ctx, "PAC-013")
	require.NoError(t, err)
	assert.True(t, loaded.Eligible())
	assert.NoError(t, mock.ExpectationsWereMet())
}
