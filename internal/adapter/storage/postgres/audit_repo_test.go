package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     &actor,
		Action:      domain.AuditActionWalletFrozen,
		EntityType:  domain.EntityWallet,
		EntityID:    "w-1",
		Description: "wallet frozen",
		OldValues:   map[string]any{"is_frozen": false},
		NewValues:   map[string]any{"is_frozen": true},
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "WALLET_FROZEN", "WALLET", "w-1", "wallet frozen",
			[]byte(`{"is_frozen":false}`), []byte(`{"is_frozen":true}`), []byte(nil), entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

	err = repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionOrderSettled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit log")
}
