package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Freeze blocks every credit, debit and reserve on a merchant wallet.
// Freezing a frozen wallet returns it unchanged and is not audited again.
func (s *LedgerServiceImpl) Freeze(ctx context.Context, owner domain.Owner, actor domain.Actor, reason string) (*domain.Wallet, error) {
	return s.setFrozen(ctx, owner, actor, true, reason)
}

// Unfreeze lifts a freeze. Unfreezing an active wallet is a no-op.
func (s *LedgerServiceImpl) Unfreeze(ctx context.Context, owner domain.Owner, actor domain.Actor) (*domain.Wallet, error) {
	return s.setFrozen(ctx, owner, actor, false, "")
}

func (s *LedgerServiceImpl) setFrozen(ctx context.Context, owner domain.Owner, actor domain.Actor, frozen bool, reason string) (*domain.Wallet, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	if owner.Kind != domain.WalletKindMerchant {
		return nil, apperror.Validation("only merchant wallets can be frozen")
	}

	changed := false
	wallet, err := inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.Wallet, error) {
		w, err := s.walletRepo.GetOrCreateForUpdate(ctx, tx, owner, s.currency)
		if err != nil {
			return nil, storeErr("lock wallet", err)
		}
		if w.IsFrozen == frozen {
			return w, nil
		}

		w.IsFrozen = frozen
		if frozen {
			now := time.Now().UTC()
			w.FrozenAt = &now
			w.FrozenBy = actor.Ref()
		} else {
			w.FrozenAt = nil
			w.FrozenBy = nil
		}
		if err := s.walletRepo.Update(ctx, tx, w); err != nil {
			return nil, storeErr("update wallet", err)
		}
		changed = true
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return wallet, nil
	}

	action, verb := domain.AuditActionWalletUnfrozen, "unfrozen"
	if frozen {
		action, verb = domain.AuditActionWalletFrozen, "frozen"
	}
	entry := &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     actor.Ref(),
		Action:      action,
		EntityType:  domain.EntityWallet,
		EntityID:    wallet.ID.String(),
		Description: fmt.Sprintf("Wallet %s %s", owner, verb),
		OldValues:   map[string]any{"is_frozen": !frozen},
		NewValues:   map[string]any{"is_frozen": frozen},
		CreatedAt:   time.Now().UTC(),
	}
	if reason != "" {
		entry.Metadata = map[string]any{"reason": reason}
	}
	s.auditSvc.Log(ctx, entry)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Bool("frozen", frozen).
		Msg("wallet freeze changed")

	return wallet, nil
}
