package service

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/logger"
)

// VerifyWallet replays the wallet's ledger and compares the fold with the
// stored balances. An inconsistent wallet is reported and alerted, never repaired.
func (s *LedgerServiceImpl) VerifyWallet(ctx context.Context, owner domain.Owner) (*ports.ReconciliationReport, error) {
	wallet, err := s.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, storeErr("list ledger entries", err)
	}

	expected := domain.Fold(entries)
	actual := domain.Totals{
		Balance:         wallet.Balance,
		ReservedBalance: wallet.ReservedBalance,
		TotalWithdrawn:  wallet.TotalWithdrawn,
		Entries:         int(wallet.LastSequence),
	}

	report := &ports.ReconciliationReport{
		WalletID:  wallet.ID,
		Owner:     owner,
		Expected:  expected,
		Actual:    actual,
		CheckedAt: time.Now().UTC(),
		Consistent: expected.Balance.Equal(actual.Balance) &&
			expected.ReservedBalance.Equal(actual.ReservedBalance) &&
			expected.TotalWithdrawn.Equal(actual.TotalWithdrawn) &&
			expected.Entries == actual.Entries,
	}

	if !report.Consistent {
		logger.Alert(s.log).
			Str("wallet_id", wallet.ID.String()).
			Str("expected_balance", expected.Balance.String()).
			Str("actual_balance", actual.Balance.String()).
			Str("expected_reserved", expected.ReservedBalance.String()).
			Str("actual_reserved", actual.ReservedBalance.String()).
			Msg("wallet does not match its ledger")
	}

	return report, nil
}
