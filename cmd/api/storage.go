package main

import (
	"context"
	"fmt"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/adapter/storage/memory"
	pgStorage "marketplace-ledger/internal/adapter/storage/postgres"
	"marketplace-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// storage bundles the repositories of one storage driver.
type storage struct {
	wallets     ports.WalletRepository
	ledger      ports.LedgerTransactionRepository
	withdrawals ports.WithdrawalRepository
	settlements ports.SettlementRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	rates       ports.CommissionRateStore // used when Redis is disabled
	health      ports.HealthChecker
	close       func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	rate, err := cfg.Ledger.CommissionRate()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return &storage{
			wallets:     memory.NewWalletRepo(s),
			ledger:      memory.NewLedgerRepo(s),
			withdrawals: memory.NewWithdrawalRepo(s),
			settlements: memory.NewSettlementRepo(s),
			audit:       memory.NewAuditRepo(s),
			transactor:  memory.NewTransactor(s, cfg.Database.LockTimeout),
			rates:       memory.NewCommissionRateStore(rate),
			health:      memory.NewHealthCheck(),
			close:       func() {},
		}, nil

	case config.StorageDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")

		return &storage{
			wallets:     pgStorage.NewWalletRepo(pool),
			ledger:      pgStorage.NewLedgerRepo(pool),
			withdrawals: pgStorage.NewWithdrawalRepo(pool),
			settlements: pgStorage.NewSettlementRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
			rates:       memory.NewCommissionRateStore(rate),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
