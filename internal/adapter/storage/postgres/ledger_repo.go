package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, wallet_id, wallet_kind, sequence, kind, amount,
	balance_before, balance_after, reserved_before, reserved_after,
	related_type, related_id, created_by, note, metadata, created_at`

// LedgerRepo implements ports.LedgerTransactionRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts one immutable ledger entry within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerTransaction) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}
	relatedType, relatedID := relatedColumns(e.Related)

	query := `INSERT INTO ledger_transactions (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.WalletID, e.WalletKind, e.Sequence, e.Kind, e.Amount,
		e.BalanceBefore, e.BalanceAfter, e.ReservedBefore, e.ReservedAfter,
		relatedType, relatedID, e.CreatedBy, e.Note, metadata, e.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert ledger transaction", err)
	}
	return nil
}

// List fetches a wallet's entries with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.RelatedType != nil {
		conditions = append(conditions, fmt.Sprintf("related_type = $%d", argIdx))
		args = append(args, *params.RelatedType)
		argIdx++
	}
	if params.RelatedID != nil {
		conditions = append(conditions, fmt.Sprintf("related_id = $%d", argIdx))
		args = append(args, *params.RelatedID)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_transactions %s ORDER BY sequence DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	entries, err := r.query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByWallet returns every entry of a wallet in sequence order, for replay.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions WHERE wallet_id = $1 ORDER BY sequence ASC`
	return r.query(ctx, query, walletID)
}

func (r *LedgerRepo) query(ctx context.Context, query string, args ...any) ([]domain.LedgerTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerTransaction
	for rows.Next() {
		var (
			e           domain.LedgerTransaction
			relatedType *string
			relatedID   *string
			metadata    []byte
		)
		err := rows.Scan(
			&e.ID, &e.WalletID, &e.WalletKind, &e.Sequence, &e.Kind, &e.Amount,
			&e.BalanceBefore, &e.BalanceAfter, &e.ReservedBefore, &e.ReservedAfter,
			&relatedType, &relatedID, &e.CreatedBy, &e.Note, &metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.Related = relatedFromColumns(relatedType, relatedID)
		if e.Metadata, err = unmarshalJSON(metadata); err != nil {
			return nil, fmt.Errorf("decode ledger metadata %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

func relatedColumns(r domain.RelatedEntity) (*string, *string) {
	if r.IsNone() {
		return nil, nil
	}
	t := string(r.Type)
	id := r.ID
	return &t, &id
}

func relatedFromColumns(t, id *string) domain.RelatedEntity {
	if t == nil || *t == "" {
		return domain.RelatedEntity{}
	}
	r := domain.RelatedEntity{Type: domain.RelatedType(*t)}
	if id != nil {
		r.ID = *id
	}
	return r
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
