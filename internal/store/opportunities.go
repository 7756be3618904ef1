package store

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mev-engine/evm-arb-engine/internal/retry"
	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// SaveOpportunity inserts a detected opportunity. Opportunities are not
// deduplicated by the store — the scanner decides detection cadence.
// The insert is retried on transient failure (spec.md §4.9).
func (s *Store) SaveOpportunity(ctx context.Context, o arbtypes.Opportunity) (int64, error) {
	const q = `
		INSERT INTO opportunities
			(chain_id, pool_label, pool_address, imbalance_pct, profit_usd,
			 profit_native, reserve0, reserve1, block_number, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err := retry.WithBackoff(ctx, retry.PersistenceConfig(), s.logger, "save_opportunity", func() error {
		return s.GetExecutor(ctx).QueryRow(ctx, q,
			o.ChainID, o.PoolLabel, o.PoolAddress, o.ImbalancePct, o.ProfitUSD,
			o.ProfitNative, o.Reserve0.String(), o.Reserve1.String(), o.BlockNumber, o.DetectedAt,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: save opportunity: %v", ErrPersistence, err)
	}
	return id, nil
}

// MarkCaptured flags an opportunity as captured by capturedBy in txHash.
// The update is retried on transient failure (spec.md §4.9); ErrNotFound is
// not retried since a nonexistent id will never start existing.
func (s *Store) MarkCaptured(ctx context.Context, id int64, capturedBy, txHash string) error {
	const q = `
		UPDATE opportunities
		SET captured = TRUE, captured_by = $2, capture_tx_hash = $3
		WHERE id = $1`

	notFound := false
	err := retry.WithBackoff(ctx, retry.PersistenceConfig(), s.logger, "mark_captured", func() error {
		tag, execErr := s.GetExecutor(ctx).Exec(ctx, q, id, capturedBy, txHash)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			notFound = true
			return nil
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: mark captured: %v", ErrPersistence, err)
	}
	if notFound {
		return ErrNotFound
	}
	return nil
}

// ListOpportunities returns opportunities matching filters, most recent first.
func (s *Store) ListOpportunities(ctx context.Context, f arbtypes.OpportunityFilters) ([]arbtypes.Opportunity, error) {
	clauses := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ChainID != nil {
		clauses = append(clauses, "chain_id = "+arg(*f.ChainID))
	}
	if f.PoolAddress != nil {
		clauses = append(clauses, "pool_address = "+arg(arbtypes.NormalizeAddress(*f.PoolAddress)))
	}
	if f.Captured != nil {
		clauses = append(clauses, "captured = "+arg(*f.Captured))
	}
	if f.MinProfitUSD != nil {
		clauses = append(clauses, "profit_usd >= "+arg(*f.MinProfitUSD))
	}
	if f.MaxProfitUSD != nil {
		clauses = append(clauses, "profit_usd <= "+arg(*f.MaxProfitUSD))
	}
	if f.DetectedFrom != nil {
		clauses = append(clauses, "detected_at >= "+arg(*f.DetectedFrom))
	}
	if f.DetectedTo != nil {
		clauses = append(clauses, "detected_at <= "+arg(*f.DetectedTo))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	limitPlaceholder := fmt.Sprintf("$%d", len(args))
	args = append(args, f.Offset)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, chain_id, pool_label, pool_address, imbalance_pct, profit_usd,
		       profit_native, reserve0, reserve1, block_number, detected_at,
		       captured, captured_by, capture_tx_hash
		FROM opportunities
		WHERE %s
		ORDER BY detected_at DESC
		LIMIT %s OFFSET %s`, strings.Join(clauses, " AND "), limitPlaceholder, offsetPlaceholder)

	rows, err := s.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list opportunities: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []arbtypes.Opportunity
	for rows.Next() {
		var o arbtypes.Opportunity
		var imbalance, profitUSD, profitNative decimal.Decimal
		var reserve0, reserve1 string
		var capturedBy, captureTxHash *string

		if err := rows.Scan(&o.ID, &o.ChainID, &o.PoolLabel, &o.PoolAddress, &imbalance, &profitUSD,
			&profitNative, &reserve0, &reserve1, &o.BlockNumber, &o.DetectedAt,
			&o.Captured, &capturedBy, &captureTxHash); err != nil {
			return nil, fmt.Errorf("%w: scan opportunity: %v", ErrPersistence, err)
		}

		o.ImbalancePct = imbalance
		o.ProfitUSD = profitUSD
		o.ProfitNative = profitNative
		o.Reserve0, _ = new(big.Int).SetString(reserve0, 10)
		o.Reserve1, _ = new(big.Int).SetString(reserve1, 10)
		o.CapturedBy = capturedBy
		o.CaptureTxHash = captureTxHash
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate opportunities: %v", ErrPersistence, err)
	}
	return out, nil
}
