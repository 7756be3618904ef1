package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mev-engine/evm-arb-engine/internal/retry"
	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// SaveTransaction inserts a confirmed arbitrage transaction. The
// (chain_id, tx_hash) unique constraint makes this idempotent: a replayed
// detection for an already-recorded hash is silently ignored rather than
// erroring, since the chain monitor reprocesses from the last synced block
// on restart and may see the same tx twice. The insert is retried on
// transient failure (spec.md §4.9); the already-recorded case is not an
// error and is never retried.
func (s *Store) SaveTransaction(ctx context.Context, tx arbtypes.ArbitrageTransaction) (int64, bool, error) {
	const q = `
		INSERT INTO transactions
			(chain_id, tx_hash, from_address, block_number, block_timestamp,
			 gas_price_gwei, gas_used, gas_cost_native, gas_cost_usd,
			 swap_count, strategy, profit_gross_usd, profit_net_usd,
			 pools_involved, tokens_involved, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (chain_id, tx_hash) DO NOTHING
			RETURNING id`

	var id int64
	found := true
	err := retry.WithBackoff(ctx, retry.PersistenceConfig(), s.logger, "save_transaction", func() error {
		scanErr := s.GetExecutor(ctx).QueryRow(ctx, q,
			tx.ChainID, tx.TxHash, tx.FromAddress, tx.BlockNumber, tx.BlockTimestamp,
			tx.GasPriceGwei, tx.GasUsed, tx.GasCostNative, tx.GasCostUSD,
			tx.SwapCount, tx.Strategy, tx.ProfitGrossUSD, tx.ProfitNetUSD,
			tx.PoolsInvolved, tx.TokensInvolved, tx.DetectedAt,
		).Scan(&id)
		if scanErr != nil && IsNoRows(scanErr) {
			// ON CONFLICT DO NOTHING produced no RETURNING row: already
			// recorded, not a transient failure.
			found = false
			return nil
		}
		return scanErr
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: save transaction: %v", ErrPersistence, err)
	}
	if !found {
		return 0, false, nil
	}
	return id, true, nil
}

// ListTransactions returns transactions matching filters, most recent first.
func (s *Store) ListTransactions(ctx context.Context, f arbtypes.TransactionFilters) ([]arbtypes.ArbitrageTransaction, error) {
	clauses := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ChainID != nil {
		clauses = append(clauses, "chain_id = "+arg(*f.ChainID))
	}
	if f.FromAddress != nil {
		clauses = append(clauses, "from_address = "+arg(arbtypes.NormalizeAddress(*f.FromAddress)))
	}
	if f.Strategy != nil {
		clauses = append(clauses, "strategy = "+arg(*f.Strategy))
	}
	if f.MinProfitUSD != nil {
		clauses = append(clauses, "profit_net_usd >= "+arg(*f.MinProfitUSD))
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
		SELECT id, chain_id, tx_hash, from_address, block_number, block_timestamp,
		       gas_price_gwei, gas_used, gas_cost_native, gas_cost_usd,
		       swap_count, strategy, profit_gross_usd, profit_net_usd,
		       pools_involved, tokens_involved, detected_at
		FROM transactions
		WHERE %s
		ORDER BY detected_at DESC
		LIMIT %s OFFSET %s`, strings.Join(clauses, " AND "), limitPlaceholder, offsetPlaceholder)

	rows, err := s.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []arbtypes.ArbitrageTransaction
	for rows.Next() {
		var t arbtypes.ArbitrageTransaction
		var gasPrice, gasCostNative, gasCostUSD decimal.Decimal
		var profitGross, profitNet *decimal.Decimal

		if err := rows.Scan(&t.ID, &t.ChainID, &t.TxHash, &t.FromAddress, &t.BlockNumber, &t.BlockTimestamp,
			&gasPrice, &t.GasUsed, &gasCostNative, &gasCostUSD,
			&t.SwapCount, &t.Strategy, &profitGross, &profitNet,
			&t.PoolsInvolved, &t.TokensInvolved, &t.DetectedAt); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", ErrPersistence, err)
		}

		t.GasPriceGwei = gasPrice
		t.GasCostNative = gasCostNative
		t.GasCostUSD = gasCostUSD
		t.ProfitGrossUSD = profitGross
		t.ProfitNetUSD = profitNet
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions: %v", ErrPersistence, err)
	}
	return out, nil
}
