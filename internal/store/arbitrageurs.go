package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mev-engine/evm-arb-engine/internal/arbitrageur"
	"github.com/mev-engine/evm-arb-engine/internal/retry"
	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// UpsertArbitrageur implements arbitrageur.Store: it locks the
// (address, chain_id) row for the duration of the transaction, applies
// merge to the existing row (nil on first sight), and writes the result
// back. The row lock is what lets concurrent updates for the same address
// preserve the total_transactions = successful + failed invariant. The
// whole transaction is retried on transient failure (spec.md §4.9); each
// attempt begins a fresh transaction, so retrying re-acquires the lock.
func (s *Store) UpsertArbitrageur(ctx context.Context, update arbitrageur.Update, merge func(existing *arbtypes.Arbitrageur) *arbtypes.Arbitrageur) (*arbtypes.Arbitrageur, error) {
	address := arbtypes.NormalizeAddress(update.Address)
	var result *arbtypes.Arbitrageur

	err := retry.WithBackoff(ctx, retry.PersistenceConfig(), s.logger, "upsert_arbitrageur", func() error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			existing, err := s.lockArbitrageur(ctx, address, update.ChainID)
			if err != nil {
				return err
			}

			next := merge(existing)
			countsJSON, err := json.Marshal(next.StrategyCounts)
			if err != nil {
				return fmt.Errorf("%w: marshal strategy counts: %v", ErrPersistence, err)
			}

			const q = `
				INSERT INTO arbitrageurs
					(address, chain_id, first_seen, last_seen, total_transactions,
					 successful_transactions, failed_transactions, total_profit_usd,
					 total_gas_spent_usd, avg_gas_price_gwei, preferred_strategy,
					 strategy_counts)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (address, chain_id) DO UPDATE SET
					last_seen = EXCLUDED.last_seen,
					total_transactions = EXCLUDED.total_transactions,
					successful_transactions = EXCLUDED.successful_transactions,
					failed_transactions = EXCLUDED.failed_transactions,
					total_profit_usd = EXCLUDED.total_profit_usd,
					total_gas_spent_usd = EXCLUDED.total_gas_spent_usd,
					avg_gas_price_gwei = EXCLUDED.avg_gas_price_gwei,
					preferred_strategy = EXCLUDED.preferred_strategy,
					strategy_counts = EXCLUDED.strategy_counts
				RETURNING id`

			var id int64
			err = s.GetExecutor(ctx).QueryRow(ctx, q,
				address, next.ChainID, next.FirstSeen, next.LastSeen, next.TotalTransactions,
				next.SuccessfulTransactions, next.FailedTransactions, next.TotalProfitUSD,
				next.TotalGasSpentUSD, next.AvgGasPriceGwei, next.PreferredStrategy,
				countsJSON,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("%w: upsert arbitrageur: %v", ErrPersistence, err)
			}
			next.ID = id
			next.Address = address
			result = next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockArbitrageur reads the current row FOR UPDATE, returning nil if the
// address has never been seen on this chain before.
func (s *Store) lockArbitrageur(ctx context.Context, address string, chainID int64) (*arbtypes.Arbitrageur, error) {
	const q = `
		SELECT id, address, chain_id, first_seen, last_seen, total_transactions,
		       successful_transactions, failed_transactions, total_profit_usd,
		       total_gas_spent_usd, avg_gas_price_gwei, preferred_strategy,
		       strategy_counts, is_bot, contract_address
		FROM arbitrageurs
		WHERE address = $1 AND chain_id = $2
		FOR UPDATE`

	var a arbtypes.Arbitrageur
	var totalProfit, totalGas, avgGasPrice decimal.Decimal
	var preferredStrategy string
	var countsJSON []byte

	err := s.GetExecutor(ctx).QueryRow(ctx, q, address, chainID).Scan(
		&a.ID, &a.Address, &a.ChainID, &a.FirstSeen, &a.LastSeen, &a.TotalTransactions,
		&a.SuccessfulTransactions, &a.FailedTransactions, &totalProfit,
		&totalGas, &avgGasPrice, &preferredStrategy, &countsJSON, &a.IsBot, &a.ContractAddress,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: lock arbitrageur: %v", ErrPersistence, err)
	}

	a.TotalProfitUSD = totalProfit
	a.TotalGasSpentUSD = totalGas
	a.AvgGasPriceGwei = avgGasPrice
	a.PreferredStrategy = preferredStrategy
	a.StrategyCounts = map[string]int64{}
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &a.StrategyCounts); err != nil {
			return nil, fmt.Errorf("%w: unmarshal strategy counts: %v", ErrPersistence, err)
		}
	}
	return &a, nil
}

// ListArbitrageurs returns arbitrageurs matching filters, highest profit first.
func (s *Store) ListArbitrageurs(ctx context.Context, f arbtypes.ArbitrageurFilters) ([]arbtypes.Arbitrageur, error) {
	clauses := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ChainID != nil {
		clauses = append(clauses, "chain_id = "+arg(*f.ChainID))
	}
	if f.MinTotalProfit != nil {
		clauses = append(clauses, "total_profit_usd >= "+arg(*f.MinTotalProfit))
	}
	if f.IsBot != nil {
		clauses = append(clauses, "is_bot = "+arg(*f.IsBot))
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
		SELECT id, address, chain_id, first_seen, last_seen, total_transactions,
		       successful_transactions, failed_transactions, total_profit_usd,
		       total_gas_spent_usd, avg_gas_price_gwei, preferred_strategy,
		       strategy_counts, is_bot, contract_address
		FROM arbitrageurs
		WHERE %s
		ORDER BY total_profit_usd DESC
		LIMIT %s OFFSET %s`, strings.Join(clauses, " AND "), limitPlaceholder, offsetPlaceholder)

	rows, err := s.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list arbitrageurs: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []arbtypes.Arbitrageur
	for rows.Next() {
		var a arbtypes.Arbitrageur
		var totalProfit, totalGas, avgGasPrice decimal.Decimal
		var countsJSON []byte

		if err := rows.Scan(&a.ID, &a.Address, &a.ChainID, &a.FirstSeen, &a.LastSeen, &a.TotalTransactions,
			&a.SuccessfulTransactions, &a.FailedTransactions, &totalProfit,
			&totalGas, &avgGasPrice, &a.PreferredStrategy, &countsJSON, &a.IsBot, &a.ContractAddress); err != nil {
			return nil, fmt.Errorf("%w: scan arbitrageur: %v", ErrPersistence, err)
		}

		a.TotalProfitUSD = totalProfit
		a.TotalGasSpentUSD = totalGas
		a.AvgGasPriceGwei = avgGasPrice
		a.StrategyCounts = map[string]int64{}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &a.StrategyCounts); err != nil {
				return nil, fmt.Errorf("%w: unmarshal strategy counts: %v", ErrPersistence, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate arbitrageurs: %v", ErrPersistence, err)
	}
	return out, nil
}
