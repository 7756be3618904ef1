package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mev-engine/evm-arb-engine/internal/retry"
	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// AggregateHourlyStats computes opportunity/transaction statistics for the
// hour containing hourTimestamp (rounded down to the hour) on chainID and
// upserts the chain_stats row. smallOppMinUSD/MaxUSD bound the "small
// opportunity" band used for capture-rate tracking.
func (s *Store) AggregateHourlyStats(ctx context.Context, chainID int64, hourTimestamp time.Time, smallOppMinUSD, smallOppMaxUSD decimal.Decimal) (*arbtypes.ChainStat, error) {
	hourStart := hourTimestamp.Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)
	exec := s.GetExecutor(ctx)

	const oppQ = `
		SELECT
			COUNT(*) AS total_opportunities,
			COUNT(*) FILTER (WHERE captured = true) AS captured_opportunities,
			COUNT(*) FILTER (WHERE profit_usd >= $1 AND profit_usd <= $2) AS small_opportunities,
			COUNT(*) FILTER (
				WHERE captured = true AND profit_usd >= $1 AND profit_usd <= $2
			) AS small_opps_captured
		FROM opportunities
		WHERE chain_id = $3 AND detected_at >= $4 AND detected_at < $5`

	var totalOpportunities, capturedOpportunities, smallOpportunities, smallOppsCaptured int64
	if err := exec.QueryRow(ctx, oppQ, smallOppMinUSD, smallOppMaxUSD, chainID, hourStart, hourEnd).Scan(
		&totalOpportunities, &capturedOpportunities, &smallOpportunities, &smallOppsCaptured,
	); err != nil {
		return nil, fmt.Errorf("%w: aggregate opportunities: %v", ErrPersistence, err)
	}

	var captureRate, smallOppCaptureRate *decimal.Decimal
	if totalOpportunities > 0 {
		r := decimal.NewFromInt(capturedOpportunities).Div(decimal.NewFromInt(totalOpportunities)).Mul(decimal.NewFromInt(100))
		captureRate = &r
	}
	if smallOpportunities > 0 {
		r := decimal.NewFromInt(smallOppsCaptured).Div(decimal.NewFromInt(smallOpportunities)).Mul(decimal.NewFromInt(100))
		smallOppCaptureRate = &r
	}

	const txQ = `
		SELECT
			COUNT(*) AS total_transactions,
			COUNT(DISTINCT from_address) AS unique_arbitrageurs,
			COALESCE(SUM(profit_net_usd), 0) AS total_profit,
			COALESCE(SUM(gas_cost_usd), 0) AS total_gas_spent,
			AVG(profit_net_usd) AS avg_profit,
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY profit_net_usd) AS median_profit,
			MAX(profit_net_usd) AS max_profit,
			MIN(profit_net_usd) AS min_profit,
			PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY profit_net_usd) AS p95_profit
		FROM transactions
		WHERE chain_id = $1 AND detected_at >= $2 AND detected_at < $3
			AND profit_net_usd IS NOT NULL`

	var totalTransactions, uniqueArbitrageurs int64
	var totalProfit, totalGasSpent decimal.Decimal
	var avgProfit, medianProfit, maxProfit, minProfit, p95Profit *decimal.Decimal
	if err := exec.QueryRow(ctx, txQ, chainID, hourStart, hourEnd).Scan(
		&totalTransactions, &uniqueArbitrageurs, &totalProfit, &totalGasSpent,
		&avgProfit, &medianProfit, &maxProfit, &minProfit, &p95Profit,
	); err != nil {
		return nil, fmt.Errorf("%w: aggregate transactions: %v", ErrPersistence, err)
	}

	zeroCompetition := decimal.Zero
	avgCompetitionLevel := &zeroCompetition
	if totalOpportunities > 0 {
		r := decimal.NewFromInt(uniqueArbitrageurs).Div(decimal.NewFromInt(totalOpportunities))
		avgCompetitionLevel = &r
	}

	stat := &arbtypes.ChainStat{
		ChainID:                 chainID,
		HourTimestamp:           hourStart,
		OpportunitiesDetected:   totalOpportunities,
		OpportunitiesCaptured:   capturedOpportunities,
		SmallOpportunitiesCount: smallOpportunities,
		SmallOppsCaptured:       smallOppsCaptured,
		TransactionsDetected:    totalTransactions,
		UniqueArbitrageurs:      uniqueArbitrageurs,
		TotalProfitUSD:          totalProfit,
		TotalGasSpentUSD:        totalGasSpent,
		AvgProfitUSD:            avgProfit,
		MedianProfitUSD:         medianProfit,
		MaxProfitUSD:            maxProfit,
		MinProfitUSD:            minProfit,
		P95ProfitUSD:            p95Profit,
		CaptureRate:             captureRate,
		SmallOppCaptureRate:     smallOppCaptureRate,
		AvgCompetitionLevel:     avgCompetitionLevel,
	}

	if err := s.UpsertChainStat(ctx, stat); err != nil {
		return nil, err
	}
	return stat, nil
}

// UpsertChainStat writes stat directly, overwriting any existing row for
// its (chain_id, hour_timestamp). Retried on transient failure (spec.md
// §4.9).
func (s *Store) UpsertChainStat(ctx context.Context, stat *arbtypes.ChainStat) error {
	const q = `
		INSERT INTO chain_stats (
			chain_id, hour_timestamp,
			opportunities_detected, opportunities_captured,
			small_opportunities_count, small_opps_captured,
			transactions_detected, unique_arbitrageurs,
			total_profit_usd, total_gas_spent_usd,
			avg_profit_usd, median_profit_usd,
			max_profit_usd, min_profit_usd, p95_profit_usd,
			capture_rate, small_opp_capture_rate, avg_competition_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (chain_id, hour_timestamp) DO UPDATE SET
			opportunities_detected = EXCLUDED.opportunities_detected,
			opportunities_captured = EXCLUDED.opportunities_captured,
			small_opportunities_count = EXCLUDED.small_opportunities_count,
			small_opps_captured = EXCLUDED.small_opps_captured,
			transactions_detected = EXCLUDED.transactions_detected,
			unique_arbitrageurs = EXCLUDED.unique_arbitrageurs,
			total_profit_usd = EXCLUDED.total_profit_usd,
			total_gas_spent_usd = EXCLUDED.total_gas_spent_usd,
			avg_profit_usd = EXCLUDED.avg_profit_usd,
			median_profit_usd = EXCLUDED.median_profit_usd,
			max_profit_usd = EXCLUDED.max_profit_usd,
			min_profit_usd = EXCLUDED.min_profit_usd,
			p95_profit_usd = EXCLUDED.p95_profit_usd,
			capture_rate = EXCLUDED.capture_rate,
			small_opp_capture_rate = EXCLUDED.small_opp_capture_rate,
			avg_competition_level = EXCLUDED.avg_competition_level`

	err := retry.WithBackoff(ctx, retry.PersistenceConfig(), s.logger, "upsert_chain_stat", func() error {
		_, execErr := s.GetExecutor(ctx).Exec(ctx, q,
			stat.ChainID, stat.HourTimestamp,
			stat.OpportunitiesDetected, stat.OpportunitiesCaptured,
			stat.SmallOpportunitiesCount, stat.SmallOppsCaptured,
			stat.TransactionsDetected, stat.UniqueArbitrageurs,
			stat.TotalProfitUSD, stat.TotalGasSpentUSD,
			stat.AvgProfitUSD, stat.MedianProfitUSD,
			stat.MaxProfitUSD, stat.MinProfitUSD, stat.P95ProfitUSD,
			stat.CaptureRate, stat.SmallOppCaptureRate, stat.AvgCompetitionLevel,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("%w: upsert chain stat: %v", ErrPersistence, err)
	}
	return nil
}
