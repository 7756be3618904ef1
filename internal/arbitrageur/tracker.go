// Package arbitrageur maintains cumulative per-address statistics,
// updated atomically on every detected arbitrage transaction.
package arbitrageur

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// Update is one observation to fold into an arbitrageur's running stats.
type Update struct {
	Address       string
	ChainID       int64
	Success       bool // from the receipt's status field, not profit sign
	ProfitNetUSD  decimal.Decimal
	GasCostUSD    decimal.Decimal
	GasPriceGwei  decimal.Decimal
	Strategy      string
	ObservedAt    time.Time
}

// Store is the persistence seam the tracker depends on: a single
// round-trip that locks the (address, chain_id) row, applies the merge,
// and returns the resulting row.
type Store interface {
	UpsertArbitrageur(ctx context.Context, update Update, merge func(existing *arbtypes.Arbitrageur) *arbtypes.Arbitrageur) (*arbtypes.Arbitrageur, error)
}

// Tracker applies arbitrageur updates through a row-locking Store.
type Tracker struct {
	store  Store
	logger *zap.Logger
}

// New builds a Tracker backed by store.
func New(store Store, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, logger: logger.With(zap.String("component", "arbitrageur_tracker"))}
}

// Record folds one transaction observation into the arbitrageur's row,
// inserting it on first sight.
func (t *Tracker) Record(ctx context.Context, update Update) (*arbtypes.Arbitrageur, error) {
	result, err := t.store.UpsertArbitrageur(ctx, update, func(existing *arbtypes.Arbitrageur) *arbtypes.Arbitrageur {
		return Merge(existing, update)
	})
	if err != nil {
		t.logger.Error("failed to upsert arbitrageur",
			zap.String("address", update.Address), zap.Int64("chain_id", update.ChainID), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Merge applies update to existing (nil on first sight) and returns the new
// row state. It is a pure function so the upsert arithmetic can be tested
// independently of any transaction/locking machinery.
func Merge(existing *arbtypes.Arbitrageur, update Update) *arbtypes.Arbitrageur {
	profitDelta := update.ProfitNetUSD
	if profitDelta.IsNegative() {
		profitDelta = decimal.Zero
	}

	if existing == nil {
		counts := map[string]int64{update.Strategy: 1}
		successful := int64(0)
		failed := int64(0)
		if update.Success {
			successful = 1
		} else {
			failed = 1
		}
		return &arbtypes.Arbitrageur{
			Address:                update.Address,
			ChainID:                update.ChainID,
			FirstSeen:              update.ObservedAt,
			LastSeen:               update.ObservedAt,
			TotalTransactions:      1,
			SuccessfulTransactions: successful,
			FailedTransactions:     failed,
			TotalProfitUSD:         profitDelta,
			TotalGasSpentUSD:       update.GasCostUSD,
			AvgGasPriceGwei:        update.GasPriceGwei,
			PreferredStrategy:      update.Strategy,
			StrategyCounts:         counts,
		}
	}

	next := *existing
	next.LastSeen = update.ObservedAt
	next.TotalTransactions = existing.TotalTransactions + 1
	if update.Success {
		next.SuccessfulTransactions = existing.SuccessfulTransactions + 1
	} else {
		next.FailedTransactions = existing.FailedTransactions + 1
	}
	next.TotalProfitUSD = existing.TotalProfitUSD.Add(profitDelta)
	next.TotalGasSpentUSD = existing.TotalGasSpentUSD.Add(update.GasCostUSD)

	// Running mean: avg' = avg + (new - avg) / n
	n := decimal.NewFromInt(next.TotalTransactions)
	next.AvgGasPriceGwei = existing.AvgGasPriceGwei.Add(
		update.GasPriceGwei.Sub(existing.AvgGasPriceGwei).Div(n))

	counts := make(map[string]int64, len(existing.StrategyCounts)+1)
	for k, v := range existing.StrategyCounts {
		counts[k] = v
	}
	counts[update.Strategy]++
	next.StrategyCounts = counts
	next.PreferredStrategy = argmaxStrategy(counts)

	return &next
}

// argmaxStrategy returns the strategy with the highest observed count,
// breaking ties by lexical order for a deterministic result.
func argmaxStrategy(counts map[string]int64) string {
	best := ""
	var bestCount int64 = -1
	for strategy, count := range counts {
		if count > bestCount || (count == bestCount && strategy < best) {
			best = strategy
			bestCount = count
		}
	}
	return best
}
