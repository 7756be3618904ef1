// Package stats runs the hourly chain_stats aggregation job on a cron
// schedule (spec.md §4.7).
package stats

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// hourlySpec runs at the top of every hour, matching the reference
// aggregator's 3600-second interval.
const hourlySpec = "0 * * * *"

// Store is the persistence seam the aggregator depends on.
type Store interface {
	AggregateHourlyStats(ctx context.Context, chainID int64, hourTimestamp time.Time, smallOppMinUSD, smallOppMaxUSD decimal.Decimal) (*arbtypes.ChainStat, error)
}

// ChainRange supplies the small-opportunity USD band configured per chain.
type ChainRange struct {
	ChainID        int64
	SmallOppMinUSD decimal.Decimal
	SmallOppMaxUSD decimal.Decimal
}

// Aggregator schedules and runs the hourly stats rollup for every
// configured chain.
type Aggregator struct {
	store  Store
	chains []ChainRange
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds an Aggregator for chains, backed by store.
func New(store Store, chains []ChainRange, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		chains: chains,
		logger: logger.With(zap.String("component", "stats_aggregator")),
	}
}

// Start schedules the hourly job and begins running it in the background.
// Call Stop to drain any in-flight run before shutdown.
func (a *Aggregator) Start(ctx context.Context) error {
	a.cron = cron.New()
	_, err := a.cron.AddFunc(hourlySpec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		a.AggregateAllChains(runCtx, previousHour(time.Now().UTC()))
	})
	if err != nil {
		return err
	}
	a.cron.Start()
	a.logger.Info("stats aggregator started", zap.String("schedule", hourlySpec))
	return nil
}

// Stop waits for any in-flight cron run to finish.
func (a *Aggregator) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	a.logger.Info("stats aggregator stopped")
}

// AggregateAllChains runs the hourly rollup for hourTimestamp across every
// configured chain, logging (not failing) individual chain errors so one
// bad chain doesn't block the rest.
func (a *Aggregator) AggregateAllChains(ctx context.Context, hourTimestamp time.Time) {
	for _, c := range a.chains {
		if _, err := a.store.AggregateHourlyStats(ctx, c.ChainID, hourTimestamp, c.SmallOppMinUSD, c.SmallOppMaxUSD); err != nil {
			a.logger.Error("hourly stats aggregation failed",
				zap.Int64("chain_id", c.ChainID), zap.Time("hour", hourTimestamp), zap.Error(err))
			continue
		}
		a.logger.Info("hourly stats aggregated", zap.Int64("chain_id", c.ChainID), zap.Time("hour", hourTimestamp))
	}
}

// previousHour returns the start of the hour before t, truncated to the
// hour — the aggregator runs just after an hour closes, so it rolls up the
// hour that just ended rather than the (still open) current one.
func previousHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(-time.Hour)
}
