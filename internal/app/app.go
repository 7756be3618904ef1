// Package app wires every component of the arbitrage engine together: one
// chainconn/analyzer/profit/scanner/monitor stack per configured chain,
// backed by a shared store, broadcast hub, stats aggregator and HTTP server.
package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/analyzer"
	"github.com/mev-engine/evm-arb-engine/internal/arbitrageur"
	"github.com/mev-engine/evm-arb-engine/internal/broadcast"
	"github.com/mev-engine/evm-arb-engine/internal/chainconn"
	"github.com/mev-engine/evm-arb-engine/internal/config"
	"github.com/mev-engine/evm-arb-engine/internal/httpapi"
	"github.com/mev-engine/evm-arb-engine/internal/metrics"
	"github.com/mev-engine/evm-arb-engine/internal/monitor"
	"github.com/mev-engine/evm-arb-engine/internal/profit"
	"github.com/mev-engine/evm-arb-engine/internal/scanner"
	"github.com/mev-engine/evm-arb-engine/internal/stats"
	"github.com/mev-engine/evm-arb-engine/internal/store"
)

// chainStack bundles every per-chain component started and stopped as a
// unit.
type chainStack struct {
	name         string
	chainLabel   string
	monitor      *monitor.Monitor
	scanner      *scanner.Scanner
	scanInterval time.Duration
	cancel       context.CancelFunc
}

// Application owns the lifetime of every engine component: per-chain
// monitors and scanners, the shared store, broadcast hub, stats aggregator
// and HTTP server.
type Application struct {
	cfg    *config.Config
	logger *zap.Logger

	store   *store.Store
	hub     *broadcast.Hub
	agg     *stats.Aggregator
	server  *httpapi.Server
	metrics *metrics.Collector

	chains []*chainStack
}

// NewApplication builds every configured component without starting any
// background goroutines; call Start to begin processing.
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("at least one chain must be configured")
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database.URL, store.PoolConfig{
		MinConns:        cfg.Database.MinConns,
		MaxConns:        cfg.Database.MaxConns,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxConnIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	collector := metrics.NewCollector()
	hub := broadcast.New(cfg.Broadcast.MaxConnections, logger)
	hub.SetMetrics(collector)

	chainRanges := make([]stats.ChainRange, 0, len(cfg.Chains))
	chains := make([]*chainStack, 0, len(cfg.Chains))

	for name, chainCfg := range cfg.Chains {
		cc := chainCfg.ToChainConfig(name)
		if err := cc.Validate(); err != nil {
			return nil, fmt.Errorf("chain %q: %w", name, err)
		}

		conn := chainconn.New(&cc, logger)
		conn.SetMetrics(collector)
		an := analyzer.New(cc.Name, cc.DEXRouters, logger)
		pc := profit.New(cc.Name, cc.NativeTokenUSDPrice, logger)
		sc := scanner.New(&cc, conn, logger)
		tracker := arbitrageur.New(st, logger)

		signer := types.LatestSignerForChainID(big.NewInt(cc.ChainID))
		mon := monitor.New(conn, an, pc, st, tracker, hub, signer, logger)
		mon.SetMetrics(collector)

		scanInterval := time.Duration(cc.ScanIntervalSeconds * float64(time.Second))
		if scanInterval <= 0 {
			scanInterval = 2 * time.Second
		}
		chains = append(chains, &chainStack{name: name, chainLabel: cc.Name, monitor: mon, scanner: sc, scanInterval: scanInterval})
		chainRanges = append(chainRanges, stats.ChainRange{
			ChainID:        cc.ChainID,
			SmallOppMinUSD: cc.SmallOppMinUSD,
			SmallOppMaxUSD: cc.SmallOppMaxUSD,
		})
	}

	agg := stats.New(st, chainRanges, logger)
	server := httpapi.New(cfg, hub, logger)

	return &Application{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "app")),
		store:   st,
		hub:     hub,
		agg:     agg,
		server:  server,
		metrics: collector,
		chains:  chains,
	}, nil
}

// Start launches the broadcast hub, every chain's monitor and pool scanner,
// the hourly stats aggregator, and the HTTP server. Each component runs in
// its own goroutine scoped to ctx.
func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting arbitrage engine", zap.Int("chains", len(a.chains)))

	go a.hub.Run()
	go a.reportConnectionCount(ctx)
	go a.reportStorePoolStats(ctx)

	for _, cs := range a.chains {
		chainCtx, cancel := context.WithCancel(ctx)
		cs.cancel = cancel

		go cs.monitor.Run(chainCtx)
		go a.runScanner(chainCtx, cs)
	}

	if err := a.agg.Start(ctx); err != nil {
		return fmt.Errorf("start stats aggregator: %w", err)
	}

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	a.logger.Info("arbitrage engine started")
	return nil
}

// runScanner polls one chain's scanner on its configured interval until ctx
// is cancelled, publishing every detected opportunity to the hub. A scan
// error is logged and the loop retries on the next tick.
func (a *Application) runScanner(ctx context.Context, cs *chainStack) {
	ticker := time.NewTicker(cs.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opps, err := cs.scanner.ScanPools(ctx)
			if err != nil {
				a.logger.Error("pool scan failed", zap.String("chain", cs.name), zap.Error(err))
				continue
			}
			for _, o := range opps {
				if _, err := a.store.SaveOpportunity(ctx, o); err != nil {
					a.logger.Error("save opportunity failed", zap.String("chain", cs.name), zap.Error(err))
					continue
				}
				a.hub.PublishOpportunity(o)
				a.metrics.OpportunitiesDetectedTotal.WithLabelValues(cs.chainLabel).Inc()
				if profitUSD, ok := o.ProfitUSD.Float64(); ok {
					a.metrics.TotalProfitDetectedUSD.WithLabelValues(cs.chainLabel).Add(profitUSD)
				}
			}
		}
	}
}

// reportConnectionCount samples the hub's connection count into the
// websocket_connections gauge every few seconds until ctx is cancelled.
func (a *Application) reportConnectionCount(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.WebsocketConnections.Set(float64(a.hub.ConnectionCount()))
		}
	}
}

// reportStorePoolStats samples the Postgres connection pool's total and
// idle connection counts into the store_connections gauge every few
// seconds until ctx is cancelled.
func (a *Application) reportStorePoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.StoreConnections.WithLabelValues("total").Set(float64(a.store.PoolSize()))
			a.metrics.StoreConnections.WithLabelValues("idle").Set(float64(a.store.PoolFreeSize()))
		}
	}
}

// Stop gracefully stops the HTTP server, stats aggregator, every chain's
// monitor/scanner, the broadcast hub, and closes the store. Stop targets
// completing within a few seconds of ctx's deadline.
func (a *Application) Stop(ctx context.Context) error {
	a.logger.Info("stopping arbitrage engine")

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("http server shutdown failed", zap.Error(err))
	}

	a.agg.Stop()

	for _, cs := range a.chains {
		if cs.cancel != nil {
			cs.cancel()
		}
	}

	a.hub.Stop()
	a.store.Close()

	a.logger.Info("arbitrage engine stopped")
	return nil
}

// Module provides the fx module for dependency injection.
var Module = fx.Options(
	fx.Provide(NewApplication),
)
