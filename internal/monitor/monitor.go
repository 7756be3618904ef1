// Package monitor orchestrates the per-chain polling loop: fetch new
// blocks, filter transactions targeting known DEX routers, classify and
// price arbitrage, then persist and broadcast the result (spec.md §4.5).
package monitor

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/arbitrageur"
	"github.com/mev-engine/evm-arb-engine/internal/profit"
	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// pollInterval matches the reference monitor's 1-second block poll cadence.
const pollInterval = 1 * time.Second

// RPC is the subset of chainconn.Connector the monitor depends on.
type RPC interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	IsDEXRouter(addr string) bool
	ChainID() int64
	ChainName() string
}

// Analyzer is the subset of analyzer.Analyzer the monitor depends on.
type Analyzer interface {
	IsArbitrage(receipt *types.Receipt, to *string, inputData []byte) bool
	ParseSwapEvents(receipt *types.Receipt) []arbtypes.SwapEvent
}

// ProfitCalculator is the subset of profit.Calculator the monitor depends on.
type ProfitCalculator interface {
	CalculateProfit(swaps []arbtypes.SwapEvent, gasUsed uint64, effectiveGasPriceWei *big.Int) *profit.Data
}

// TransactionStore is the persistence seam for confirmed arbitrage.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx arbtypes.ArbitrageTransaction) (int64, bool, error)
}

// ArbitrageurRecorder folds a transaction outcome into the running
// per-address statistics.
type ArbitrageurRecorder interface {
	Record(ctx context.Context, update arbitrageur.Update) (*arbtypes.Arbitrageur, error)
}

// Broadcaster publishes confirmed transactions to subscribed clients.
type Broadcaster interface {
	PublishTransaction(tx arbtypes.ArbitrageTransaction)
}

// signer recovers a transaction's sender address for one chain.
type signer interface {
	Sender(tx *types.Transaction) (common.Address, error)
}

// Metrics is the subset of metrics.Collector the monitor reports detection
// throughput and chain-lag to. Optional: a nil recorder disables it.
type Metrics interface {
	IncTransactionsDetected(chain, strategy string)
	SetBlocksBehind(chain string, n float64)
}

// Monitor polls one chain for new blocks and runs each router-bound
// transaction through the detection -> pricing -> persistence pipeline.
type Monitor struct {
	rpc         RPC
	analyzer    Analyzer
	profit      ProfitCalculator
	store       TransactionStore
	arbitrageur ArbitrageurRecorder
	broadcaster Broadcaster
	signer      signer

	chainID   int64
	chainName string

	metrics Metrics

	logger           *zap.Logger
	lastSyncedBlock  uint64
	initialized      bool
}

// SetMetrics attaches a metrics recorder. Call once after New.
func (m *Monitor) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

// New builds a Monitor for one chain. signer recovers tx senders; pass
// types.LatestSignerForChainID(big.NewInt(chainID)) in production.
func New(rpc RPC, an Analyzer, pc ProfitCalculator, store TransactionStore, tracker ArbitrageurRecorder, broadcaster Broadcaster, sgn signer, logger *zap.Logger) *Monitor {
	return &Monitor{
		rpc:         rpc,
		analyzer:    an,
		profit:      pc,
		store:       store,
		arbitrageur: tracker,
		broadcaster: broadcaster,
		signer:      sgn,
		chainID:     rpc.ChainID(),
		chainName:   rpc.ChainName(),
		logger:      logger.With(zap.String("component", "chain_monitor"), zap.String("chain", rpc.ChainName()), zap.Int64("chain_id", rpc.ChainID())),
	}
}

// Run polls for new blocks until ctx is cancelled. A per-tick error is
// logged and the loop retries after pollInterval rather than exiting, so a
// transient RPC failure doesn't halt monitoring.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("chain monitor started")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("chain monitor stopped")
			return
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				m.logger.Error("chain monitor tick failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) tick(ctx context.Context) error {
	latest, err := m.rpc.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}

	if !m.initialized {
		m.lastSyncedBlock = latest
		m.initialized = true
		m.logger.Info("chain monitor initialized", zap.Uint64("starting_block", m.lastSyncedBlock))
	}

	if latest <= m.lastSyncedBlock {
		return nil
	}

	blocksBehind := latest - m.lastSyncedBlock
	m.logger.Debug("new blocks detected", zap.Uint64("latest", latest),
		zap.Uint64("last_synced", m.lastSyncedBlock), zap.Uint64("blocks_behind", blocksBehind))
	if m.metrics != nil {
		m.metrics.SetBlocksBehind(m.chainName, float64(blocksBehind))
	}

	for height := m.lastSyncedBlock + 1; height <= latest; height++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !m.processBlock(ctx, height) {
			return nil
		}
		m.lastSyncedBlock = height
	}
	return nil
}

// processBlock fetches one block and hands every router-bound transaction
// to processTransaction. A per-block RPC error is logged and false is
// returned — tick then stops without advancing lastSyncedBlock, so the next
// tick resumes from lastSyncedBlock+1 and the block gets retried.
func (m *Monitor) processBlock(ctx context.Context, height uint64) bool {
	block, err := m.rpc.BlockByNumber(ctx, height)
	if err != nil {
		m.logger.Error("block fetch failed", zap.Uint64("block", height), zap.Error(err))
		return false
	}

	for _, tx := range block.Transactions() {
		to := tx.To()
		if to == nil || !m.rpc.IsDEXRouter(to.Hex()) {
			continue
		}
		m.processTransaction(ctx, tx, block)
	}
	return true
}

// processTransaction runs one router-bound transaction through detection,
// pricing, persistence and broadcast. Any failure here is logged and the
// transaction skipped — one bad transaction must not stop the block.
func (m *Monitor) processTransaction(ctx context.Context, tx *types.Transaction, block *types.Block) {
	txHash := tx.Hash()
	logger := m.logger.With(zap.String("tx_hash", txHash.Hex()))

	receipt, err := m.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		logger.Error("receipt fetch failed", zap.Error(err))
		return
	}

	toHex := ""
	if to := tx.To(); to != nil {
		toHex = to.Hex()
	}
	if !m.analyzer.IsArbitrage(receipt, &toHex, tx.Data()) {
		return
	}

	swaps := m.analyzer.ParseSwapEvents(receipt)
	if len(swaps) < 2 {
		logger.Warn("arbitrage classification with insufficient swap events", zap.Int("swap_count", len(swaps)))
		return
	}

	effectiveGasPrice := receipt.EffectiveGasPrice
	if effectiveGasPrice == nil {
		effectiveGasPrice = tx.GasPrice()
	}
	profitData := m.profit.CalculateProfit(swaps, receipt.GasUsed, effectiveGasPrice)

	from, err := m.signer.Sender(tx)
	if err != nil {
		logger.Error("sender recovery failed", zap.Error(err))
		return
	}

	swapCount := len(swaps)
	strategy := arbtypes.Strategy(swapCount)

	pools := make([]string, 0, swapCount)
	for _, s := range swaps {
		pools = append(pools, s.PoolAddress)
	}

	arbTx := arbtypes.ArbitrageTransaction{
		ChainID:        m.chainID,
		TxHash:         txHash.Hex(),
		FromAddress:    arbtypes.NormalizeAddress(from.Hex()),
		BlockNumber:    block.NumberU64(),
		BlockTimestamp: time.Unix(int64(block.Time()), 0).UTC(),
		SwapCount:      swapCount,
		Strategy:       strategy,
		PoolsInvolved:  pools,
		TokensInvolved: []string{},
		DetectedAt:     time.Now().UTC(),
	}

	if profitData != nil {
		arbTx.GasPriceGwei = profitData.Gas.GasPriceGwei
		arbTx.GasUsed = profitData.Gas.GasUsed
		arbTx.GasCostNative = profitData.Gas.GasCostNative
		arbTx.GasCostUSD = profitData.Gas.GasCostUSD
		gross := profitData.GrossProfitUSD
		net := profitData.NetProfitUSD
		arbTx.ProfitGrossUSD = &gross
		arbTx.ProfitNetUSD = &net
	}

	if _, inserted, err := m.store.SaveTransaction(ctx, arbTx); err != nil {
		logger.Error("save transaction failed", zap.Error(err))
		return
	} else if !inserted {
		return // already recorded, e.g. reprocessed after a restart
	}

	success := receipt.Status == types.ReceiptStatusSuccessful
	profitUSD := decimal.Zero
	gasCostUSD := decimal.Zero
	gasPriceGwei := decimal.Zero
	if profitData != nil {
		profitUSD = profitData.NetProfitUSD
		gasCostUSD = profitData.Gas.GasCostUSD
		gasPriceGwei = profitData.Gas.GasPriceGwei
	}

	if _, err := m.arbitrageur.Record(ctx, arbitrageur.Update{
		Address:      arbTx.FromAddress,
		ChainID:      m.chainID,
		Success:      success,
		ProfitNetUSD: profitUSD,
		GasCostUSD:   gasCostUSD,
		GasPriceGwei: gasPriceGwei,
		Strategy:     strategy,
		ObservedAt:   arbTx.DetectedAt,
	}); err != nil {
		logger.Error("arbitrageur update failed", zap.Error(err))
	}

	m.broadcaster.PublishTransaction(arbTx)
	if m.metrics != nil {
		m.metrics.IncTransactionsDetected(m.chainName, strategy)
	}

	logger.Info("arbitrage transaction processed",
		zap.String("from", arbTx.FromAddress), zap.Int("swap_count", swapCount),
		zap.String("strategy", strategy))
}
