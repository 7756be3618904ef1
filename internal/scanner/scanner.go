// Package scanner reads Uniswap-V2-style pool reserves and detects
// exploitable imbalances using the constant-product market maker
// invariant.
package scanner

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

const poolABIJSON = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
		{"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
		{"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var poolABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic(fmt.Sprintf("scanner: invalid embedded pool ABI: %v", err))
	}
	poolABI = parsed
}

// RPCCaller is the subset of chainconn.Connector the scanner needs,
// narrowed for testability.
type RPCCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Reserves is the on-chain reserve snapshot for one pool.
type Reserves struct {
	PoolAddress        string
	PoolLabel          string
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Imbalance is the CPMM imbalance calculation for a pool's reserves.
type Imbalance struct {
	ImbalancePct          decimal.Decimal
	ProfitPotentialUSD    decimal.Decimal
	ProfitPotentialNative decimal.Decimal
	OptimalReserve0       decimal.Decimal
	OptimalReserve1       decimal.Decimal
}

// Scanner periodically reads configured pool reserves for one chain.
type Scanner struct {
	chainName            string
	chainID              int64
	pools                map[string]string
	rpc                  RPCCaller
	imbalanceThresholdPct decimal.Decimal
	swapFeeFraction       decimal.Decimal
	smallOppMinUSD        decimal.Decimal
	smallOppMaxUSD        decimal.Decimal
	smallOpportunityCount int

	logger *zap.Logger
}

// New builds a Scanner for one chain's configured pool set.
func New(cfg *arbtypes.ChainConfig, rpc RPCCaller, logger *zap.Logger) *Scanner {
	return &Scanner{
		chainName:             cfg.Name,
		chainID:               cfg.ChainID,
		pools:                 cfg.Pools,
		rpc:                   rpc,
		imbalanceThresholdPct: cfg.ImbalanceThresholdPct,
		swapFeeFraction:       cfg.SwapFeeFraction,
		smallOppMinUSD:        cfg.SmallOppMinUSD,
		smallOppMaxUSD:        cfg.SmallOppMaxUSD,
		logger:                logger.With(zap.String("component", "pool_scanner"), zap.String("chain", cfg.Name)),
	}
}

// GetPoolReserves calls getReserves() on a single pool contract.
func (s *Scanner) GetPoolReserves(ctx context.Context, poolAddress, poolLabel string) (*Reserves, error) {
	addr := common.HexToAddress(poolAddress)

	data, err := poolABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}

	out, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		s.logger.Warn("pool reserves fetch failed",
			zap.String("pool_label", poolLabel), zap.String("pool_address", poolAddress), zap.Error(err))
		return nil, err
	}

	result, err := poolABI.Unpack("getReserves", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getReserves: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected getReserves return arity: %d", len(result))
	}

	reserve0, _ := result[0].(*big.Int)
	reserve1, _ := result[1].(*big.Int)
	blockTimestampLast, _ := result[2].(uint32)

	return &Reserves{
		PoolAddress:        poolAddress,
		PoolLabel:          poolLabel,
		Reserve0:           reserve0,
		Reserve1:           reserve1,
		BlockTimestampLast: blockTimestampLast,
	}, nil
}

// IsSmallOpportunity reports whether profitUSD falls in the small-trader
// band configured for this chain ($10K-$100K by default).
func (s *Scanner) IsSmallOpportunity(profitUSD decimal.Decimal) bool {
	return profitUSD.GreaterThanOrEqual(s.smallOppMinUSD) && profitUSD.LessThanOrEqual(s.smallOppMaxUSD)
}

// CalculateImbalance applies the CPMM invariant formula:
// k = reserve0*reserve1, optimal = sqrt(k), imbalance_pct =
// max(|r0-optimal|/optimal, |r1-optimal|/optimal) * 100. Profit potential,
// when imbalance exceeds the configured swap fee, is
// max(0, imbalance/100 - fee) * min(reserve0, reserve1), with profit_usd
// taken equal to profit_native under the simplifying assumption that
// token1 is pegged 1:1 to USD.
func (s *Scanner) CalculateImbalance(reserve0, reserve1 *big.Int) *Imbalance {
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		s.logger.Warn("pool reserves zero")
		return nil
	}

	r0 := decimal.NewFromBigInt(reserve0, 0)
	r1 := decimal.NewFromBigInt(reserve1, 0)

	k := r0.Mul(r1)
	kFloat, _ := k.Float64()
	optimal := decimal.NewFromFloat(math.Sqrt(kFloat))

	imbalance0Pct := r0.Sub(optimal).Abs().Div(optimal).Mul(decimal.NewFromInt(100))
	imbalance1Pct := r1.Sub(optimal).Abs().Div(optimal).Mul(decimal.NewFromInt(100))

	imbalancePct := imbalance0Pct
	if imbalance1Pct.GreaterThan(imbalancePct) {
		imbalancePct = imbalance1Pct
	}

	minReserve := r0
	if r1.LessThan(minReserve) {
		minReserve = r1
	}

	imbalanceFraction := imbalancePct.Div(decimal.NewFromInt(100))
	profitNative := decimal.Zero
	if imbalanceFraction.GreaterThan(s.swapFeeFraction) {
		profitNative = imbalanceFraction.Sub(s.swapFeeFraction).Mul(minReserve)
	}
	profitUSD := profitNative

	return &Imbalance{
		ImbalancePct:          imbalancePct,
		ProfitPotentialUSD:    profitUSD,
		ProfitPotentialNative: profitNative,
		OptimalReserve0:       optimal,
		OptimalReserve1:       optimal,
	}
}

// ScanPools reads every configured pool once and returns the opportunities
// whose imbalance meets the configured threshold.
func (s *Scanner) ScanPools(ctx context.Context) ([]arbtypes.Opportunity, error) {
	blockNumber, err := s.rpc.LatestBlockNumber(ctx)
	if err != nil {
		s.logger.Error("failed to get block number for scan", zap.Error(err))
		return nil, err
	}

	var opportunities []arbtypes.Opportunity

	for label, address := range s.pools {
		reserves, err := s.GetPoolReserves(ctx, address, label)
		if err != nil || reserves == nil {
			continue
		}

		imbalance := s.CalculateImbalance(reserves.Reserve0, reserves.Reserve1)
		if imbalance == nil {
			continue
		}

		if imbalance.ImbalancePct.LessThan(s.imbalanceThresholdPct) {
			continue
		}

		opp := arbtypes.Opportunity{
			ChainID:      s.chainID,
			PoolLabel:    label,
			PoolAddress:  address,
			ImbalancePct: imbalance.ImbalancePct,
			ProfitUSD:    imbalance.ProfitPotentialUSD,
			ProfitNative: imbalance.ProfitPotentialNative,
			Reserve0:     reserves.Reserve0,
			Reserve1:     reserves.Reserve1,
			BlockNumber:  blockNumber,
			DetectedAt:   time.Now().UTC(),
			Captured:     false,
		}
		opportunities = append(opportunities, opp)

		if s.IsSmallOpportunity(imbalance.ProfitPotentialUSD) {
			s.smallOpportunityCount++
		}

		s.logger.Info("opportunity detected",
			zap.String("pool_label", label),
			zap.String("imbalance_pct", imbalance.ImbalancePct.String()),
			zap.String("profit_usd", imbalance.ProfitPotentialUSD.String()),
			zap.Uint64("block_number", blockNumber))
	}

	return opportunities, nil
}

// SmallOpportunityCount returns the number of small opportunities ($10K-$100K)
// observed since the scanner was constructed.
func (s *Scanner) SmallOpportunityCount() int { return s.smallOpportunityCount }
