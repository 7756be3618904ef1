// Package profit computes gross/net profit and ROI for a decoded
// arbitrage swap sequence, combining big.Int token-unit math with
// decimal.Decimal monetary math.
package profit

import (
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

var (
	weiPerEther = decimal.New(1, 18)
	weiPerGwei  = decimal.New(1, 9)
)

// TokenFlow is the net input/output amount across a swap sequence.
type TokenFlow struct {
	InputAmount      *big.Int
	OutputAmount     *big.Int
	InputTokenIndex  int
	OutputTokenIndex int
}

// GasCost is the gas spend of a transaction, in native token and USD.
type GasCost struct {
	GasUsed       uint64
	GasPriceWei   *big.Int
	GasPriceGwei  decimal.Decimal
	GasCostNative decimal.Decimal
	GasCostUSD    decimal.Decimal
}

// Data is the complete profit calculation for one arbitrage transaction.
type Data struct {
	GrossProfitNative  decimal.Decimal
	GrossProfitUSD     decimal.Decimal
	Gas                GasCost
	NetProfitNative    decimal.Decimal
	NetProfitUSD       decimal.Decimal
	ROIPercentage      decimal.Decimal
	InputAmountNative  decimal.Decimal
	OutputAmountNative decimal.Decimal
}

// Calculator computes profit for one chain, at its current native token
// USD price.
type Calculator struct {
	chainName           string
	nativeTokenUSDPrice decimal.Decimal
	logger              *zap.Logger
}

// New builds a Calculator for the given chain and native token price.
func New(chainName string, nativeTokenUSDPrice decimal.Decimal, logger *zap.Logger) *Calculator {
	return &Calculator{
		chainName:           chainName,
		nativeTokenUSDPrice: nativeTokenUSDPrice,
		logger:              logger.With(zap.String("component", "profit"), zap.String("chain", chainName)),
	}
}

// ExtractTokenFlow identifies the input amount from the first swap and the
// output amount from the last swap in a chronologically ordered sequence.
func (c *Calculator) ExtractTokenFlow(swaps []arbtypes.SwapEvent) *TokenFlow {
	if len(swaps) == 0 {
		c.logger.Warn("extract token flow: empty swap sequence")
		return nil
	}

	first := swaps[0]
	var inputAmount *big.Int
	inputIdx := 0
	switch {
	case first.Amount0In.Sign() > 0:
		inputAmount = first.Amount0In
		inputIdx = 0
	case first.Amount1In.Sign() > 0:
		inputAmount = first.Amount1In
		inputIdx = 1
	default:
		c.logger.Warn("extract token flow: first swap has no input", zap.String("pool", first.PoolAddress))
		return nil
	}

	last := swaps[len(swaps)-1]
	var outputAmount *big.Int
	outputIdx := 0
	switch {
	case last.Amount0Out.Sign() > 0:
		outputAmount = last.Amount0Out
		outputIdx = 0
	case last.Amount1Out.Sign() > 0:
		outputAmount = last.Amount1Out
		outputIdx = 1
	default:
		c.logger.Warn("extract token flow: last swap has no output", zap.String("pool", last.PoolAddress))
		return nil
	}

	return &TokenFlow{
		InputAmount:      inputAmount,
		OutputAmount:     outputAmount,
		InputTokenIndex:  inputIdx,
		OutputTokenIndex: outputIdx,
	}
}

// CalculateGasCost converts raw gas usage into native-token and USD cost.
func (c *Calculator) CalculateGasCost(gasUsed uint64, effectiveGasPriceWei *big.Int) GasCost {
	gasCostWei := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), effectiveGasPriceWei)

	gasCostNative := decimal.NewFromBigInt(gasCostWei, 0).Div(weiPerEther)
	gasPriceGwei := decimal.NewFromBigInt(effectiveGasPriceWei, 0).Div(weiPerGwei)
	gasCostUSD := gasCostNative.Mul(c.nativeTokenUSDPrice)

	return GasCost{
		GasUsed:       gasUsed,
		GasPriceWei:   effectiveGasPriceWei,
		GasPriceGwei:  gasPriceGwei,
		GasCostNative: gasCostNative,
		GasCostUSD:    gasCostUSD,
	}
}

// CalculateProfit computes the full profit breakdown for a decoded swap
// sequence and the transaction's gas usage. Token amounts are treated as
// 18-decimal fixed point, matching the simplification carried from the
// reference implementation (exact per-token decimals are not modeled).
func (c *Calculator) CalculateProfit(swaps []arbtypes.SwapEvent, gasUsed uint64, effectiveGasPriceWei *big.Int) *Data {
	flow := c.ExtractTokenFlow(swaps)
	if flow == nil {
		return nil
	}

	inputNative := decimal.NewFromBigInt(flow.InputAmount, 0).Div(weiPerEther)
	outputNative := decimal.NewFromBigInt(flow.OutputAmount, 0).Div(weiPerEther)

	grossProfitNative := outputNative.Sub(inputNative)
	grossProfitUSD := grossProfitNative.Mul(c.nativeTokenUSDPrice)

	gasCost := c.CalculateGasCost(gasUsed, effectiveGasPriceWei)

	netProfitNative := grossProfitNative.Sub(gasCost.GasCostNative)
	netProfitUSD := grossProfitUSD.Sub(gasCost.GasCostUSD)

	roi := decimal.Zero
	if inputNative.IsPositive() {
		roi = netProfitNative.Div(inputNative).Mul(decimal.NewFromInt(100))
	}

	data := &Data{
		GrossProfitNative:  grossProfitNative,
		GrossProfitUSD:     grossProfitUSD,
		Gas:                gasCost,
		NetProfitNative:    netProfitNative,
		NetProfitUSD:       netProfitUSD,
		ROIPercentage:      roi,
		InputAmountNative:  inputNative,
		OutputAmountNative: outputNative,
	}

	c.logger.Info("profit calculated",
		zap.String("gross_profit_usd", grossProfitUSD.String()),
		zap.String("net_profit_usd", netProfitUSD.String()),
		zap.String("roi_pct", roi.String()),
		zap.Int("swap_count", len(swaps)))

	return data
}
