package profit

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

func nativePrice(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestExtractTokenFlow_Basic(t *testing.T) {
	calc := New("bsc", nativePrice("300"), zap.NewNop())
	swaps := []arbtypes.SwapEvent{
		{PoolAddress: "p1", Amount0In: big.NewInt(1000), Amount1In: big.NewInt(0), Amount0Out: big.NewInt(0), Amount1Out: big.NewInt(0)},
		{PoolAddress: "p2", Amount0In: big.NewInt(0), Amount1In: big.NewInt(0), Amount0Out: big.NewInt(0), Amount1Out: big.NewInt(1200)},
	}

	flow := calc.ExtractTokenFlow(swaps)
	require.NotNil(t, flow)
	assert.Equal(t, big.NewInt(1000), flow.InputAmount)
	assert.Equal(t, big.NewInt(1200), flow.OutputAmount)
	assert.Equal(t, 0, flow.InputTokenIndex)
	assert.Equal(t, 1, flow.OutputTokenIndex)
}

func TestExtractTokenFlow_EmptyReturnsNil(t *testing.T) {
	calc := New("bsc", nativePrice("300"), zap.NewNop())
	assert.Nil(t, calc.ExtractTokenFlow(nil))
}

func TestCalculateGasCost(t *testing.T) {
	calc := New("bsc", nativePrice("300"), zap.NewNop())
	gasUsed := uint64(21000)
	gasPriceWei := big.NewInt(5_000_000_000) // 5 gwei

	cost := calc.CalculateGasCost(gasUsed, gasPriceWei)
	assert.True(t, cost.GasPriceGwei.Equal(decimal.NewFromInt(5)))
	assert.True(t, cost.GasCostNative.GreaterThan(decimal.Zero))
	assert.True(t, cost.GasCostUSD.Equal(cost.GasCostNative.Mul(nativePrice("300"))))
}

func TestCalculateProfit_PositiveROI(t *testing.T) {
	calc := New("bsc", nativePrice("300"), zap.NewNop())
	eighteenZeros := new(big.Int)
	eighteenZeros.Exp(big.NewInt(10), big.NewInt(18), nil)

	input := new(big.Int).Set(eighteenZeros) // 1.0 native
	output := new(big.Int).Mul(big.NewInt(11), eighteenZeros)
	output.Div(output, big.NewInt(10)) // 1.1 native

	swaps := []arbtypes.SwapEvent{
		{PoolAddress: "p1", Amount0In: input, Amount1In: big.NewInt(0), Amount0Out: big.NewInt(0), Amount1Out: big.NewInt(0)},
		{PoolAddress: "p2", Amount0In: big.NewInt(0), Amount1In: big.NewInt(0), Amount0Out: big.NewInt(0), Amount1Out: output},
	}

	data := calc.CalculateProfit(swaps, 100000, big.NewInt(1_000_000_000))
	require.NotNil(t, data)
	assert.True(t, data.GrossProfitNative.GreaterThan(decimal.Zero))
	assert.True(t, data.ROIPercentage.GreaterThan(decimal.Zero))
}

func TestCalculateProfit_NilOnEmptySwaps(t *testing.T) {
	calc := New("bsc", nativePrice("300"), zap.NewNop())
	assert.Nil(t, calc.CalculateProfit(nil, 21000, big.NewInt(1)))
}
