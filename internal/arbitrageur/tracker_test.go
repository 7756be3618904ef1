package arbitrageur

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_FirstSight(t *testing.T) {
	update := Update{
		Address:      "0xabc",
		ChainID:      56,
		Success:      true,
		ProfitNetUSD: decimal.NewFromInt(100),
		GasCostUSD:   decimal.NewFromFloat(0.5),
		GasPriceGwei: decimal.NewFromInt(5),
		Strategy:     "2-hop",
		ObservedAt:   time.Unix(1000, 0),
	}

	row := Merge(nil, update)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.TotalTransactions)
	assert.Equal(t, int64(1), row.SuccessfulTransactions)
	assert.Equal(t, int64(0), row.FailedTransactions)
	assert.True(t, row.TotalProfitUSD.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2-hop", row.PreferredStrategy)
	assert.Equal(t, row.FirstSeen, row.LastSeen)
}

func TestMerge_AccumulatesAndComputesRunningMean(t *testing.T) {
	first := Merge(nil, Update{
		Address: "0xabc", ChainID: 56, Success: true,
		ProfitNetUSD: decimal.NewFromInt(100), GasCostUSD: decimal.NewFromInt(1),
		GasPriceGwei: decimal.NewFromInt(10), Strategy: "2-hop", ObservedAt: time.Unix(1000, 0),
	})

	second := Merge(first, Update{
		Address: "0xabc", ChainID: 56, Success: false,
		ProfitNetUSD: decimal.NewFromInt(-20), GasCostUSD: decimal.NewFromInt(2),
		GasPriceGwei: decimal.NewFromInt(20), Strategy: "3-hop", ObservedAt: time.Unix(2000, 0),
	})

	assert.Equal(t, int64(2), second.TotalTransactions)
	assert.Equal(t, int64(1), second.SuccessfulTransactions)
	assert.Equal(t, int64(1), second.FailedTransactions)
	// negative profit does not reduce total_profit_usd (max(0, profit) accumulation)
	assert.True(t, second.TotalProfitUSD.Equal(decimal.NewFromInt(100)))
	assert.True(t, second.AvgGasPriceGwei.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, time.Unix(1000, 0), second.FirstSeen)
	assert.Equal(t, time.Unix(2000, 0), second.LastSeen)
}

func TestMerge_PreferredStrategyArgmax(t *testing.T) {
	row := Merge(nil, Update{Address: "a", ChainID: 1, Success: true, Strategy: "2-hop",
		ProfitNetUSD: decimal.Zero, GasCostUSD: decimal.Zero, GasPriceGwei: decimal.Zero, ObservedAt: time.Unix(1, 0)})
	row = Merge(row, Update{Address: "a", ChainID: 1, Success: true, Strategy: "3-hop",
		ProfitNetUSD: decimal.Zero, GasCostUSD: decimal.Zero, GasPriceGwei: decimal.Zero, ObservedAt: time.Unix(2, 0)})
	row = Merge(row, Update{Address: "a", ChainID: 1, Success: true, Strategy: "3-hop",
		ProfitNetUSD: decimal.Zero, GasCostUSD: decimal.Zero, GasPriceGwei: decimal.Zero, ObservedAt: time.Unix(3, 0)})

	assert.Equal(t, "3-hop", row.PreferredStrategy)
	assert.Equal(t, int64(2), row.StrategyCounts["3-hop"])
	assert.Equal(t, int64(1), row.StrategyCounts["2-hop"])
}

func TestMerge_TotalEqualsSuccessfulPlusFailed(t *testing.T) {
	row := Merge(nil, Update{Address: "a", ChainID: 1, Success: true, Strategy: "2-hop",
		ProfitNetUSD: decimal.Zero, GasCostUSD: decimal.Zero, GasPriceGwei: decimal.Zero, ObservedAt: time.Unix(1, 0)})
	for i := 0; i < 5; i++ {
		row = Merge(row, Update{Address: "a", ChainID: 1, Success: i%2 == 0, Strategy: "2-hop",
			ProfitNetUSD: decimal.Zero, GasCostUSD: decimal.Zero, GasPriceGwei: decimal.Zero, ObservedAt: time.Unix(int64(i+2), 0)})
	}
	assert.Equal(t, row.TotalTransactions, row.SuccessfulTransactions+row.FailedTransactions)
}
