package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a detected pool-imbalance opportunity (spec.md §3).
type Opportunity struct {
	ID             int64
	ChainID        int64
	PoolLabel      string
	PoolAddress    string
	ImbalancePct   decimal.Decimal
	ProfitUSD      decimal.Decimal
	ProfitNative   decimal.Decimal
	Reserve0       *big.Int
	Reserve1       *big.Int
	BlockNumber    uint64
	DetectedAt     time.Time
	Captured       bool
	CapturedBy     *string
	CaptureTxHash  *string
}

// SwapEvent is a transient, decoded Uniswap-V2-style Swap log entry.
type SwapEvent struct {
	PoolAddress string
	Sender      string
	Recipient   string
	Amount0In   *big.Int
	Amount1In   *big.Int
	Amount0Out  *big.Int
	Amount1Out  *big.Int
	LogIndex    uint
}

// ArbitrageTransaction is a confirmed, classified multi-hop arbitrage (spec.md §3).
type ArbitrageTransaction struct {
	ID              int64
	ChainID         int64
	TxHash          string
	FromAddress     string
	BlockNumber     uint64
	BlockTimestamp  time.Time
	GasPriceGwei    decimal.Decimal
	GasUsed         uint64
	GasCostNative   decimal.Decimal
	GasCostUSD      decimal.Decimal
	SwapCount       int
	Strategy        string
	ProfitGrossUSD  *decimal.Decimal
	ProfitNetUSD    *decimal.Decimal
	PoolsInvolved   []string
	TokensInvolved  []string
	DetectedAt      time.Time
}

// Strategy buckets a hop count into the spec.md §3 label.
func Strategy(swapCount int) string {
	switch swapCount {
	case 2:
		return "2-hop"
	case 3:
		return "3-hop"
	case 4:
		return "4-hop"
	default:
		return "N-hop"
	}
}

// Arbitrageur is the cumulative per-address statistics row (spec.md §3).
type Arbitrageur struct {
	ID                      int64
	Address                 string
	ChainID                 int64
	FirstSeen               time.Time
	LastSeen                time.Time
	TotalTransactions       int64
	SuccessfulTransactions  int64
	FailedTransactions      int64
	TotalProfitUSD          decimal.Decimal
	TotalGasSpentUSD        decimal.Decimal
	AvgGasPriceGwei         decimal.Decimal
	PreferredStrategy       string
	StrategyCounts          map[string]int64
	IsBot                   bool
	ContractAddress         bool
}

// ChainStat is the hourly aggregated statistics row (spec.md §3).
type ChainStat struct {
	ID                     int64
	ChainID                int64
	HourTimestamp          time.Time
	OpportunitiesDetected  int64
	OpportunitiesCaptured  int64
	SmallOpportunitiesCount int64
	SmallOppsCaptured      int64
	TransactionsDetected   int64
	UniqueArbitrageurs     int64
	TotalProfitUSD         decimal.Decimal
	TotalGasSpentUSD       decimal.Decimal
	AvgProfitUSD           *decimal.Decimal
	MedianProfitUSD        *decimal.Decimal
	MaxProfitUSD           *decimal.Decimal
	MinProfitUSD           *decimal.Decimal
	P95ProfitUSD           *decimal.Decimal
	CaptureRate            *decimal.Decimal
	SmallOppCaptureRate    *decimal.Decimal
	AvgCompetitionLevel    *decimal.Decimal
}
