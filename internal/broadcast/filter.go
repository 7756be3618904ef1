package broadcast

// Channel names clients can subscribe to.
const (
	ChannelOpportunities = "opportunities"
	ChannelTransactions  = "transactions"
)

// Filter narrows a subscription to matching opportunity/transaction payloads.
// A nil field means "no filter on that dimension".
type Filter struct {
	Channel    string
	ChainID    *int64
	MinProfit  *float64
	MaxProfit  *float64
	MinSwaps   *int
}

// Matches reports whether data satisfies every bound on f. chainID and
// profitUSD/swapCount are pulled from the payload by the caller since
// Opportunity and ArbitrageTransaction expose them under different names.
func (f Filter) Matches(chainID int64, profitUSD *float64, swapCount *int) bool {
	if f.ChainID != nil && *f.ChainID != chainID {
		return false
	}
	if profitUSD != nil {
		if f.MinProfit != nil && *profitUSD < *f.MinProfit {
			return false
		}
		if f.MaxProfit != nil && *profitUSD > *f.MaxProfit {
			return false
		}
	}
	if f.MinSwaps != nil {
		if swapCount == nil || *swapCount < *f.MinSwaps {
			return false
		}
	}
	return true
}
