package types

import "time"

// OpportunityFilters narrows a query against the opportunities table.
// Zero-value fields are treated as "no filter" on that column.
type OpportunityFilters struct {
	ChainID      *int64
	PoolAddress  *string
	Captured     *bool
	MinProfitUSD *string // decimal literal, parsed by the store layer
	MaxProfitUSD *string
	DetectedFrom *time.Time
	DetectedTo   *time.Time
	Limit        int
	Offset       int
}

// TransactionFilters narrows a query against the transactions table.
type TransactionFilters struct {
	ChainID      *int64
	FromAddress  *string
	Strategy     *string
	MinProfitUSD *string
	DetectedFrom *time.Time
	DetectedTo   *time.Time
	Limit        int
	Offset       int
}

// ArbitrageurFilters narrows a query against the arbitrageurs table.
type ArbitrageurFilters struct {
	ChainID        *int64
	MinTotalProfit *string
	IsBot          *bool
	Limit          int
	Offset         int
}
