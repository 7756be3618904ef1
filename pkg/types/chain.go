package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ChainConfig is the static, load-once configuration for one monitored chain.
type ChainConfig struct {
	Name                string
	ChainID             int64
	RPCEndpoints        []string // first is primary
	BlockTimeSeconds    float64
	NativeTokenSymbol   string
	NativeTokenUSDPrice decimal.Decimal
	DEXRouters          map[string]string // label -> lowercased 0x address
	Pools               map[string]string // label -> lowercased 0x address

	ScanIntervalSeconds    float64
	ImbalanceThresholdPct  decimal.Decimal // percent, e.g. 5 meaning 5%
	SwapFeeFraction        decimal.Decimal // fraction, e.g. 0.003 meaning 0.3%
	SmallOppMinUSD         decimal.Decimal
	SmallOppMaxUSD         decimal.Decimal
}

// NormalizeAddress lowercases and 0x-prefixes an address string.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// Validate checks the invariants spec.md §3 requires of a ChainConfig.
func (c *ChainConfig) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("chain %q: chain_id must be positive", c.Name)
	}
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("chain %q: at least one rpc endpoint required", c.Name)
	}
	if c.BlockTimeSeconds <= 0 {
		return fmt.Errorf("chain %q: block_time_seconds must be positive", c.Name)
	}
	if c.NativeTokenUSDPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("chain %q: native_token_usd_price must be positive", c.Name)
	}
	normalized := make(map[string]string, len(c.DEXRouters))
	for label, addr := range c.DEXRouters {
		normalized[label] = NormalizeAddress(addr)
	}
	c.DEXRouters = normalized

	normalizedPools := make(map[string]string, len(c.Pools))
	for label, addr := range c.Pools {
		normalizedPools[label] = NormalizeAddress(addr)
	}
	c.Pools = normalizedPools
	return nil
}

// IsRouter reports whether addr (any case) is a known DEX router on this chain.
func (c *ChainConfig) IsRouter(addr string) bool {
	addr = NormalizeAddress(addr)
	for _, router := range c.DEXRouters {
		if router == addr {
			return true
		}
	}
	return false
}
