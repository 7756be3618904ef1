package config

import arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"

// ToChainConfig converts a configured chain block into the runtime
// arbtypes.ChainConfig consumed by the scanner, analyzer and monitor.
func (c Chain) ToChainConfig(name string) arbtypes.ChainConfig {
	return arbtypes.ChainConfig{
		Name:                  name,
		ChainID:               c.ChainID,
		RPCEndpoints:          c.RPCEndpoints,
		BlockTimeSeconds:      c.BlockTimeSeconds,
		NativeTokenSymbol:     c.NativeTokenSymbol,
		NativeTokenUSDPrice:   c.NativeTokenUSDPrice,
		DEXRouters:            c.DEXRouters,
		Pools:                 c.Pools,
		ScanIntervalSeconds:   c.ScanIntervalSeconds,
		ImbalanceThresholdPct: c.ImbalanceThresholdPct,
		SwapFeeFraction:       c.SwapFeeFraction,
		SmallOppMinUSD:        c.SmallOppMinUSD,
		SmallOppMaxUSD:        c.SmallOppMaxUSD,
	}
}
