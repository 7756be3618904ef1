package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithNoConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int32(5), cfg.Database.MinConns)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 100, cfg.Broadcast.MaxConnections)
	assert.Equal(t, "info", cfg.Monitoring.LogLevel)
}

func TestLoad_EnvVarOverridesDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ARBD_MONITORING_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Monitoring.LogLevel)
}

func TestChain_ToChainConfig_CopiesAllFields(t *testing.T) {
	c := Chain{
		ChainID:               56,
		RPCEndpoints:          []string{"https://bsc.example.com"},
		BlockTimeSeconds:      3,
		NativeTokenSymbol:     "BNB",
		NativeTokenUSDPrice:   decimal.NewFromInt(600),
		DEXRouters:            map[string]string{"pancake": "0xabc"},
		Pools:                 map[string]string{"bnb-usdt": "0xdef"},
		ScanIntervalSeconds:   2,
		ImbalanceThresholdPct: decimal.NewFromFloat(5),
		SwapFeeFraction:       decimal.NewFromFloat(0.0025),
		SmallOppMinUSD:        decimal.NewFromInt(10000),
		SmallOppMaxUSD:        decimal.NewFromInt(100000),
	}

	cc := c.ToChainConfig("bsc")
	assert.Equal(t, "bsc", cc.Name)
	assert.Equal(t, int64(56), cc.ChainID)
	assert.Equal(t, "BNB", cc.NativeTokenSymbol)
	assert.Equal(t, "0xabc", cc.DEXRouters["pancake"])
}
