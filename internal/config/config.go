package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the arbitrage detection engine.
type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	Database   DatabaseConfig     `mapstructure:"database"`
	Broadcast  BroadcastConfig    `mapstructure:"broadcast"`
	Monitoring MonitoringConfig   `mapstructure:"monitoring"`
	Chains     map[string]Chain   `mapstructure:"chains"`
}

// ServerConfig contains the HTTP/websocket server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig contains Postgres connection and pool sizing configuration.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// BroadcastConfig contains the websocket hub configuration.
type BroadcastConfig struct {
	MaxConnections int `mapstructure:"max_connections"`
}

// MonitoringConfig contains observability configuration.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPort int    `mapstructure:"metrics_port"`
	LogLevel    string `mapstructure:"log_level"`
	LogEncoding string `mapstructure:"log_encoding"`
}

// Chain is the per-chain configuration block: RPC endpoints, known DEX
// routers and pools, the native token's USD price, and the pool-scanner
// thresholds used to size a candidate opportunity.
type Chain struct {
	ChainID             int64             `mapstructure:"chain_id"`
	RPCEndpoints        []string          `mapstructure:"rpc_endpoints"`
	BlockTimeSeconds    float64           `mapstructure:"block_time_seconds"`
	NativeTokenSymbol   string            `mapstructure:"native_token_symbol"`
	NativeTokenUSDPrice decimal.Decimal   `mapstructure:"native_token_usd_price"`
	DEXRouters          map[string]string `mapstructure:"dex_routers"`
	Pools               map[string]string `mapstructure:"pools"`

	ScanIntervalSeconds   float64         `mapstructure:"scan_interval_seconds"`
	ImbalanceThresholdPct decimal.Decimal `mapstructure:"imbalance_threshold_pct"`
	SwapFeeFraction       decimal.Decimal `mapstructure:"swap_fee_fraction"`
	SmallOppMinUSD        decimal.Decimal `mapstructure:"small_opp_min_usd"`
	SmallOppMaxUSD        decimal.Decimal `mapstructure:"small_opp_max_usd"`
}

// Load reads configuration from ./configs/config.yaml (or ./config.yaml),
// falling back to defaults, then applies ARBD_-prefixed environment variable
// overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("ARBD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Per-chain config has no
// sensible default and must come from the config file or environment.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.url", "postgres://localhost:5432/arbd?sslmode=disable")
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.max_conns", 20)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")

	viper.SetDefault("broadcast.max_connections", 100)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
	viper.SetDefault("monitoring.log_level", "info")
	viper.SetDefault("monitoring.log_encoding", "json")
}
