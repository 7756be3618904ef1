// Package chainconn provides an EVM JSON-RPC connector with multi-endpoint
// failover and a per-endpoint circuit breaker, matching the resilience
// behavior of the reference chain connector.
package chainconn

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// MetricsRecorder is the subset of metrics.Collector the connector reports
// RPC health to. Optional: a nil recorder disables instrumentation.
type MetricsRecorder interface {
	ObserveRPCRequest(chain, method string, seconds float64)
	IncRPCError(chain, method string)
	SetBlocksBehind(chain string, n float64)
}

// Connector is an EVM RPC client for one chain with automatic endpoint
// failover. Each call makes at most three attempts in total, failing over to
// the next endpoint whose circuit permits a call after every failed attempt
// and pausing 1s, then 2s, in between; an endpoint is not retried before
// failover.
type Connector struct {
	chainName string
	chainID   int64
	endpoints []string
	routers   map[string]string
	pools     map[string]string

	mu           sync.Mutex
	currentIndex int
	clients      map[string]*ethclient.Client
	breakers     map[string]*circuitBreaker

	metrics MetricsRecorder
	logger  *zap.Logger
}

// New builds a Connector from a validated ChainConfig. It does not dial
// eagerly; the first call establishes the connection to the primary
// endpoint lazily.
func New(cfg *arbtypes.ChainConfig, logger *zap.Logger) *Connector {
	breakers := make(map[string]*circuitBreaker, len(cfg.RPCEndpoints))
	for _, ep := range cfg.RPCEndpoints {
		breakers[ep] = newCircuitBreaker(ep, logger)
	}

	return &Connector{
		chainName: cfg.Name,
		chainID:   cfg.ChainID,
		endpoints: append([]string(nil), cfg.RPCEndpoints...),
		routers:   cfg.DEXRouters,
		pools:     cfg.Pools,
		clients:   make(map[string]*ethclient.Client),
		breakers:  breakers,
		logger:    logger.With(zap.String("chain", cfg.Name), zap.Int64("chain_id", cfg.ChainID)),
	}
}

// SetMetrics attaches a metrics recorder. Call once after New; a nil or
// never-called recorder simply disables RPC instrumentation.
func (c *Connector) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

func (c *Connector) clientFor(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[endpoint]; ok {
		return cl, nil
	}

	cl, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrRPC, endpoint, err)
	}
	c.clients[endpoint] = cl
	return cl, nil
}

// currentEndpoint returns the endpoint the connector should try next.
func (c *Connector) currentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.currentIndex]
}

// failover advances to the next endpoint whose circuit breaker permits an
// attempt, trying each endpoint at most once. It returns false if none do.
func (c *Connector) failover() bool {
	c.mu.Lock()
	start := c.currentIndex
	n := len(c.endpoints)
	c.mu.Unlock()

	for i := 1; i <= n; i++ {
		c.mu.Lock()
		next := (start + i) % n
		endpoint := c.endpoints[next]
		breaker := c.breakers[endpoint]
		c.mu.Unlock()

		if !breaker.canAttempt() {
			continue
		}

		c.mu.Lock()
		c.currentIndex = next
		c.mu.Unlock()
		c.logger.Info("rpc failover", zap.String("endpoint", endpoint))
		return true
	}

	c.logger.Error("rpc failover exhausted", zap.Int("attempted_endpoints", n))
	return false
}

// call executes op against the current endpoint with up to three attempts,
// failing over to the next healthy endpoint between attempts and backing
// off 1s, then 2s before a third try. It does not itself apply a timeout;
// callers should derive ctx with a deadline.
func (c *Connector) call(ctx context.Context, operation string, op func(ctx context.Context, cl *ethclient.Client) error) error {
	const maxAttempts = 3
	delays := []time.Duration{time.Second, 2 * time.Second}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		endpoint := c.currentEndpoint()
		breaker := c.breakers[endpoint]

		if !breaker.canAttempt() {
			if !c.failover() {
				return fmt.Errorf("%w", ErrAllEndpointsUnavailable)
			}
			continue
		}

		cl, err := c.clientFor(ctx, endpoint)
		if err != nil {
			breaker.recordFailure()
			lastErr = err
			if !c.failover() {
				break
			}
			continue
		}

		start := time.Now()
		err = op(ctx, cl)
		latency := time.Since(start)
		if c.metrics != nil {
			c.metrics.ObserveRPCRequest(c.chainName, operation, latency.Seconds())
		}

		if err == nil {
			breaker.recordSuccess()
			c.logger.Debug("rpc call succeeded",
				zap.String("operation", operation),
				zap.String("endpoint", endpoint),
				zap.Duration("latency", latency))
			return nil
		}

		breaker.recordFailure()
		lastErr = err
		if c.metrics != nil {
			c.metrics.IncRPCError(c.chainName, operation)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}

		c.logger.Warn("rpc operation failed",
			zap.String("operation", operation),
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			if !c.failover() {
				break
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-time.After(delays[attempt]):
			}
		}
	}

	c.logger.Error("rpc operation exhausted retries",
		zap.String("operation", operation), zap.Error(lastErr))
	return fmt.Errorf("%w: %s: %v", ErrRPC, operation, lastErr)
}

// LatestBlockNumber returns the chain's current head height.
func (c *Connector) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, "get_latest_block", func(ctx context.Context, cl *ethclient.Client) error {
		h, err := cl.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

// BlockByNumber fetches a full block, including transactions.
func (c *Connector) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.call(ctx, "get_block", func(ctx context.Context, cl *ethclient.Client) error {
		b, err := cl.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	return block, err
}

// TransactionReceipt fetches the receipt for a confirmed transaction.
func (c *Connector) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.call(ctx, "get_transaction_receipt", func(ctx context.Context, cl *ethclient.Client) error {
		r, err := cl.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	return receipt, err
}

// CallContract executes an eth_call against a pinned block height, used by
// the pool scanner to read reserves.
func (c *Connector) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.call(ctx, "eth_call", func(ctx context.Context, cl *ethclient.Client) error {
		res, err := cl.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// DEXRouters returns the configured router label -> address map.
func (c *Connector) DEXRouters() map[string]string { return c.routers }

// Pools returns the configured pool label -> address map.
func (c *Connector) Pools() map[string]string { return c.pools }

// IsDEXRouter reports whether addr matches a configured router, case-insensitive.
func (c *Connector) IsDEXRouter(addr string) bool {
	normalized := arbtypes.NormalizeAddress(addr)
	for _, router := range c.routers {
		if router == normalized {
			return true
		}
	}
	return false
}

// ChainID returns the configured chain ID.
func (c *Connector) ChainID() int64 { return c.chainID }

// ChainName returns the configured chain name.
func (c *Connector) ChainName() string { return c.chainName }
