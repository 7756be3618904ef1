// Package analyzer classifies confirmed transactions as multi-hop
// arbitrage by counting and decoding Uniswap-V2-style Swap events and
// checking the calling method against a known swap-method allow-list.
package analyzer

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// swapEventSignature is keccak256("Swap(address,uint256,uint256,uint256,uint256,address)").
var swapEventSignature = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))

// knownSwapMethods is the 4-byte function-selector allow-list of DEX swap
// entry points this analyzer recognizes: Uniswap V2 (and its
// fee-on-transfer variants), Balancer, and Uniswap V3.
var knownSwapMethods = map[string]bool{
	"38ed1739": true, // swapExactTokensForTokens
	"8803dbee": true, // swapTokensForExactTokens
	"7ff36ab5": true, // swapExactETHForTokens
	"18cbafe5": true, // swapExactTokensForETH
	"fb3bdb41": true, // swapETHForExactTokens
	"4a25d94a": true, // swapTokensForExactETH
	"5c11d795": true, // swapExactTokensForTokensSupportingFeeOnTransferTokens
	"b6f9de95": true, // swapExactETHForTokensSupportingFeeOnTransferTokens
	"791ac947": true, // swapExactTokensForETHSupportingFeeOnTransferTokens
	"8201aa3f": true, // swapExactAmountIn (Balancer)
	"7c5e9ea4": true, // swapExactAmountOut (Balancer)
	"c04b8d59": true, // exactInput (Uniswap V3)
	"414bf389": true, // exactInputSingle (Uniswap V3)
	"f28c0498": true, // exactOutput (Uniswap V3)
	"db3e2198": true, // exactOutputSingle (Uniswap V3)
}

// Analyzer decodes and classifies transaction receipts for one chain.
type Analyzer struct {
	chainName      string
	routerAddrs    map[string]bool
	logger         *zap.Logger
}

// New builds an Analyzer scoped to the router addresses of one chain.
func New(chainName string, dexRouters map[string]string, logger *zap.Logger) *Analyzer {
	routers := make(map[string]bool, len(dexRouters))
	for _, addr := range dexRouters {
		routers[arbtypes.NormalizeAddress(addr)] = true
	}
	return &Analyzer{
		chainName:   chainName,
		routerAddrs: routers,
		logger:      logger.With(zap.String("component", "analyzer"), zap.String("chain", chainName)),
	}
}

// CountSwapEvents counts logs whose topic0 matches the Swap event
// signature, ignoring Transfer/Sync/Approval and any other event type.
func (a *Analyzer) CountSwapEvents(receipt *types.Receipt) int {
	count := 0
	for _, log := range receipt.Logs {
		if len(log.Topics) > 0 && log.Topics[0] == swapEventSignature {
			count++
		}
	}
	return count
}

// ParseSwapEvents decodes every Swap log in the receipt, in ascending
// log-index order (the order types.Receipt.Logs is already delivered in).
func (a *Analyzer) ParseSwapEvents(receipt *types.Receipt) []arbtypes.SwapEvent {
	var events []arbtypes.SwapEvent

	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != swapEventSignature {
			continue
		}
		if len(log.Topics) < 3 {
			a.logger.Warn("swap log missing indexed topics", zap.Uint("log_index", log.Index))
			continue
		}
		if len(log.Data) < 128 {
			a.logger.Warn("swap event data too short",
				zap.Int("data_length", len(log.Data)), zap.Uint("log_index", log.Index))
			continue
		}

		sender := "0x" + log.Topics[1].Hex()[26:]
		recipient := "0x" + log.Topics[2].Hex()[26:]

		event := arbtypes.SwapEvent{
			PoolAddress: arbtypes.NormalizeAddress(log.Address.Hex()),
			Sender:      arbtypes.NormalizeAddress(sender),
			Recipient:   arbtypes.NormalizeAddress(recipient),
			Amount0In:   new(big.Int).SetBytes(log.Data[0:32]),
			Amount1In:   new(big.Int).SetBytes(log.Data[32:64]),
			Amount0Out:  new(big.Int).SetBytes(log.Data[64:96]),
			Amount1Out:  new(big.Int).SetBytes(log.Data[96:128]),
			LogIndex:    log.Index,
		}
		events = append(events, event)

		a.logger.Debug("swap event parsed",
			zap.String("pool", event.PoolAddress), zap.Uint("log_index", event.LogIndex))
	}

	return events
}

// IsArbitrage classifies a confirmed transaction as multi-hop arbitrage:
// it must contain 2 or more Swap events, target a known DEX router, and
// call a recognized swap method selector. A transaction with no to address
// (contract creation) is never arbitrage.
func (a *Analyzer) IsArbitrage(receipt *types.Receipt, to *string, inputData []byte) bool {
	swapCount := a.CountSwapEvents(receipt)
	if swapCount < 2 {
		return false
	}

	if to == nil {
		return false
	}
	normalizedTo := arbtypes.NormalizeAddress(*to)
	if !a.routerAddrs[normalizedTo] {
		return false
	}

	if len(inputData) < 4 {
		return false
	}
	selector := hex.EncodeToString(inputData[:4])
	if !knownSwapMethods[selector] {
		return false
	}

	a.logger.Info("arbitrage detected", zap.Int("swap_count", swapCount), zap.String("method", selector))
	return true
}
