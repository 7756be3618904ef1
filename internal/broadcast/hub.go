// Package broadcast fans detected opportunities and transactions out to
// subscribed websocket clients (spec.md §4.8).
package broadcast

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

// Metrics is the subset of metrics.Collector the hub reports traffic to.
// Optional: a nil recorder disables instrumentation.
type Metrics interface {
	IncWebsocketMessages(msgType string)
}

const (
	// DefaultMaxConnections is the concurrent subscriber cap (spec.md §4.8).
	DefaultMaxConnections = 100
	// mailboxSize bounds each client's outbound buffer; once full, send
	// discards the oldest buffered message rather than blocking the hub
	// or dropping the connection.
	mailboxSize = 256
	// heartbeatInterval matches the original manager's 30s cadence.
	heartbeatInterval = 30 * time.Second
	// CloseCodeCapacity is sent when a connection is rejected for capacity.
	CloseCodeCapacity = 1008
)

// Client is the hub's view of one subscriber: an outbound mailbox plus its
// active subscriptions. The websocket adapter (internal/httpapi) owns the
// actual connection and drains Send.
type Client struct {
	ID            string
	Send          chan Message
	mu            sync.RWMutex
	subscriptions []Filter
}

func newClient(id string) *Client {
	return &Client{ID: id, Send: make(chan Message, mailboxSize)}
}

func (c *Client) addSubscription(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = append(c.subscriptions, f)
}

func (c *Client) removeSubscription(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.subscriptions[:0]
	removed := 0
	for _, f := range c.subscriptions {
		if f.Channel == channel {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	c.subscriptions = kept
	return removed
}

func (c *Client) shouldReceive(channel string, chainID int64, profitUSD *float64, swapCount *int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.subscriptions {
		if f.Channel == channel && f.Matches(chainID, profitUSD, swapCount) {
			return true
		}
	}
	return false
}

// Hub maintains the subscriber registry and routes broadcast payloads to
// clients whose subscriptions match.
type Hub struct {
	maxConnections int
	logger         *zap.Logger

	mu       sync.RWMutex
	clients  map[string]*Client
	counter  int

	droppedMessages uint64
	metrics         Metrics

	register   chan *Client
	unregister chan *Client
	opps       chan arbtypes.Opportunity
	txs        chan arbtypes.ArbitrageTransaction
	done       chan struct{}
}

// New builds a Hub capped at maxConnections concurrent subscribers.
// maxConnections <= 0 falls back to DefaultMaxConnections.
func New(maxConnections int, logger *zap.Logger) *Hub {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	return &Hub{
		maxConnections: maxConnections,
		logger:         logger.With(zap.String("component", "broadcast_hub")),
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		opps:           make(chan arbtypes.Opportunity, 100),
		txs:            make(chan arbtypes.ArbitrageTransaction, 100),
		done:           make(chan struct{}),
	}
}

// Run drives the hub's event loop until Stop is called. Intended to run in
// its own goroutine for the life of the process.
func (h *Hub) Run() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case o := <-h.opps:
			h.deliverOpportunity(o)
		case tx := <-h.txs:
			h.deliverTransaction(tx)
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

// Stop halts the event loop and closes every client mailbox.
func (h *Hub) Stop() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
}

// Connect registers a new client, returning (nil, false) if the hub is at
// capacity — the caller must close the underlying connection with
// CloseCodeCapacity in that case.
func (h *Hub) Connect() (*Client, bool) {
	h.mu.Lock()
	if len(h.clients) >= h.maxConnections {
		h.mu.Unlock()
		h.logger.Warn("connection rejected at capacity",
			zap.Int("current_connections", len(h.clients)),
			zap.Int("max_connections", h.maxConnections))
		return nil, false
	}
	h.counter++
	id := clientID(h.counter)
	h.mu.Unlock()

	c := newClient(id)
	h.register <- c
	return c, true
}

// Disconnect removes a client from the registry.
func (h *Hub) Disconnect(c *Client) {
	h.unregister <- c
}

// HandleInbound applies a parsed client message (subscribe/unsubscribe/ping)
// and returns the response frame to send back, if any.
func (h *Hub) HandleInbound(c *Client, in Inbound) Message {
	switch in.Type {
	case msgTypeSubscribe:
		if in.Channel != ChannelOpportunities && in.Channel != ChannelTransactions {
			return Message{Type: msgTypeError, Message: "invalid channel: " + in.Channel}
		}
		c.addSubscription(in.Filters.toFilter(in.Channel))
		return Message{Type: msgTypeSubscribed, Channel: in.Channel, Filters: in.Filters}
	case msgTypeUnsubscribe:
		if in.Channel == "" {
			return Message{Type: msgTypeError, Message: "channel is required for unsubscribe"}
		}
		c.removeSubscription(in.Channel)
		return Message{Type: msgTypeUnsubscribed, Channel: in.Channel}
	case msgTypePing:
		return Message{Type: msgTypePong, Timestamp: time.Now()}
	default:
		return Message{Type: msgTypeError, Message: "unknown message type: " + in.Type}
	}
}

// PublishOpportunity queues an opportunity for delivery to matching clients.
// Non-blocking: if the internal queue is full the payload is dropped and
// logged, mirroring the teacher's "broadcast channel full" behavior.
func (h *Hub) PublishOpportunity(o arbtypes.Opportunity) {
	select {
	case h.opps <- o:
	default:
		h.logger.Warn("opportunity broadcast queue full, dropping", zap.Int64("chain_id", o.ChainID))
	}
}

// PublishTransaction queues a transaction for delivery to matching clients.
func (h *Hub) PublishTransaction(tx arbtypes.ArbitrageTransaction) {
	select {
	case h.txs <- tx:
	default:
		h.logger.Warn("transaction broadcast queue full, dropping", zap.Int64("chain_id", tx.ChainID))
	}
}

// ConnectionCount returns the number of currently registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages returns the cumulative count of messages discarded by
// drop-oldest backpressure across every client mailbox.
func (h *Hub) DroppedMessages() uint64 {
	return atomic.LoadUint64(&h.droppedMessages)
}

// SetMetrics attaches a metrics recorder. Call once after New.
func (h *Hub) SetMetrics(m Metrics) {
	h.metrics = m
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.logger.Info("connection accepted", zap.String("connection_id", c.ID))
	h.send(c, Message{Type: msgTypeConnected, ConnectionID: c.ID, Message: "connected to arbitrage monitor stream"})
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.Send)
		h.logger.Info("connection disconnected", zap.String("connection_id", c.ID), zap.Int("remaining", len(h.clients)))
	}
}

func (h *Hub) deliverOpportunity(o arbtypes.Opportunity) {
	profitUSD, _ := o.ProfitUSD.Float64()
	h.deliver(ChannelOpportunities, o.ChainID, &profitUSD, nil, Message{
		Type: msgTypeOpportunity, Data: o, Timestamp: time.Now(),
	})
}

func (h *Hub) deliverTransaction(tx arbtypes.ArbitrageTransaction) {
	var profitUSD *float64
	if tx.ProfitNetUSD != nil {
		v, _ := tx.ProfitNetUSD.Float64()
		profitUSD = &v
	}
	swapCount := tx.SwapCount
	h.deliver(ChannelTransactions, tx.ChainID, profitUSD, &swapCount, Message{
		Type: msgTypeTransaction, Data: tx, Timestamp: time.Now(),
	})
}

func (h *Hub) deliver(channel string, chainID int64, profitUSD *float64, swapCount *int, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.clients {
		if c.shouldReceive(channel, chainID, profitUSD, swapCount) {
			h.send(c, msg)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast delivered", zap.String("channel", channel), zap.Int("recipients", delivered))
	}
}

func (h *Hub) sendHeartbeat() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg := Message{Type: msgTypeHeartbeat, Timestamp: time.Now()}
	for _, c := range h.clients {
		h.send(c, msg)
	}
}

// send enqueues msg on c's mailbox. A full mailbox never drops the
// connection: the oldest buffered message is discarded to make room
// instead (spec.md §4.7/§7 drop-oldest backpressure).
func (h *Hub) send(c *Client, msg Message) {
	select {
	case c.Send <- msg:
		if h.metrics != nil {
			h.metrics.IncWebsocketMessages(msg.Type)
		}
		return
	default:
	}

	select {
	case <-c.Send:
		atomic.AddUint64(&h.droppedMessages, 1)
		h.logger.Warn("client mailbox full, dropping oldest message", zap.String("connection_id", c.ID))
	default:
	}

	select {
	case c.Send <- msg:
		if h.metrics != nil {
			h.metrics.IncWebsocketMessages(msg.Type)
		}
	default:
		// A concurrent drain raced us and refilled the mailbox; drop msg
		// itself rather than block the hub's event loop.
		atomic.AddUint64(&h.droppedMessages, 1)
		h.logger.Warn("client mailbox full after drop, dropping message", zap.String("connection_id", c.ID))
	}
}

func clientID(n int) string {
	return "ws_" + strconv.Itoa(n)
}
