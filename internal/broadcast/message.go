package broadcast

import "time"

// Message is the envelope for every outbound websocket frame, matching the
// original manager's {"type": ..., ...} grammar.
type Message struct {
	Type         string      `json:"type"`
	ConnectionID string      `json:"connection_id,omitempty"`
	Message      string      `json:"message,omitempty"`
	Channel      string      `json:"channel,omitempty"`
	Filters      any         `json:"filters,omitempty"`
	Data         any         `json:"data,omitempty"`
	Timestamp    time.Time   `json:"timestamp,omitempty"`
}

// Inbound is a parsed client->server frame: subscribe/unsubscribe/ping.
type Inbound struct {
	Type    string         `json:"type"`
	Channel string         `json:"channel"`
	Filters InboundFilters `json:"filters"`
}

// InboundFilters is the raw filter payload a client sends with "subscribe".
type InboundFilters struct {
	ChainID   *int64   `json:"chain_id,omitempty"`
	MinProfit *float64 `json:"min_profit,omitempty"`
	MaxProfit *float64 `json:"max_profit,omitempty"`
	MinSwaps  *int     `json:"min_swaps,omitempty"`
}

func (f InboundFilters) toFilter(channel string) Filter {
	return Filter{
		Channel:   channel,
		ChainID:   f.ChainID,
		MinProfit: f.MinProfit,
		MaxProfit: f.MaxProfit,
		MinSwaps:  f.MinSwaps,
	}
}

const (
	msgTypeConnected   = "connected"
	msgTypeSubscribe   = "subscribe"
	msgTypeSubscribed  = "subscribed"
	msgTypeUnsubscribe = "unsubscribe"
	msgTypeUnsubscribed = "unsubscribed"
	msgTypePing        = "ping"
	msgTypePong        = "pong"
	msgTypeHeartbeat   = "heartbeat"
	msgTypeOpportunity = "opportunity"
	msgTypeTransaction = "transaction"
	msgTypeError       = "error"
)
