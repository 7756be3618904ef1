package broadcast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

func testHub(t *testing.T, maxConns int) *Hub {
	h := New(maxConns, zap.NewNop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestConnect_SendsWelcome(t *testing.T) {
	h := testHub(t, 0)
	c, ok := h.Connect()
	require.True(t, ok)
	msg := recv(t, c)
	assert.Equal(t, msgTypeConnected, msg.Type)
	assert.Equal(t, c.ID, msg.ConnectionID)
}

func TestConnect_RejectsAtCapacity(t *testing.T) {
	h := testHub(t, 1)
	_, ok := h.Connect()
	require.True(t, ok)
	time.Sleep(10 * time.Millisecond) // let register land before the second Connect checks len(clients)

	_, ok = h.Connect()
	assert.False(t, ok)
}

func TestHandleInbound_SubscribeThenReceivesMatchingOpportunity(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c) // drain welcome

	chainID := int64(56)
	resp := h.HandleInbound(c, Inbound{Type: msgTypeSubscribe, Channel: ChannelOpportunities, Filters: InboundFilters{ChainID: &chainID}})
	assert.Equal(t, msgTypeSubscribed, resp.Type)

	h.PublishOpportunity(arbtypes.Opportunity{ChainID: 56, ProfitUSD: decimal.NewFromInt(500)})
	msg := recv(t, c)
	assert.Equal(t, msgTypeOpportunity, msg.Type)

	h.PublishOpportunity(arbtypes.Opportunity{ChainID: 1, ProfitUSD: decimal.NewFromInt(500)})
	select {
	case <-c.Send:
		t.Fatal("should not have received opportunity from a non-matching chain")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleInbound_MinProfitFilterExcludesLowerOpportunity(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)

	minProfit := 1000.0
	h.HandleInbound(c, Inbound{Type: msgTypeSubscribe, Channel: ChannelOpportunities, Filters: InboundFilters{MinProfit: &minProfit}})

	h.PublishOpportunity(arbtypes.Opportunity{ChainID: 1, ProfitUSD: decimal.NewFromInt(500)})
	select {
	case <-c.Send:
		t.Fatal("should not have received opportunity below min_profit")
	case <-time.After(50 * time.Millisecond):
	}

	h.PublishOpportunity(arbtypes.Opportunity{ChainID: 1, ProfitUSD: decimal.NewFromInt(5000)})
	msg := recv(t, c)
	assert.Equal(t, msgTypeOpportunity, msg.Type)
}

func TestHandleInbound_Unsubscribe(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)

	h.HandleInbound(c, Inbound{Type: msgTypeSubscribe, Channel: ChannelOpportunities})
	resp := h.HandleInbound(c, Inbound{Type: msgTypeUnsubscribe, Channel: ChannelOpportunities})
	assert.Equal(t, msgTypeUnsubscribed, resp.Type)

	h.PublishOpportunity(arbtypes.Opportunity{ChainID: 1, ProfitUSD: decimal.Zero})
	select {
	case <-c.Send:
		t.Fatal("should not receive after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleInbound_Ping(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)

	resp := h.HandleInbound(c, Inbound{Type: msgTypePing})
	assert.Equal(t, msgTypePong, resp.Type)
}

func TestHandleInbound_UnknownType(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)

	resp := h.HandleInbound(c, Inbound{Type: "bogus"})
	assert.Equal(t, msgTypeError, resp.Type)
}

func TestHandleInbound_InvalidChannel(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)

	resp := h.HandleInbound(c, Inbound{Type: msgTypeSubscribe, Channel: "bogus"})
	assert.Equal(t, msgTypeError, resp.Type)
}

func TestDisconnect_RemovesClient(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c)
	assert.Equal(t, 1, h.ConnectionCount())

	h.Disconnect(c)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestSend_DropsOldestMessageWhenMailboxFullInsteadOfDisconnecting(t *testing.T) {
	h := testHub(t, 0)
	c, _ := h.Connect()
	recv(t, c) // drain welcome

	for i := 0; i < mailboxSize; i++ {
		h.send(c, Message{Type: msgTypeOpportunity, Timestamp: time.Unix(int64(i), 0)})
	}
	require.Equal(t, uint64(0), h.DroppedMessages())

	// Mailbox is now full; this send must discard the oldest buffered
	// message (i=0) rather than drop the connection.
	h.send(c, Message{Type: msgTypeOpportunity, Timestamp: time.Unix(int64(mailboxSize), 0)})

	assert.Equal(t, uint64(1), h.DroppedMessages())
	assert.Equal(t, 1, h.ConnectionCount())

	oldest := recv(t, c)
	assert.Equal(t, time.Unix(1, 0), oldest.Timestamp)
}

func TestFilter_MinSwapsExcludesShallowTransaction(t *testing.T) {
	minSwaps := 3
	f := Filter{Channel: ChannelTransactions, MinSwaps: &minSwaps}
	twoHop := 2
	threeHop := 3
	assert.False(t, f.Matches(1, nil, &twoHop))
	assert.True(t, f.Matches(1, nil, &threeHop))
}
