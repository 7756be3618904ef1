package stats

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	arbtypes "github.com/mev-engine/evm-arb-engine/pkg/types"
)

type fakeStore struct {
	calls []call
	err   error
}

type call struct {
	chainID int64
	hour    time.Time
}

func (f *fakeStore) AggregateHourlyStats(ctx context.Context, chainID int64, hourTimestamp time.Time, minUSD, maxUSD decimal.Decimal) (*arbtypes.ChainStat, error) {
	f.calls = append(f.calls, call{chainID: chainID, hour: hourTimestamp})
	if f.err != nil {
		return nil, f.err
	}
	return &arbtypes.ChainStat{ChainID: chainID, HourTimestamp: hourTimestamp}, nil
}

func TestAggregateAllChains_CallsStoreForEveryConfiguredChain(t *testing.T) {
	store := &fakeStore{}
	chains := []ChainRange{
		{ChainID: 1, SmallOppMinUSD: decimal.NewFromInt(10000), SmallOppMaxUSD: decimal.NewFromInt(100000)},
		{ChainID: 56, SmallOppMinUSD: decimal.NewFromInt(10000), SmallOppMaxUSD: decimal.NewFromInt(100000)},
	}
	a := New(store, chains, zap.NewNop())

	hour := time.Date(2026, 8, 2, 14, 0, 0, 0, time.UTC)
	a.AggregateAllChains(context.Background(), hour)

	require.Len(t, store.calls, 2)
	assert.Equal(t, int64(1), store.calls[0].chainID)
	assert.Equal(t, int64(56), store.calls[1].chainID)
}

func TestAggregateAllChains_ContinuesAfterOneChainErrors(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	chains := []ChainRange{{ChainID: 1}, {ChainID: 2}}
	a := New(store, chains, zap.NewNop())

	a.AggregateAllChains(context.Background(), time.Now())
	assert.Len(t, store.calls, 2)
}

func TestPreviousHour_TruncatesAndSubtracts(t *testing.T) {
	now := time.Date(2026, 8, 2, 14, 37, 12, 0, time.UTC)
	got := previousHour(now)
	want := time.Date(2026, 8, 2, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, want, got)
}
