package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) FetchSignals(ctx context.Context, ticker string) (*TechnicalSignals, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &TechnicalSignals{Symbol: ticker, Price: 100}, nil
}

func TestCacheBoundsFetches(t *testing.T) {
	t.Parallel()

	p := &countingProvider{}
	c := NewCache(p, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sig, err := c.FetchSignals(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", sig.Symbol)
	}
	assert.Equal(t, 1, p.calls)

	_, err := c.FetchSignals(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCacheFlush(t *testing.T) {
	t.Parallel()

	p := &countingProvider{}
	c := NewCache(p, time.Minute)
	ctx := context.Background()

	_, err := c.FetchSignals(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c.Flush()
	assert.Equal(t, 0, c.Len())

	_, err = c.FetchSignals(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	p := &countingProvider{err: errors.New("upstream down")}
	c := NewCache(p, time.Minute)
	ctx := context.Background()

	_, err := c.FetchSignals(ctx, "AAPL")
	require.Error(t, err)

	p.err = nil
	_, err = c.FetchSignals(ctx, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestResolveVIX(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	assert.InDelta(t, 20.0, ResolveVIX(ctx, nil), 1e-9)
	assert.InDelta(t, 32.5, ResolveVIX(ctx, StaticVIX(32.5)), 1e-9)
	assert.InDelta(t, 20.0, ResolveVIX(ctx, failingVIX{}), 1e-9)
}

type failingVIX struct{}

func (failingVIX) VIX(context.Context) (float64, error) { return 0, errors.New("no feed") }
