package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingSignalValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name    string
		sig     PendingSignal
		wantErr bool
	}{
		{
			name: "valid buy",
			sig:  PendingSignal{Ticker: "AAPL", Action: Buy, Confidence: 85, CreatedAt: now},
		},
		{
			name:    "lowercase ticker",
			sig:     PendingSignal{Ticker: "aapl", Action: Buy, CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "ticker too long",
			sig:     PendingSignal{Ticker: "TOOLONG", Action: Buy, CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "unknown action",
			sig:     PendingSignal{Ticker: "AAPL", Action: "hold", CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			sig:     PendingSignal{Ticker: "AAPL", Action: Buy, Confidence: 101, CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "expires before created",
			sig:     PendingSignal{Ticker: "AAPL", Action: Buy, CreatedAt: now, ExpiresAt: now.Add(-time.Hour)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPendingSignalExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	sig := PendingSignal{Ticker: "AAPL", Action: Buy, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, sig.Expired(now))
	assert.False(t, sig.Expired(now.Add(time.Hour)))
	assert.True(t, sig.Expired(now.Add(time.Hour+time.Second)))

	never := PendingSignal{Ticker: "AAPL", Action: Buy, CreatedAt: now}
	assert.False(t, never.Expired(now.Add(100*time.Hour)))
}

func TestPositionUpdatePriceLong(t *testing.T) {
	t.Parallel()

	p := &Position{Ticker: "AAPL", Side: SideLong, Quantity: 100, AvgEntryPrice: 150}
	p.UpdatePrice(160)

	assert.InDelta(t, 16000.0, p.MarketValue, 1e-9)
	assert.InDelta(t, 1000.0, p.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 1000.0/15000.0, p.UnrealizedPnLPct, 1e-9)
}

func TestPositionUpdatePriceShort(t *testing.T) {
	t.Parallel()

	// Short 100 at 150, price drops to 140: gain of 1000.
	p := &Position{Ticker: "TSLA", Side: SideShort, Quantity: 100, AvgEntryPrice: 150}
	p.UpdatePrice(140)

	require.InDelta(t, 1000.0, p.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.0667, p.UnrealizedPnLPct, 0.0001)
	assert.Greater(t, p.UnrealizedPnL, 0.0)

	// Price rises, the short loses.
	p.UpdatePrice(155)
	assert.InDelta(t, -500.0, p.UnrealizedPnL, 1e-9)
}

func TestActionHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, Buy.Opens())
	assert.True(t, Short.Opens())
	assert.False(t, Sell.Opens())
	assert.False(t, Cover.Opens())

	assert.Equal(t, SideLong, Buy.Side())
	assert.Equal(t, SideShort, Short.Side())
}
