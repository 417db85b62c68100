package priceoracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/triarb/internal/clockwork"
)

type fakeSource struct {
	name       string
	credential bool
	price      float64
	err        error
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) HasCredential() bool { return f.credential }
func (f *fakeSource) FetchPriceUSD(context.Context) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewRejectsFewerThanTwoUsableSources(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 100},
		&fakeSource{name: "b", credential: false, price: 100},
	}
	_, err := New(sources, time.Second, 1, 10000, clockwork.NewFakeClock(time.Now()), discardLogger())
	require.Error(t, err)
}

func TestForceRefreshAveragesSuccesses(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 100},
		&fakeSource{name: "b", credential: true, price: 102},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	require.NoError(t, o.ForceRefresh(context.Background()))
	assert.Equal(t, 101.0, o.Current())
}

func TestForceRefreshToleratesPartialFailure(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 200},
		&fakeSource{name: "b", credential: true, err: errors.New("boom")},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	require.NoError(t, o.ForceRefresh(context.Background()))
	assert.Equal(t, 200.0, o.Current())
}

func TestForceRefreshFailsWhenAllSourcesFail(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, err: errors.New("boom")},
		&fakeSource{name: "b", credential: true, err: errors.New("boom")},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	assert.Error(t, o.ForceRefresh(context.Background()))
}

func TestForceRefreshRejectsImplausiblePrice(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 999999},
		&fakeSource{name: "b", credential: true, price: 999999},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	assert.Error(t, o.ForceRefresh(context.Background()))
	assert.Equal(t, 0.0, o.Current())
}

func TestIsFreshReflectsRefreshInterval(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 100},
		&fakeSource{name: "b", credential: true, price: 100},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	assert.False(t, o.IsFresh())
	require.NoError(t, o.ForceRefresh(context.Background()))
	assert.True(t, o.IsFresh())

	clock.Advance(3 * time.Second)
	assert.False(t, o.IsFresh())
}

func TestTrendDetectsRiseAndFall(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true},
		&fakeSource{name: "b", credential: true},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	prices := []float64{100, 100, 100, 105}
	for _, p := range prices {
		sources[0].(*fakeSource).price = p
		sources[1].(*fakeSource).price = p
		require.NoError(t, o.ForceRefresh(context.Background()))
		clock.Advance(time.Second)
	}
	assert.Equal(t, TrendRising, o.Trend())
}

func TestTrendStableWithFlatPrices(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", credential: true, price: 50},
		&fakeSource{name: "b", credential: true, price: 50},
	}
	clock := clockwork.NewFakeClock(time.Now())
	o, err := New(sources, time.Second, 1, 10000, clock, discardLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, o.ForceRefresh(context.Background()))
		clock.Advance(time.Second)
	}
	assert.Equal(t, TrendStable, o.Trend())
	assert.Equal(t, 0.0, o.Volatility())
}

func TestParseSimplePriceField(t *testing.T) {
	parse := ParseSimplePriceField("solana", "usd")
	price, err := parse([]byte(`{"solana":{"usd":142.75}}`))
	require.NoError(t, err)
	assert.Equal(t, 142.75, price)

	_, err = parse([]byte(`{"bitcoin":{"usd":60000}}`))
	assert.Error(t, err)
}

func TestParseJSONPathFloat(t *testing.T) {
	parse := ParseJSONPathFloat("data", "amount")
	price, err := parse([]byte(`{"data":{"amount":"142.75"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 142.75, price, 0.001)

	_, err = parse([]byte(`{"data":{}}`))
	assert.Error(t, err)
}
