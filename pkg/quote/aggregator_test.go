package quote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zecswap/pkg/provider"
	"zecswap/pkg/types"
)

type fakeProvider struct {
	name   string
	routes []types.SwapRoute
	err    error
	delay  time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(ctx context.Context, _ *types.SwapQuoteRequest) ([]types.SwapRoute, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.routes, f.err
}

func (f *fakeProvider) Execute(context.Context, *types.SwapRoute) (*provider.ExecutionHandle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) PollStatus(context.Context, string) (*provider.StatusDetail, error) {
	return nil, fmt.Errorf("not implemented")
}

func testRequest() *types.SwapQuoteRequest {
	return &types.SwapQuoteRequest{
		Source:            types.ChainAsset{Chain: types.ChainBitcoin, Asset: "BTC"},
		Destination:       types.ChainAsset{Chain: types.ChainZcash, Asset: "ZEC"},
		AmountIn:          1000000,
		SlippageTolerance: 0.005,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func route(provider string, out types.Amount, fee types.Amount) types.SwapRoute {
	return types.SwapRoute{
		RouteID:           provider + "-route",
		Provider:          provider,
		ExpectedAmountOut: out,
		Fees:              types.FeeBreakdown{Total: fee},
	}
}

func TestGetQuotesRecommendsBestOutput(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "a", routes: []types.SwapRoute{route("a", 950000, 0)}},
		&fakeProvider{name: "b", routes: []types.SwapRoute{route("b", 980000, 0)}},
	}, time.Second, quietLogger())

	result, err := agg.GetQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, result.Routes, 2)
	require.NotNil(t, result.Recommended)
	assert.Equal(t, types.Amount(980000), result.Recommended.ExpectedAmountOut)
	assert.Equal(t, "b", result.Routes[0].Provider)
	assert.Empty(t, result.Errors)
}

func TestGetQuotesIsolatesProviderFailure(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "broken", err: fmt.Errorf("upstream down")},
		&fakeProvider{name: "ok", routes: []types.SwapRoute{route("ok", 950000, 0)}},
	}, time.Second, quietLogger())

	result, err := agg.GetQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, result.Routes, 1)
	assert.Equal(t, "ok", result.Routes[0].Provider)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Provider)
	assert.Contains(t, result.Errors[0].Reason, "upstream down")
}

func TestGetQuotesAllFailIsValidEmptyResult(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "a", err: fmt.Errorf("down")},
		&fakeProvider{name: "b", err: fmt.Errorf("also down")},
	}, time.Second, quietLogger())

	result, err := agg.GetQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Empty(t, result.Routes)
	assert.Nil(t, result.Recommended)
	assert.Len(t, result.Errors, 2)
}

func TestGetQuotesTieBreak(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "zeta", routes: []types.SwapRoute{route("zeta", 980000, 100)}},
		&fakeProvider{name: "alpha", routes: []types.SwapRoute{route("alpha", 980000, 100)}},
		&fakeProvider{name: "cheap", routes: []types.SwapRoute{route("cheap", 980000, 50)}},
	}, time.Second, quietLogger())

	result, err := agg.GetQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	// Same output: lower fee first, then provider name.
	require.Len(t, result.Routes, 3)
	assert.Equal(t, "cheap", result.Routes[0].Provider)
	assert.Equal(t, "alpha", result.Routes[1].Provider)
	assert.Equal(t, "zeta", result.Routes[2].Provider)
}

func TestGetQuotesHonorsAllowlist(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "a", routes: []types.SwapRoute{route("a", 990000, 0)}},
		&fakeProvider{name: "b", routes: []types.SwapRoute{route("b", 980000, 0)}},
	}, time.Second, quietLogger())

	req := testRequest()
	req.Providers = []string{"b"}

	result, err := agg.GetQuotes(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Routes, 1)
	assert.Equal(t, "b", result.Routes[0].Provider)
}

func TestGetQuotesSlowProviderTimesOut(t *testing.T) {
	agg := New([]provider.Provider{
		&fakeProvider{name: "slow", delay: 500 * time.Millisecond, routes: []types.SwapRoute{route("slow", 990000, 0)}},
		&fakeProvider{name: "fast", routes: []types.SwapRoute{route("fast", 950000, 0)}},
	}, 50*time.Millisecond, quietLogger())

	result, err := agg.GetQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, result.Routes, 1)
	assert.Equal(t, "fast", result.Routes[0].Provider)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "slow", result.Errors[0].Provider)
}

func TestGetQuotesValidatesRequest(t *testing.T) {
	agg := New(nil, time.Second, quietLogger())

	req := testRequest()
	req.AmountIn = 0
	_, err := agg.GetQuotes(context.Background(), req)
	assert.Error(t, err)
}
