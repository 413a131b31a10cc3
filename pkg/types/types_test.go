package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountJSONRoundTrip(t *testing.T) {
	// Larger than float64 can represent exactly.
	original := Amount(9007199254740993)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"9007199254740993"`, string(data))

	var decoded Amount
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestAmountRejectsBareNumbers(t *testing.T) {
	var a Amount
	err := json.Unmarshal([]byte(`12345`), &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string")
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("1000000")
	require.NoError(t, err)
	assert.Equal(t, Amount(1000000), a)

	_, err = ParseAmount("")
	assert.Error(t, err)

	_, err = ParseAmount("-5")
	assert.Error(t, err)

	_, err = ParseAmount("1.5")
	assert.Error(t, err)
}

func TestParseDecimalAmount(t *testing.T) {
	tests := []struct {
		input    string
		decimals int
		want     Amount
	}{
		{"0.5", 8, 50000000},
		{"1", 8, 100000000},
		{"1.23456789", 8, 123456789},
		{"0.000000001", 8, 0}, // truncated, never rounded up
		{"100", 6, 100000000},
		{".25", 8, 25000000},
		{"0", 8, 0},
	}
	for _, tt := range tests {
		got, err := ParseDecimalAmount(tt.input, tt.decimals)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	_, err := ParseDecimalAmount("-1", 8)
	assert.Error(t, err)
	_, err = ParseDecimalAmount("abc", 8)
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.5", FormatAmount(50000000, 8))
	assert.Equal(t, "1", FormatAmount(100000000, 8))
	assert.Equal(t, "1.23456789", FormatAmount(123456789, 8))
	assert.Equal(t, "0.00000001", FormatAmount(1, 8))
	assert.Equal(t, "42", FormatAmount(42, 0))
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, Amount(995000), ApplySlippage(1000000, 0.005))
	assert.Equal(t, Amount(1000000), ApplySlippage(1000000, 0))
}

func TestSwapQuoteRequestValidate(t *testing.T) {
	valid := SwapQuoteRequest{
		Source:            ChainAsset{Chain: ChainBitcoin, Asset: "BTC"},
		Destination:       ChainAsset{Chain: ChainZcash, Asset: "ZEC"},
		AmountIn:          1000000,
		SlippageTolerance: 0.005,
	}
	require.NoError(t, valid.Validate())

	zeroAmount := valid
	zeroAmount.AmountIn = 0
	assert.Error(t, zeroAmount.Validate())

	samePair := valid
	samePair.Destination = samePair.Source
	assert.Error(t, samePair.Validate())

	badSlippage := valid
	badSlippage.SlippageTolerance = 1.5
	assert.Error(t, badSlippage.Validate())

	noSource := valid
	noSource.Source = ChainAsset{}
	assert.Error(t, noSource.Validate())
}

func TestAllowsProvider(t *testing.T) {
	req := SwapQuoteRequest{}
	assert.True(t, req.AllowsProvider("anything"))

	req.Providers = []string{"sideshift"}
	assert.True(t, req.AllowsProvider("sideshift"))
	assert.False(t, req.AllowsProvider("near-intents"))
}

func TestSwapRouteExpired(t *testing.T) {
	now := time.Now()

	route := SwapRoute{ExpiresAt: now.Add(time.Minute).Unix()}
	assert.False(t, route.Expired(now))

	route.ExpiresAt = now.Add(-time.Minute).Unix()
	assert.True(t, route.Expired(now))

	// Zero means no deadline.
	route.ExpiresAt = 0
	assert.False(t, route.Expired(now))
}

func TestSwapRouteClone(t *testing.T) {
	route := SwapRoute{
		RouteID:  "r1",
		Metadata: map[string]string{"recipient": "a"},
		Hops:     []RouteHop{{Protocol: "x"}},
	}

	clone := route.Clone()
	clone.Metadata["recipient"] = "b"
	clone.Hops[0].Protocol = "y"

	assert.Equal(t, "a", route.Metadata["recipient"])
	assert.Equal(t, "x", route.Hops[0].Protocol)

	// Cloning a route without metadata still yields a writable map.
	bare := (&SwapRoute{}).Clone()
	bare.Metadata["k"] = "v"
	assert.Equal(t, "v", bare.Metadata["k"])
}
