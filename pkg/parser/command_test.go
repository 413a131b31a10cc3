package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwapArgs(t *testing.T) {
	intent, err := ParseSwapArgs([]string{"0.5", "BTC", "to", "ZEC"})
	require.NoError(t, err)
	assert.Equal(t, "0.5", intent.Amount)
	assert.Equal(t, "BTC", intent.SourceToken)
	assert.Equal(t, "ZEC", intent.DestToken)

	// Leading "swap" and lower case are tolerated.
	intent, err = ParseSwapArgs([]string{"swap", "100", "usdc", "to", "zec"})
	require.NoError(t, err)
	assert.Equal(t, "100", intent.Amount)
	assert.Equal(t, "USDC", intent.SourceToken)
	assert.Equal(t, "ZEC", intent.DestToken)
}

func TestParseSwapArgsRejectsGarbage(t *testing.T) {
	for _, args := range [][]string{
		{"BTC", "to", "ZEC"},
		{"0.5", "BTC", "ZEC"},
		{"0.5", "BTC", "to"},
		{},
	} {
		_, err := ParseSwapArgs(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestNormalizeTokenSymbol(t *testing.T) {
	assert.Equal(t, "BTC", NormalizeTokenSymbol("wbtc"))
	assert.Equal(t, "ETH", NormalizeTokenSymbol(" WETH "))
	assert.Equal(t, "ZEC", NormalizeTokenSymbol("zec"))
}
