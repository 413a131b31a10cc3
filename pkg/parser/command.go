// Package parser turns the CLI's "0.5 BTC to ZEC" swap phrasing into a
// structured intent.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// SwapIntent is the raw parse of a swap command. Amount stays a string
// until the token's decimals are known.
type SwapIntent struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// swapPattern matches "<amount> <token> TO <token>".
var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

// ParseSwapArgs parses a swap command.
// Examples:
//   - "0.5 BTC to ZEC"
//   - "swap 100 USDC to ZEC"
//   - "1.25 ZEC to ETH"
func ParseSwapArgs(args []string) (*SwapIntent, error) {
	command := strings.TrimSpace(strings.ToUpper(strings.Join(args, " ")))
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap format. Expected: '<amount> <token> to <token>' (e.g., '0.5 BTC to ZEC')")
	}

	return &SwapIntent{
		Amount:      matches[1],
		SourceToken: matches[2],
		DestToken:   matches[3],
	}, nil
}

// NormalizeTokenSymbol maps wrapped-asset aliases onto their canonical
// symbols.
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"WBTC": "BTC",
		"WETH": "ETH",
		"WSOL": "SOL",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}
