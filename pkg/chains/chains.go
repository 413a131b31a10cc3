// Package chains knows just enough about each supported chain to
// validate addresses and convert between human and smallest units.
package chains

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"zecswap/pkg/types"
)

// evmChains are the chains whose addresses are 20-byte hex.
var evmChains = map[types.Chain]bool{
	types.ChainEthereum: true,
	types.ChainBase:     true,
	types.ChainArbitrum: true,
}

// ValidateAddress checks that an address is plausible for the given
// chain. It is a shape check, not an ownership or checksum proof; it
// exists so execution fails before any provider is contacted.
func ValidateAddress(chain types.Chain, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("address is required for chain %s", chain)
	}

	switch {
	case evmChains[chain]:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%q is not a valid %s address", address, chain)
		}
	case chain == types.ChainSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("%q is not a valid solana address: %w", address, err)
		}
	case chain == types.ChainZcash:
		if !isZcashAddress(address) {
			return fmt.Errorf("%q is not a valid zcash address", address)
		}
	case chain == types.ChainBitcoin:
		if len(address) < 26 || len(address) > 90 {
			return fmt.Errorf("%q is not a valid bitcoin address", address)
		}
	case chain == types.ChainNear:
		if len(address) < 2 || len(address) > 64 {
			return fmt.Errorf("%q is not a valid near account", address)
		}
	default:
		return fmt.Errorf("unsupported chain: %s", chain)
	}
	return nil
}

func isZcashAddress(address string) bool {
	for _, prefix := range []string{"t1", "t3", "zs1", "u1", "tm", "ztestsapling"} {
		if strings.HasPrefix(address, prefix) && len(address) >= 20 {
			return true
		}
	}
	return false
}

// IsShielded reports whether a zcash address targets the shielded pool.
func IsShielded(address string) bool {
	return strings.HasPrefix(address, "zs1") ||
		strings.HasPrefix(address, "u1") ||
		strings.HasPrefix(address, "ztestsapling")
}

// decimals per well-known (chain, asset) pair.
var decimals = map[string]int{
	"zcash:ZEC":     8,
	"bitcoin:BTC":   8,
	"ethereum:ETH":  18,
	"ethereum:USDC": 6,
	"ethereum:USDT": 6,
	"base:ETH":      18,
	"base:USDC":     6,
	"arbitrum:ETH":  18,
	"arbitrum:USDC": 6,
	"solana:SOL":    9,
	"solana:USDC":   6,
	"near:NEAR":     24,
	"near:USDC":     6,
}

// defaultChains maps a bare token symbol onto its home chain, for CLI
// input where no chain flag was given.
var defaultChains = map[string]types.Chain{
	"ZEC":  types.ChainZcash,
	"BTC":  types.ChainBitcoin,
	"ETH":  types.ChainEthereum,
	"SOL":  types.ChainSolana,
	"NEAR": types.ChainNear,
	"USDC": types.ChainEthereum,
	"USDT": types.ChainEthereum,
}

// DefaultChainFor returns the home chain for a token symbol.
func DefaultChainFor(symbol string) (types.Chain, bool) {
	c, ok := defaultChains[strings.ToUpper(symbol)]
	return c, ok
}

// ParseChain validates a user-supplied chain name.
func ParseChain(name string) (types.Chain, error) {
	c := types.Chain(strings.ToLower(strings.TrimSpace(name)))
	switch c {
	case types.ChainZcash, types.ChainBitcoin, types.ChainEthereum,
		types.ChainBase, types.ChainArbitrum, types.ChainSolana, types.ChainNear:
		return c, nil
	}
	return "", fmt.Errorf("unsupported chain: %s", name)
}

// Decimals returns the number of decimals for an asset, or an error if
// the pair is unknown.
func Decimals(asset types.ChainAsset) (int, error) {
	key := fmt.Sprintf("%s:%s", asset.Chain, strings.ToUpper(asset.Asset))
	d, ok := decimals[key]
	if !ok {
		return 0, fmt.Errorf("unknown decimals for %s", key)
	}
	return d, nil
}
