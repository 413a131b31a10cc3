package types

import (
	"fmt"
	"time"
)

// Chain identifies a blockchain.
type Chain string

const (
	ChainZcash    Chain = "zcash"
	ChainBitcoin  Chain = "bitcoin"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainSolana   Chain = "solana"
	ChainNear     Chain = "near"
)

// ChainAsset identifies a token on a chain. For native assets
// ContractAddress is empty.
type ChainAsset struct {
	Chain           Chain  `json:"chain"`
	Asset           string `json:"asset"`
	ContractAddress string `json:"contract_address,omitempty"`
}

func (c ChainAsset) String() string {
	return fmt.Sprintf("%s:%s", c.Chain, c.Asset)
}

// Equal reports whether two assets identify the same token.
func (c ChainAsset) Equal(other ChainAsset) bool {
	return c.Chain == other.Chain && c.Asset == other.Asset && c.ContractAddress == other.ContractAddress
}

// SwapQuoteRequest is the input to quoting. It is never persisted.
type SwapQuoteRequest struct {
	Source             ChainAsset `json:"source"`
	Destination        ChainAsset `json:"destination"`
	AmountIn           Amount     `json:"amount_in"`
	SourceAddress      string     `json:"source_address"`
	DestinationAddress string     `json:"destination_address"`
	SlippageTolerance  float64    `json:"slippage_tolerance"`
	Providers          []string   `json:"providers,omitempty"` // optional allowlist
}

// Validate checks the request before any provider is contacted.
func (r *SwapQuoteRequest) Validate() error {
	if r.AmountIn.IsZero() {
		return fmt.Errorf("amount in must be greater than 0")
	}
	if r.Source.Asset == "" || r.Source.Chain == "" {
		return fmt.Errorf("source asset is required")
	}
	if r.Destination.Asset == "" || r.Destination.Chain == "" {
		return fmt.Errorf("destination asset is required")
	}
	if r.Source.Equal(r.Destination) {
		return fmt.Errorf("source and destination assets must differ")
	}
	if r.SlippageTolerance < 0 || r.SlippageTolerance >= 1 {
		return fmt.Errorf("slippage tolerance must be in [0, 1), got %v", r.SlippageTolerance)
	}
	return nil
}

// AllowsProvider reports whether the request's provider allowlist
// permits the named provider. An empty allowlist permits everyone.
func (r *SwapQuoteRequest) AllowsProvider(name string) bool {
	if len(r.Providers) == 0 {
		return true
	}
	for _, p := range r.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// FeeBreakdown itemizes the fees baked into a route. All amounts are in
// the source asset's smallest unit.
type FeeBreakdown struct {
	Protocol  Amount  `json:"protocol"`
	Network   Amount  `json:"network"`
	Affiliate Amount  `json:"affiliate"`
	Total     Amount  `json:"total"`
	Percent   float64 `json:"percent"`
}

// RouteHop is one leg of a route.
type RouteHop struct {
	From     ChainAsset `json:"from"`
	To       ChainAsset `json:"to"`
	Protocol string     `json:"protocol"`
	PoolID   string     `json:"pool_id,omitempty"`
	Rate     float64    `json:"rate"`
}

// SwapRoute is a priced route returned by a provider. It is immutable
// once returned; callers must re-quote after ExpiresAt.
type SwapRoute struct {
	RouteID              string            `json:"route_id"`
	Provider             string            `json:"provider"`
	Source               ChainAsset        `json:"source"`
	Destination          ChainAsset        `json:"destination"`
	AmountIn             Amount            `json:"amount_in"`
	ExpectedAmountOut    Amount            `json:"expected_amount_out"`
	MinimumAmountOut     Amount            `json:"minimum_amount_out"`
	Fees                 FeeBreakdown      `json:"fees"`
	Hops                 []RouteHop        `json:"hops,omitempty"`
	EstimatedTimeSeconds int64             `json:"estimated_time_seconds"`
	ExpiresAt            int64             `json:"expires_at"` // unix seconds
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy whose metadata can be mutated without
// touching the quoted original. The metadata map is always non-nil on
// the copy.
func (r *SwapRoute) Clone() *SwapRoute {
	c := *r
	c.Hops = append([]RouteHop(nil), r.Hops...)
	c.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// Expired reports whether the route's quote deadline has passed.
func (r *SwapRoute) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// ApplySlippage returns the minimum acceptable output for an expected
// output under the given slippage tolerance.
func ApplySlippage(expected Amount, tolerance float64) Amount {
	if tolerance <= 0 {
		return expected
	}
	cut := uint64(float64(expected) * tolerance)
	if cut > uint64(expected) {
		return 0
	}
	return expected - Amount(cut)
}

// AddressKind distinguishes transparent deposit addresses from shielded
// destinations.
type AddressKind string

const (
	AddressTransparent AddressKind = "transparent"
	AddressShielded    AddressKind = "shielded"
)

// FreshAddress is an address allocated for exactly one use. Once handed
// out it is marked consumed and is never returned again, even across
// process restarts.
type FreshAddress struct {
	Address          string      `json:"address"`
	Kind             AddressKind `json:"kind"`
	AccountIndex     uint32      `json:"account_index"`
	DiversifierIndex uint64      `json:"diversifier_index"`
	Used             bool        `json:"used"`
	CreatedAt        time.Time   `json:"created_at"`
}
