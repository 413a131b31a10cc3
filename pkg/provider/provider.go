// Package provider defines the contract every quote/execution source
// must satisfy. Each adapter translates its own wire protocol (REST,
// generated SDK) into this contract; the aggregator and the settlement
// monitor only ever see this interface.
package provider

import (
	"context"

	"zecswap/pkg/types"
)

// Route metadata keys every adapter honors. The swap service rewrites
// the recipient on a quoted route before executing it, so the keys must
// be shared rather than private to each adapter.
const (
	MetaRecipient = "recipient"
	MetaRefundTo  = "refund_to"
)

// Status is a provider's report on a swap, already normalized into the
// engine's vocabulary. Adapters own the mapping from their wire enums.
type Status string

const (
	StatusAwaitingDeposit  Status = "awaiting_deposit"
	StatusDepositDetected  Status = "deposit_detected"
	StatusDepositConfirmed Status = "deposit_confirmed"
	StatusSwapInProgress   Status = "swap_in_progress"
	StatusOutputPending    Status = "output_pending"
	StatusOutputConfirmed  Status = "output_confirmed"
	StatusRefunded         Status = "refunded"
	StatusFailed           Status = "failed"
	StatusUnknown          Status = "unknown"
)

// Terminal reports whether the provider considers the swap finished.
func (s Status) Terminal() bool {
	return s == StatusOutputConfirmed || s == StatusRefunded || s == StatusFailed
}

// StatusDetail is the result of one status poll.
type StatusDetail struct {
	Status            Status
	ActualAmountOut   types.Amount // set when the provider reports settled output
	DestinationTxHash string
	Message           string
}

// ExecutionHandle is what a provider returns when a swap is started.
type ExecutionHandle struct {
	ProviderSwapID string
	DepositAddress string
	DepositMemo    string
	TrackingURL    string
}

// Provider is one external liquidity/resolver source.
type Provider interface {
	// Name returns the provider's stable identifier.
	Name() string

	// Quote prices the request. A provider may return zero or more
	// routes; an error fails only this provider, never the aggregate.
	Quote(ctx context.Context, req *types.SwapQuoteRequest) ([]types.SwapRoute, error)

	// Execute starts a swap for a previously quoted route.
	Execute(ctx context.Context, route *types.SwapRoute) (*ExecutionHandle, error)

	// PollStatus reports the provider's current view of a swap.
	PollStatus(ctx context.Context, providerSwapID string) (*StatusDetail, error)
}

// DepositSubmitter is implemented by providers that accept the source
// chain deposit transaction hash to speed up detection.
type DepositSubmitter interface {
	SubmitDepositTx(ctx context.Context, providerSwapID, txHash string) error
}
