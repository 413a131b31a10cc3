// Package wallet defines the contract the swap engine expects from the
// wallet it collaborates with. The engine never derives keys, signs, or
// proves anything itself; it only asks the wallet to do so.
package wallet

import (
	"context"

	"zecswap/pkg/types"
)

// TxStatus is the wallet's view of a submitted transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TxHandle references a transaction created by the wallet.
type TxHandle struct {
	TxID   string   `json:"txid"`
	Status TxStatus `json:"status"`
}

// Wallet is implemented by the wallet collaborator.
type Wallet interface {
	// DeriveFreshAddress returns a never-before-used address of the
	// given kind. The purpose string is a human-readable label.
	DeriveFreshAddress(ctx context.Context, kind types.AddressKind, purpose string) (string, error)

	// CreateShieldTransaction moves funds from a transparent address
	// into the shielded pool.
	CreateShieldTransaction(ctx context.Context, fromTransparent, toShielded string, amount types.Amount) (TxHandle, error)

	// CreateUnshieldTransaction moves shielded funds to a transparent
	// address.
	CreateUnshieldTransaction(ctx context.Context, amount types.Amount, toTransparent string) (TxHandle, error)
}
