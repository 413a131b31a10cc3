package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"zecswap/pkg/types"
)

const zecDecimals = 8

// ZcashdConfig configures the zcash-cli backed wallet.
type ZcashdConfig struct {
	CLIPath string   // path to zcash-cli, defaults to "zcash-cli"
	CLIArgs []string // extra args, e.g. -testnet or -rpcconnect
	// ShieldedSource is the shielded address unshield transactions
	// spend from. Required for CreateUnshieldTransaction.
	ShieldedSource string
}

// ZcashdWallet implements Wallet by shelling out to a zcashd node's
// zcash-cli. The node's own wallet performs all key handling and
// proving; this type only issues RPC commands.
type ZcashdWallet struct {
	config ZcashdConfig
}

// NewZcashdWallet creates a zcash-cli backed wallet.
func NewZcashdWallet(cfg ZcashdConfig) *ZcashdWallet {
	if cfg.CLIPath == "" {
		cfg.CLIPath = "zcash-cli"
	}
	return &ZcashdWallet{config: cfg}
}

// Ping verifies zcash-cli is reachable and the node is responding.
func (w *ZcashdWallet) Ping(ctx context.Context) error {
	out, err := w.run(ctx, "getblockchaininfo")
	if err != nil {
		return fmt.Errorf("zcash-cli not accessible: %w", err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal(out, &info); err != nil {
		return fmt.Errorf("invalid zcash-cli response: %w", err)
	}
	return nil
}

// DeriveFreshAddress asks the node wallet for a new address. zcashd
// never hands out the same address twice from these calls.
func (w *ZcashdWallet) DeriveFreshAddress(ctx context.Context, kind types.AddressKind, purpose string) (string, error) {
	var out []byte
	var err error

	switch kind {
	case types.AddressTransparent:
		out, err = w.run(ctx, "getnewaddress")
	case types.AddressShielded:
		out, err = w.run(ctx, "z_getnewaddress", "sapling")
	default:
		return "", fmt.Errorf("unknown address kind: %s", kind)
	}
	if err != nil {
		return "", fmt.Errorf("address derivation failed (%s): %w", purpose, err)
	}

	addr := strings.TrimSpace(string(out))
	if addr == "" {
		return "", fmt.Errorf("empty address returned for %s", kind)
	}
	return addr, nil
}

// CreateShieldTransaction shields funds from a transparent address via
// z_sendmany. The returned operation id is reported as a pending
// handle; zcashd confirms asynchronously.
func (w *ZcashdWallet) CreateShieldTransaction(ctx context.Context, fromTransparent, toShielded string, amount types.Amount) (TxHandle, error) {
	return w.sendMany(ctx, fromTransparent, toShielded, amount)
}

// CreateUnshieldTransaction spends from the configured shielded source
// to a transparent address.
func (w *ZcashdWallet) CreateUnshieldTransaction(ctx context.Context, amount types.Amount, toTransparent string) (TxHandle, error) {
	if w.config.ShieldedSource == "" {
		return TxHandle{}, fmt.Errorf("no shielded source address configured")
	}
	return w.sendMany(ctx, w.config.ShieldedSource, toTransparent, amount)
}

func (w *ZcashdWallet) sendMany(ctx context.Context, from, to string, amount types.Amount) (TxHandle, error) {
	if amount.IsZero() {
		return TxHandle{}, fmt.Errorf("amount must be greater than 0")
	}

	recipients, err := json.Marshal([]map[string]interface{}{
		{"address": to, "amount": json.RawMessage(types.FormatAmount(amount, zecDecimals))},
	})
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to encode recipients: %w", err)
	}

	out, err := w.run(ctx, "z_sendmany", from, string(recipients), "1")
	if err != nil {
		return TxHandle{TxID: "", Status: TxFailed}, fmt.Errorf("z_sendmany failed: %w", err)
	}

	opid := strings.TrimSpace(string(out))
	if opid == "" {
		return TxHandle{Status: TxFailed}, fmt.Errorf("empty operation id returned")
	}
	return TxHandle{TxID: opid, Status: TxPending}, nil
}

func (w *ZcashdWallet) run(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(w.config.CLIArgs)+len(args))
	full = append(full, w.config.CLIArgs...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, w.config.CLIPath, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("zcash-cli %s failed: %w\nOutput: %s", args[0], err, string(output))
	}
	return output, nil
}
