// Package address hands out fresh, never-reused addresses for deposits
// and shielding destinations. Reuse would let an observer correlate
// swaps, so the diversifier counter is persisted before any address is
// returned.
package address

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"zecswap/pkg/types"
	"zecswap/pkg/wallet"
)

const DefaultCounterFileName = ".zecswap-addresses.json"

// Allocator produces fresh addresses, delegating derivation to the
// wallet collaborator when one is registered. The per-kind diversifier
// index strictly increases by one per successful allocation and is
// persisted, so an index is never handed out twice even across process
// restarts.
type Allocator struct {
	wallet       wallet.Wallet // may be nil; see placeholder path
	filePath     string
	accountIndex uint32
	log          *logrus.Logger

	mu       sync.Mutex
	counters map[types.AddressKind]uint64
}

type counterPayload struct {
	Version  int                         `json:"version"`
	Counters map[types.AddressKind]uint64 `json:"counters"`
}

// NewAllocator opens the persisted counter file. The wallet may be nil,
// in which case allocation falls back to a placeholder path that is
// acceptable only for demos and tests.
func NewAllocator(filePath string, w wallet.Wallet, accountIndex uint32, log *logrus.Logger) (*Allocator, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultCounterFileName)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &Allocator{
		wallet:       w,
		filePath:     filePath,
		accountIndex: accountIndex,
		log:          log,
		counters:     make(map[types.AddressKind]uint64),
	}
	if err := a.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load address counters: %w", err)
		}
	}
	return a, nil
}

func (a *Allocator) load() error {
	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return err
	}

	var payload counterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal counters: %w", err)
	}
	if payload.Counters != nil {
		a.counters = payload.Counters
	}
	return nil
}

// saveLocked persists the counters. Callers hold a.mu.
func (a *Allocator) saveLocked() error {
	payload := counterPayload{Version: 1, Counters: a.counters}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(a.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tempFile := a.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write counters: %w", err)
	}
	if err := os.Rename(tempFile, a.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Allocate returns a fresh address of the given kind. The counter
// increment is persisted before the address is returned; a derivation
// failure leaves the counter untouched.
func (a *Allocator) Allocate(ctx context.Context, kind types.AddressKind, purpose string) (*types.FreshAddress, error) {
	if kind != types.AddressTransparent && kind != types.AddressShielded {
		return nil, fmt.Errorf("unknown address kind: %s", kind)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.counters[kind] + 1

	var addr string
	var err error
	if a.wallet != nil {
		addr, err = a.wallet.DeriveFreshAddress(ctx, kind, purpose)
		if err != nil {
			return nil, fmt.Errorf("wallet address derivation failed: %w", err)
		}
	} else {
		a.log.WithFields(logrus.Fields{
			"kind":    kind,
			"purpose": purpose,
		}).Warn("no wallet registered; generating placeholder address without privacy guarantees")
		addr = placeholderAddress(kind, next)
	}

	a.counters[kind] = next
	if err := a.saveLocked(); err != nil {
		// Undo so the index is not skipped on the next call.
		a.counters[kind] = next - 1
		return nil, fmt.Errorf("failed to persist address counter: %w", err)
	}

	return &types.FreshAddress{
		Address:          addr,
		Kind:             kind,
		AccountIndex:     a.accountIndex,
		DiversifierIndex: next,
		Used:             true,
		CreatedAt:        time.Now(),
	}, nil
}

// NextIndex returns the next diversifier index for a kind without
// consuming it.
func (a *Allocator) NextIndex(kind types.AddressKind) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[kind] + 1
}

// placeholderAddress derives an address-shaped string from the clock
// and the index. Not backed by a key; demo and test use only.
func placeholderAddress(kind types.AddressKind, index uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", kind, index, time.Now().UnixNano())))
	digest := hex.EncodeToString(sum[:])
	if kind == types.AddressShielded {
		return "zs1" + digest[:40]
	}
	return "t1" + digest[:33]
}
