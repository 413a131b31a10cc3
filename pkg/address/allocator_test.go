package address

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zecswap/pkg/types"
	"zecswap/pkg/wallet"
)

type fakeWallet struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeWallet) DeriveFreshAddress(_ context.Context, kind types.AddressKind, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("wallet unavailable")
	}
	f.calls++
	return fmt.Sprintf("%s-addr-%d", kind, f.calls), nil
}

func (f *fakeWallet) CreateShieldTransaction(context.Context, string, string, types.Amount) (wallet.TxHandle, error) {
	return wallet.TxHandle{}, fmt.Errorf("not implemented")
}

func (f *fakeWallet) CreateUnshieldTransaction(context.Context, types.Amount, string) (wallet.TxHandle, error) {
	return wallet.TxHandle{}, fmt.Errorf("not implemented")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestAllocateIncrementsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, &fakeWallet{}, 0, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := alloc.Allocate(ctx, types.AddressTransparent, "test")
	require.NoError(t, err)
	second, err := alloc.Allocate(ctx, types.AddressTransparent, "test")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.DiversifierIndex)
	assert.Equal(t, uint64(2), second.DiversifierIndex)
	assert.NotEqual(t, first.Address, second.Address)
	assert.True(t, first.Used)
}

func TestIndexSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	ctx := context.Background()

	alloc, err := NewAllocator(path, &fakeWallet{}, 0, quietLogger())
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, types.AddressShielded, "test")
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, types.AddressShielded, "test")
	require.NoError(t, err)

	reopened, err := NewAllocator(path, &fakeWallet{}, 0, quietLogger())
	require.NoError(t, err)

	third, err := reopened.Allocate(ctx, types.AddressShielded, "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), third.DiversifierIndex)
}

func TestKindsCountIndependently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, &fakeWallet{}, 0, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	tAddr, err := alloc.Allocate(ctx, types.AddressTransparent, "test")
	require.NoError(t, err)
	zAddr, err := alloc.Allocate(ctx, types.AddressShielded, "test")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), tAddr.DiversifierIndex)
	assert.Equal(t, uint64(1), zAddr.DiversifierIndex)
}

func TestConcurrentAllocationsAreDistinct(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, &fakeWallet{}, 0, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	const n = 20
	results := make([]*types.FreshAddress, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := alloc.Allocate(ctx, types.AddressTransparent, "test")
			if assert.NoError(t, err) {
				results[i] = addr
			}
		}(i)
	}
	wg.Wait()

	seenIndex := make(map[uint64]bool, n)
	seenAddr := make(map[string]bool, n)
	for _, addr := range results {
		require.NotNil(t, addr)
		assert.False(t, seenIndex[addr.DiversifierIndex], "index %d reused", addr.DiversifierIndex)
		assert.False(t, seenAddr[addr.Address], "address %s reused", addr.Address)
		seenIndex[addr.DiversifierIndex] = true
		seenAddr[addr.Address] = true
	}
	assert.Equal(t, uint64(n+1), alloc.NextIndex(types.AddressTransparent))
}

func TestWalletFailureLeavesCounterUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, &fakeWallet{fail: true}, 0, quietLogger())
	require.NoError(t, err)

	_, err = alloc.Allocate(context.Background(), types.AddressTransparent, "test")
	require.Error(t, err)
	assert.Equal(t, uint64(1), alloc.NextIndex(types.AddressTransparent))
}

func TestPlaceholderPathWithoutWallet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, nil, 0, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	tAddr, err := alloc.Allocate(ctx, types.AddressTransparent, "test")
	require.NoError(t, err)
	assert.True(t, len(tAddr.Address) > 10)
	assert.Equal(t, "t1", tAddr.Address[:2])

	zAddr, err := alloc.Allocate(ctx, types.AddressShielded, "test")
	require.NoError(t, err)
	assert.Equal(t, "zs1", zAddr.Address[:3])
}

func TestAllocateRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	alloc, err := NewAllocator(path, nil, 0, quietLogger())
	require.NoError(t, err)

	_, err = alloc.Allocate(context.Background(), types.AddressKind("weird"), "test")
	assert.Error(t, err)
}
