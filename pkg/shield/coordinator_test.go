package shield

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zecswap/pkg/events"
	"zecswap/pkg/session"
	"zecswap/pkg/types"
	"zecswap/pkg/wallet"
)

type fakeWallet struct {
	mu     sync.Mutex
	calls  int
	handle wallet.TxHandle
	err    error
}

func (f *fakeWallet) DeriveFreshAddress(context.Context, types.AddressKind, string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeWallet) CreateShieldTransaction(_ context.Context, _, _ string, _ types.Amount) (wallet.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.handle, f.err
}

func (f *fakeWallet) CreateUnshieldTransaction(context.Context, types.Amount, string) (wallet.TxHandle, error) {
	return wallet.TxHandle{}, fmt.Errorf("not implemented")
}

func (f *fakeWallet) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// instant removes the privacy delay so tests run fast.
var instant = Config{MinDelay: 0, MaxDelay: 0, DustThreshold: 10000}

func TestShieldSuccess(t *testing.T) {
	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-1", Status: wallet.TxPending}}
	c := New(w, nil, nil, instant, quietLogger())

	result, err := c.Shield(context.Background(), "t1from", "zs1to", 50000)
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "op-1", result.Tx.TxID)
	assert.Equal(t, 1, w.callCount())
}

func TestShieldDustRejectedWithoutWalletCall(t *testing.T) {
	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-1", Status: wallet.TxPending}}
	c := New(w, nil, nil, instant, quietLogger())

	result, err := c.Shield(context.Background(), "t1from", "zs1to", 9999)
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Equal(t, wallet.TxFailed, result.Tx.Status)
	assert.Contains(t, result.Error, "dust")
	assert.Equal(t, 0, w.callCount())
}

func TestShieldWalletError(t *testing.T) {
	w := &fakeWallet{err: fmt.Errorf("node unreachable")}
	c := New(w, nil, nil, instant, quietLogger())

	result, err := c.Shield(context.Background(), "t1from", "zs1to", 50000)
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Error, "node unreachable")
}

func TestShieldDelayIsCancellable(t *testing.T) {
	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-1", Status: wallet.TxPending}}
	cfg := Config{MinDelay: time.Hour, MaxDelay: time.Hour, DustThreshold: 0}
	c := New(w, nil, nil, cfg, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Shield(ctx, "t1from", "zs1to", 50000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, w.callCount())
}

func shieldingSession(t *testing.T) (*session.SwapSession, session.Store) {
	t.Helper()

	route := types.SwapRoute{
		RouteID:           "r1",
		Provider:          "test",
		Source:            types.ChainAsset{Chain: types.ChainBitcoin, Asset: "BTC"},
		Destination:       types.ChainAsset{Chain: types.ChainZcash, Asset: "ZEC"},
		AmountIn:          1000000,
		ExpectedAmountOut: 980000,
	}
	sess := session.New(session.DirectionInbound, route)
	sess.FreshTransparentAddress = &types.FreshAddress{Address: "t1fresh", Kind: types.AddressTransparent}
	sess.FreshShieldedAddress = &types.FreshAddress{Address: "zs1fresh", Kind: types.AddressShielded}
	require.NoError(t, sess.ApplyStatus(session.StatusAwaitingDeposit))
	require.NoError(t, sess.ApplyStatus(session.StatusOutputConfirmed))
	require.NoError(t, sess.SetActualAmountOut(975000))

	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), sess))
	return sess, store
}

func TestShieldSessionCompletes(t *testing.T) {
	sess, store := shieldingSession(t)
	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-9", Status: wallet.TxPending}}
	bus := events.NewBus(quietLogger())

	var mu sync.Mutex
	var seen []events.Type
	bus.Subscribe(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
	})

	c := New(w, store, bus, instant, quietLogger())
	c.ShieldSession(context.Background(), sess)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
	assert.Equal(t, "op-9", got.Tracking.ShieldTxID)
	assert.NotNil(t, got.CompletedAt)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.Type{
		events.AutoShieldingStarted,
		events.AutoShieldComplete,
		events.SwapCompleted,
	}, seen)
}

func TestShieldSessionResumesFromAutoShielding(t *testing.T) {
	// A restart during the privacy delay leaves the session persisted
	// in auto_shielding; re-entering must still reach the wallet.
	sess, store := shieldingSession(t)
	require.NoError(t, sess.ApplyStatus(session.StatusAutoShielding))
	require.NoError(t, store.Update(context.Background(), sess))

	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-7", Status: wallet.TxPending}}
	c := New(w, store, nil, instant, quietLogger())
	c.ShieldSession(context.Background(), sess)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
	assert.Equal(t, "op-7", got.Tracking.ShieldTxID)
	assert.Equal(t, 1, w.callCount())
}

func TestShieldSessionFailsOnWalletError(t *testing.T) {
	sess, store := shieldingSession(t)
	w := &fakeWallet{err: fmt.Errorf("proving failed")}

	c := New(w, store, nil, instant, quietLogger())
	c.ShieldSession(context.Background(), sess)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "proving failed")
}

func TestShieldSessionUsesActualAmount(t *testing.T) {
	sess, store := shieldingSession(t)
	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-2", Status: wallet.TxConfirmed}}

	c := New(w, store, nil, instant, quietLogger())
	c.ShieldSession(context.Background(), sess)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
}

func TestShieldSessionDustFails(t *testing.T) {
	sess, store := shieldingSession(t)
	sess.ActualAmountOut = 100 // below threshold
	require.NoError(t, store.Update(context.Background(), sess))

	w := &fakeWallet{handle: wallet.TxHandle{TxID: "op-3", Status: wallet.TxPending}}
	c := New(w, store, nil, instant, quietLogger())
	c.ShieldSession(context.Background(), sess)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, got.Status)
	assert.Equal(t, 0, w.callCount())
}
