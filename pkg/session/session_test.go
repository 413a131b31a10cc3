package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zecswap/pkg/types"
)

func testRoute() types.SwapRoute {
	return types.SwapRoute{
		RouteID:           "route-1",
		Provider:          "test-provider",
		Source:            types.ChainAsset{Chain: types.ChainBitcoin, Asset: "BTC"},
		Destination:       types.ChainAsset{Chain: types.ChainZcash, Asset: "ZEC"},
		AmountIn:          1000000,
		ExpectedAmountOut: 980000,
		Metadata:          map[string]string{"recipient": "t1abc"},
	}
}

func TestNewSession(t *testing.T) {
	sess := New(DirectionInbound, testRoute())

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StatusIdle, sess.Status)
	assert.Equal(t, DirectionInbound, sess.Direction)
	assert.Equal(t, "test-provider", sess.Tracking.Provider)
	assert.Equal(t, types.Amount(1000000), sess.AmountIn)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestStatusTransitionsForwardOnly(t *testing.T) {
	sess := New(DirectionInbound, testRoute())

	forward := []Status{
		StatusAwaitingDeposit,
		StatusDepositDetected,
		StatusDepositConfirmed,
		StatusSwapInProgress,
		StatusOutputPending,
		StatusOutputConfirmed,
		StatusAutoShielding,
		StatusCompleted,
	}
	for _, target := range forward {
		require.NoError(t, sess.ApplyStatus(target), "to %s", target)
	}

	// Terminal: nothing moves it again.
	assert.Error(t, sess.ApplyStatus(StatusFailed))
	assert.Error(t, sess.ApplyStatus(StatusAwaitingDeposit))
}

func TestStatusNoBackwardTransition(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))
	require.NoError(t, sess.ApplyStatus(StatusSwapInProgress))

	assert.Error(t, sess.ApplyStatus(StatusAwaitingDeposit))
	assert.Error(t, sess.ApplyStatus(StatusDepositConfirmed))
	assert.Error(t, sess.ApplyStatus(StatusSwapInProgress))
}

func TestAnyNonTerminalMayFail(t *testing.T) {
	for _, terminal := range []Status{StatusFailed, StatusRefunded, StatusExpired} {
		sess := New(DirectionInbound, testRoute())
		require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))
		require.NoError(t, sess.ApplyStatus(terminal))
		assert.True(t, sess.Status.Terminal())
		assert.NotNil(t, sess.FailedAt)
	}
}

func TestAutoShieldingInboundOnly(t *testing.T) {
	sess := New(DirectionOutbound, testRoute())
	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))
	require.NoError(t, sess.ApplyStatus(StatusOutputConfirmed))

	assert.Error(t, sess.ApplyStatus(StatusAutoShielding))
	// Outbound completes straight from output_confirmed.
	assert.NoError(t, sess.ApplyStatus(StatusCompleted))
}

func TestTimestampsStamped(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))

	require.NoError(t, sess.ApplyStatus(StatusDepositConfirmed))
	assert.NotNil(t, sess.DepositConfirmedAt)

	require.NoError(t, sess.ApplyStatus(StatusSwapInProgress))
	assert.NotNil(t, sess.SwapStartedAt)

	require.NoError(t, sess.ApplyStatus(StatusOutputConfirmed))
	assert.NotNil(t, sess.OutputConfirmedAt)

	require.NoError(t, sess.ApplyStatus(StatusAutoShielding))
	assert.NotNil(t, sess.ShieldingStartedAt)

	require.NoError(t, sess.ApplyStatus(StatusCompleted))
	assert.NotNil(t, sess.CompletedAt)
}

func TestSetActualAmountOut(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))

	assert.Error(t, sess.SetActualAmountOut(950000))

	require.NoError(t, sess.ApplyStatus(StatusOutputConfirmed))
	require.NoError(t, sess.SetActualAmountOut(950000))
	assert.Equal(t, types.Amount(950000), sess.ActualAmountOut)
}

func TestSetActualAmountOutRejectedAfterFailure(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))
	require.NoError(t, sess.ApplyStatus(StatusFailed))

	assert.Error(t, sess.SetActualAmountOut(950000))
	assert.Zero(t, sess.ActualAmountOut)
}

func TestCancelable(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	assert.False(t, sess.Cancelable())

	require.NoError(t, sess.ApplyStatus(StatusAwaitingDeposit))
	assert.True(t, sess.Cancelable())

	require.NoError(t, sess.ApplyStatus(StatusDepositDetected))
	assert.True(t, sess.Cancelable())

	require.NoError(t, sess.ApplyStatus(StatusSwapInProgress))
	assert.False(t, sess.Cancelable())
}

func TestClone(t *testing.T) {
	sess := New(DirectionInbound, testRoute())
	sess.FreshTransparentAddress = &types.FreshAddress{Address: "t1abc", Kind: types.AddressTransparent}

	clone := sess.Clone()
	clone.FreshTransparentAddress.Address = "t1xyz"
	clone.Route.Metadata["recipient"] = "changed"
	clone.Status = StatusFailed

	assert.Equal(t, "t1abc", sess.FreshTransparentAddress.Address)
	assert.Equal(t, "t1abc", sess.Route.Metadata["recipient"])
	assert.Equal(t, StatusIdle, sess.Status)
}
