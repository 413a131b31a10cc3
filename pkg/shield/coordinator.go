// Package shield converts confirmed transparent deposits into shielded
// balance. The shielding transaction is deliberately decoupled from the
// deposit by a randomized delay so the two cannot be correlated by
// timing.
package shield

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"zecswap/pkg/events"
	"zecswap/pkg/session"
	"zecswap/pkg/types"
	"zecswap/pkg/wallet"
)

// Config tunes the coordinator's privacy and dust policy.
type Config struct {
	// MinDelay and MaxDelay bound the uniform random wait applied
	// before shielding.
	MinDelay time.Duration
	MaxDelay time.Duration
	// DustThreshold is the smallest amount worth shielding; anything
	// below it fails without a wallet call.
	DustThreshold types.Amount
}

// DefaultConfig waits between 30s and 5m and refuses amounts below
// 10000 zatoshi (0.0001 ZEC).
func DefaultConfig() Config {
	return Config{
		MinDelay:      30 * time.Second,
		MaxDelay:      5 * time.Minute,
		DustThreshold: 10000,
	}
}

// Result reports one shielding attempt.
type Result struct {
	FromTransparent string          `json:"from_transparent"`
	ToShielded      string          `json:"to_shielded"`
	Amount          types.Amount    `json:"amount"`
	Tx              wallet.TxHandle `json:"tx"`
	Error           string          `json:"error,omitempty"`
}

// Succeeded reports whether the shielding transaction was accepted.
// A pending wallet handle counts: the wallet owns confirmation.
func (r *Result) Succeeded() bool {
	return r.Error == "" && (r.Tx.Status == wallet.TxPending || r.Tx.Status == wallet.TxConfirmed)
}

// Coordinator performs auto-shielding.
type Coordinator struct {
	wallet wallet.Wallet
	store  session.Store
	bus    *events.Bus
	cfg    Config
	log    *logrus.Logger
}

// New creates an auto-shield coordinator.
func New(w wallet.Wallet, store session.Store, bus *events.Bus, cfg Config, log *logrus.Logger) *Coordinator {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{wallet: w, store: store, bus: bus, cfg: cfg, log: log}
}

// Shield waits out the privacy delay, then asks the wallet to shield
// the amount. Dust is rejected before any wallet call.
func (c *Coordinator) Shield(ctx context.Context, fromTransparent, toShielded string, amount types.Amount) (*Result, error) {
	result := &Result{
		FromTransparent: fromTransparent,
		ToShielded:      toShielded,
		Amount:          amount,
	}

	if amount < c.cfg.DustThreshold {
		result.Tx.Status = wallet.TxFailed
		result.Error = fmt.Sprintf("amount %s is below the dust threshold %s", amount, c.cfg.DustThreshold)
		return result, nil
	}
	if c.wallet == nil {
		result.Tx.Status = wallet.TxFailed
		result.Error = "no wallet registered"
		return result, nil
	}

	if err := c.privacyDelay(ctx); err != nil {
		result.Tx.Status = wallet.TxFailed
		result.Error = err.Error()
		return result, err
	}

	tx, err := c.wallet.CreateShieldTransaction(ctx, fromTransparent, toShielded, amount)
	result.Tx = tx
	if err != nil {
		result.Tx.Status = wallet.TxFailed
		result.Error = err.Error()
		return result, nil
	}
	if tx.Status != wallet.TxPending && tx.Status != wallet.TxConfirmed {
		result.Error = fmt.Sprintf("wallet reported transaction status %s", tx.Status)
	}
	return result, nil
}

// ShieldSession drives an inbound session through the
// auto_shielding -> completed|failed edge.
func (c *Coordinator) ShieldSession(ctx context.Context, sess *session.SwapSession) {
	log := c.log.WithField("session_id", sess.ID)

	if sess.FreshTransparentAddress == nil || sess.FreshShieldedAddress == nil {
		log.Error("session is missing fresh addresses, cannot shield")
		c.finish(ctx, sess, session.StatusFailed, "missing fresh addresses for shielding", log)
		return
	}

	// A session restarted mid-delay is already in auto_shielding; the
	// self-transition is rejected, so only advance when entering fresh.
	if sess.Status != session.StatusAutoShielding {
		if err := sess.ApplyStatus(session.StatusAutoShielding); err != nil {
			log.WithError(err).Warn("cannot start auto-shielding")
			return
		}
		if err := c.store.Update(ctx, sess); err != nil {
			log.WithError(err).Warn("failed to persist shielding start")
			return
		}
		c.publish(events.AutoShieldingStarted, sess, "")
	}

	amount := sess.ActualAmountOut
	if amount.IsZero() {
		amount = sess.ExpectedAmountOut
	}

	result, err := c.Shield(ctx, sess.FreshTransparentAddress.Address, sess.FreshShieldedAddress.Address, amount)
	if err != nil {
		// Context cancellation mid-delay; the session stays in
		// auto_shielding and is retried on resume.
		log.WithError(err).Warn("auto-shielding interrupted")
		return
	}

	if !result.Succeeded() {
		log.WithField("error", result.Error).Error("auto-shielding failed")
		c.finish(ctx, sess, session.StatusFailed, result.Error, log)
		return
	}

	sess.Tracking.ShieldTxID = result.Tx.TxID
	c.publish(events.AutoShieldComplete, sess, result.Tx.TxID)
	c.finish(ctx, sess, session.StatusCompleted, "", log)
}

func (c *Coordinator) finish(ctx context.Context, sess *session.SwapSession, target session.Status, reason string, log *logrus.Entry) {
	sess.Error = reason
	if err := sess.ApplyStatus(target); err != nil {
		log.WithError(err).Warn("rejected terminal transition")
		return
	}
	if err := c.store.Update(ctx, sess); err != nil {
		log.WithError(err).Warn("failed to persist terminal state")
		return
	}

	if target == session.StatusCompleted {
		log.Info("swap completed")
		c.publish(events.SwapCompleted, sess, "")
	} else {
		log.WithField("reason", reason).Error("swap failed")
		c.publish(events.SwapFailed, sess, reason)
	}
}

// privacyDelay sleeps a uniform random duration in [MinDelay, MaxDelay].
func (c *Coordinator) privacyDelay(ctx context.Context) error {
	delay := c.cfg.MinDelay
	if span := c.cfg.MaxDelay - c.cfg.MinDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (c *Coordinator) publish(t events.Type, sess *session.SwapSession, message string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Type:      t,
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Message:   message,
	})
}
