// Package monitor runs one background polling loop per active session,
// asking the owning provider for status and advancing the session state
// machine until it reaches a terminal state or the poll budget runs out.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"zecswap/pkg/events"
	"zecswap/pkg/provider"
	"zecswap/pkg/session"
)

// Config bounds the polling loop.
type Config struct {
	// InitialDelay before the first poll; providers are not
	// instantaneous after execution.
	InitialDelay time.Duration
	// PollInterval between polls.
	PollInterval time.Duration
	// MaxPolls before the session is forced to failed.
	MaxPolls int
}

// DefaultConfig polls every 30s for up to 60 polls (~30 minutes) after
// an initial 5s delay.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 5 * time.Second,
		PollInterval: 30 * time.Second,
		MaxPolls:     60,
	}
}

// Shielder converts a confirmed inbound deposit into shielded balance.
// Implemented by the auto-shield coordinator.
type Shielder interface {
	ShieldSession(ctx context.Context, sess *session.SwapSession)
}

// Monitor owns the polling loops. Watch is idempotent per session, so
// there is never more than one loop per session and status updates for
// one session are strictly ordered.
type Monitor struct {
	store     session.Store
	providers map[string]provider.Provider
	shielder  Shielder
	bus       *events.Bus
	cfg       Config
	log       *logrus.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a settlement monitor.
func New(store session.Store, providers map[string]provider.Provider, shielder Shielder, bus *events.Bus, cfg Config, log *logrus.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Monitor{
		store:     store,
		providers: providers,
		shielder:  shielder,
		bus:       bus,
		cfg:       cfg,
		log:       log,
		active:    make(map[string]context.CancelFunc),
	}
}

// Watch starts a polling loop for the session. Calling it again while
// the loop is alive is a no-op.
func (m *Monitor) Watch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.active[sessionID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.active[sessionID] = cancel
	go m.loop(ctx, sessionID)
}

// Cancel stops the session's loop if one is running.
func (m *Monitor) Cancel(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cancel, running := m.active[sessionID]; running {
		cancel()
		delete(m.active, sessionID)
	}
}

// Watching reports whether a loop is running for the session.
func (m *Monitor) Watching(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, running := m.active[sessionID]
	return running
}

// Resume re-arms a loop for every non-terminal session. Called once at
// startup so sessions survive process restarts without explicit drain.
func (m *Monitor) Resume(ctx context.Context) error {
	sessions, err := m.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}
	for _, s := range sessions {
		// Outbound sessions still waiting for their unshield have no
		// provider swap yet; they resume when the user continues them.
		if s.Tracking.ProviderSwapID == "" {
			continue
		}
		m.Watch(s.ID)
	}
	return nil
}

// Stop cancels every loop. Used on shutdown; sessions resume from the
// store on the next start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.active {
		cancel()
		delete(m.active, id)
	}
}

func (m *Monitor) remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, running := m.active[sessionID]; running {
		cancel()
		delete(m.active, sessionID)
	}
}

func (m *Monitor) loop(ctx context.Context, sessionID string) {
	defer m.remove(sessionID)

	log := m.log.WithField("session_id", sessionID)
	log.Debug("settlement monitor started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.InitialDelay):
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; polls < m.cfg.MaxPolls; polls++ {
		done := m.poll(ctx, sessionID, log)
		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	m.forceTimeout(sessionID, log)
}

// poll performs one status check. It returns true when the loop should
// stop: session gone, terminal state reached, or handed to shielding.
func (m *Monitor) poll(ctx context.Context, sessionID string, log *logrus.Entry) bool {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			log.Info("session deleted, stopping monitor")
			return true
		}
		log.WithError(err).Warn("failed to load session, will retry")
		return false
	}
	if sess.Status.Terminal() {
		return true
	}

	prov, ok := m.providers[sess.Tracking.Provider]
	if !ok {
		log.WithField("provider", sess.Tracking.Provider).Error("session references unknown provider")
		m.failSession(sess, fmt.Sprintf("unknown provider %q", sess.Tracking.Provider), log)
		return true
	}

	detail, err := prov.PollStatus(ctx, sess.Tracking.ProviderSwapID)
	if err != nil {
		// A single poll failing is routine; the next tick retries.
		log.WithError(err).Warn("status poll failed")
		return false
	}

	return m.apply(sess, detail, log)
}

// apply maps the provider's status onto the session state machine and
// persists any forward movement.
func (m *Monitor) apply(sess *session.SwapSession, detail *provider.StatusDetail, log *logrus.Entry) bool {
	target := mapProviderStatus(detail.Status)
	if target == "" {
		// Unknown provider vocabulary; keep the current state.
		return false
	}

	if detail.DestinationTxHash != "" {
		sess.Tracking.DestinationTxHash = detail.DestinationTxHash
	}

	switch target {
	case session.StatusOutputConfirmed:
		return m.settle(sess, detail, log)
	case session.StatusFailed:
		sess.Error = detail.Message
		return m.advance(sess, session.StatusFailed, events.SwapFailed, log)
	case session.StatusRefunded:
		sess.Error = detail.Message
		return m.advance(sess, session.StatusRefunded, events.SwapStatusUpdated, log)
	default:
		if sess.Status.CanTransition(target) {
			m.advance(sess, target, events.SwapStatusUpdated, log)
		}
		return false
	}
}

// settle handles provider-confirmed output: outbound sessions complete,
// inbound sessions hand off to the auto-shield coordinator and this
// loop ends (shielding owns the rest of the lifecycle).
func (m *Monitor) settle(sess *session.SwapSession, detail *provider.StatusDetail, log *logrus.Entry) bool {
	if sess.Status.CanTransition(session.StatusOutputConfirmed) {
		if err := sess.ApplyStatus(session.StatusOutputConfirmed); err != nil {
			log.WithError(err).Warn("could not confirm output")
			return false
		}
	}

	out := detail.ActualAmountOut
	if out.IsZero() {
		out = sess.ExpectedAmountOut
	}
	if err := sess.SetActualAmountOut(out); err != nil {
		log.WithError(err).Warn("could not record settled output")
	}

	if sess.Direction == session.DirectionInbound {
		if err := m.store.Update(context.Background(), sess); err != nil {
			log.WithError(err).Warn("failed to persist output confirmation")
			return m.stoppedByTerminal(err)
		}
		m.publish(events.SwapStatusUpdated, sess, "")
		go m.shielder.ShieldSession(context.Background(), sess)
		return true
	}

	return m.advance(sess, session.StatusCompleted, events.SwapCompleted, log)
}

// advance applies a transition, persists it, and publishes the event.
// Returns true when the session ended up terminal (or is already owned
// by someone else's terminal write).
func (m *Monitor) advance(sess *session.SwapSession, target session.Status, evType events.Type, log *logrus.Entry) bool {
	if err := sess.ApplyStatus(target); err != nil {
		log.WithError(err).Warn("rejected state transition")
		return false
	}
	if err := m.store.Update(context.Background(), sess); err != nil {
		log.WithError(err).Warn("failed to persist session update")
		return m.stoppedByTerminal(err)
	}

	log.WithField("status", string(sess.Status)).Info("session status updated")
	m.publish(evType, sess, sess.Error)
	return sess.Status.Terminal()
}

// failSession forces a session to failed with a reason.
func (m *Monitor) failSession(sess *session.SwapSession, reason string, log *logrus.Entry) {
	sess.Error = reason
	m.advance(sess, session.StatusFailed, events.SwapFailed, log)
}

// stoppedByTerminal distinguishes "session was cancelled underneath
// us" (stop) from a transient persistence failure (retry).
func (m *Monitor) stoppedByTerminal(err error) bool {
	return errors.Is(err, session.ErrSessionTerminal) || errors.Is(err, session.ErrSessionNotFound)
}

// forceTimeout marks the session failed after the poll budget runs out.
func (m *Monitor) forceTimeout(sessionID string, log *logrus.Entry) {
	sess, err := m.store.Get(context.Background(), sessionID)
	if err != nil || sess.Status.Terminal() {
		return
	}

	sess.Error = fmt.Sprintf("settlement polling timed out after %d polls", m.cfg.MaxPolls)
	if err := sess.ApplyStatus(session.StatusFailed); err != nil {
		log.WithError(err).Warn("could not fail timed-out session")
		return
	}
	if err := m.store.Update(context.Background(), sess); err != nil {
		log.WithError(err).Warn("failed to persist timeout")
		return
	}

	log.WithField("max_polls", m.cfg.MaxPolls).Error("settlement monitoring timed out")
	m.publish(events.SwapFailed, sess, sess.Error)
}

func (m *Monitor) publish(t events.Type, sess *session.SwapSession, message string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Type:      t,
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Message:   message,
	})
}

// mapProviderStatus translates the provider vocabulary onto session
// states. Unknown maps to empty: keep the current state.
func mapProviderStatus(s provider.Status) session.Status {
	switch s {
	case provider.StatusAwaitingDeposit:
		return session.StatusAwaitingDeposit
	case provider.StatusDepositDetected:
		return session.StatusDepositDetected
	case provider.StatusDepositConfirmed:
		return session.StatusDepositConfirmed
	case provider.StatusSwapInProgress:
		return session.StatusSwapInProgress
	case provider.StatusOutputPending:
		return session.StatusOutputPending
	case provider.StatusOutputConfirmed:
		return session.StatusOutputConfirmed
	case provider.StatusRefunded:
		return session.StatusRefunded
	case provider.StatusFailed:
		return session.StatusFailed
	default:
		return ""
	}
}
