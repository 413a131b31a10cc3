// Package swap is the engine's facade. It owns the order of operations
// for starting, continuing, and cancelling swaps; everything below it
// (quoting, providers, sessions, monitoring, shielding) is wired in as
// a collaborator.
package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zecswap/pkg/address"
	"zecswap/pkg/chains"
	"zecswap/pkg/events"
	"zecswap/pkg/monitor"
	"zecswap/pkg/provider"
	"zecswap/pkg/quote"
	"zecswap/pkg/session"
	"zecswap/pkg/types"
)

// Config bounds what the service will execute.
type Config struct {
	// MinAmountIn rejects swaps too small to survive fees. Zero
	// disables the check.
	MinAmountIn types.Amount
}

// Deps are the service's collaborators.
type Deps struct {
	Aggregator *quote.Aggregator
	Providers  map[string]provider.Provider
	Store      session.Store
	Allocator  *address.Allocator
	Monitor    *monitor.Monitor
	Bus        *events.Bus
	Config     Config
	Log        *logrus.Logger
}

// Service orchestrates swaps into and out of the shielded pool.
type Service struct {
	aggregator *quote.Aggregator
	providers  map[string]provider.Provider
	store      session.Store
	allocator  *address.Allocator
	monitor    *monitor.Monitor
	bus        *events.Bus
	cfg        Config
	log        *logrus.Logger
}

// NewService wires the facade.
func NewService(deps Deps) (*Service, error) {
	if deps.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Allocator == nil {
		return nil, fmt.Errorf("address allocator is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("settlement monitor is required")
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Service{
		aggregator: deps.Aggregator,
		providers:  deps.Providers,
		store:      deps.Store,
		allocator:  deps.Allocator,
		monitor:    deps.Monitor,
		bus:        deps.Bus,
		cfg:        deps.Config,
		log:        deps.Log,
	}, nil
}

// GetQuotes fans the request out to every enabled provider and returns
// the ranked result.
func (s *Service) GetQuotes(ctx context.Context, req *types.SwapQuoteRequest) (*quote.Result, error) {
	result, err := s.aggregator.GetQuotes(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.Event{
		Type:    events.QuoteFetched,
		Message: fmt.Sprintf("%d routes from %d providers", len(result.Routes), len(s.providers)),
	})
	return result, nil
}

// ExecuteSwapToShieldedZec starts an inbound swap: a foreign asset is
// sent to the provider, lands on a fresh transparent address, and is
// auto-shielded. The quoted route's recipient is replaced with the
// fresh address; the user's own address is only used for refunds.
func (s *Service) ExecuteSwapToShieldedZec(ctx context.Context, route *types.SwapRoute, sourceAddress string) (*session.SwapSession, error) {
	if err := s.validateRoute(route); err != nil {
		return nil, err
	}
	if route.Destination.Chain != types.ChainZcash {
		return nil, fmt.Errorf("inbound swaps must settle on zcash, route settles on %s", route.Destination.Chain)
	}
	if sourceAddress != "" {
		if err := chains.ValidateAddress(route.Source.Chain, sourceAddress); err != nil {
			return nil, fmt.Errorf("invalid refund address: %w", err)
		}
	}

	prov, err := s.providerFor(route)
	if err != nil {
		return nil, err
	}

	transparent, err := s.allocator.Allocate(ctx, types.AddressTransparent, "swap deposit")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate transparent address: %w", err)
	}
	shielded, err := s.allocator.Allocate(ctx, types.AddressShielded, "auto-shield destination")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate shielded address: %w", err)
	}

	// The provider pays out to the fresh transparent address, never to
	// an address the user has shown anyone else.
	exec := route.Clone()
	exec.Metadata[provider.MetaRecipient] = transparent.Address
	if sourceAddress != "" {
		exec.Metadata[provider.MetaRefundTo] = sourceAddress
	}

	handle, err := prov.Execute(ctx, exec)
	if err != nil {
		// No session exists for a failed execution.
		return nil, fmt.Errorf("provider %s failed to start swap: %w", prov.Name(), err)
	}

	sess := session.New(session.DirectionInbound, *exec)
	sess.FreshTransparentAddress = transparent
	sess.FreshShieldedAddress = shielded
	sess.Tracking.ProviderSwapID = handle.ProviderSwapID
	sess.Tracking.DepositAddress = handle.DepositAddress
	sess.Tracking.DepositMemo = handle.DepositMemo
	sess.Tracking.TrackingURL = handle.TrackingURL
	if err := sess.ApplyStatus(session.StatusAwaitingDeposit); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.monitor.Watch(sess.ID)
	s.publishSession(events.SwapInitiated, sess, "")
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"provider":   prov.Name(),
		"deposit":    handle.DepositAddress,
	}).Info("inbound swap started")

	return sess.Clone(), nil
}

// ExecuteSwapFromShieldedZec starts an outbound swap. No provider call
// happens here: the session records where the unshielded funds must
// go, and the swap is executed once the user reports the unshield
// transaction via ContinueOutboundSwap.
func (s *Service) ExecuteSwapFromShieldedZec(ctx context.Context, route *types.SwapRoute, destinationAddress string) (*session.SwapSession, error) {
	if err := s.validateRoute(route); err != nil {
		return nil, err
	}
	if route.Source.Chain != types.ChainZcash {
		return nil, fmt.Errorf("outbound swaps must originate on zcash, route originates on %s", route.Source.Chain)
	}
	if destinationAddress == "" {
		return nil, fmt.Errorf("destination address is required")
	}
	if err := chains.ValidateAddress(route.Destination.Chain, destinationAddress); err != nil {
		return nil, fmt.Errorf("invalid destination address: %w", err)
	}
	if _, err := s.providerFor(route); err != nil {
		return nil, err
	}

	// The unshield lands on a fresh transparent address so the shielded
	// withdrawal and the provider deposit cannot be linked to prior
	// activity.
	transparent, err := s.allocator.Allocate(ctx, types.AddressTransparent, "unshield staging")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate transparent address: %w", err)
	}

	exec := route.Clone()
	exec.Metadata[provider.MetaRecipient] = destinationAddress
	exec.Metadata[provider.MetaRefundTo] = transparent.Address

	sess := session.New(session.DirectionOutbound, *exec)
	sess.FreshTransparentAddress = transparent
	if err := sess.ApplyStatus(session.StatusAwaitingDeposit); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.publishSession(events.SwapInitiated, sess, "")
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"staging":    transparent.Address,
	}).Info("outbound swap prepared, awaiting unshield")

	return sess.Clone(), nil
}

// ContinueOutboundSwap executes the provider leg of an outbound swap
// after the user's unshield transaction exists. The session stays in
// awaiting_deposit until the provider accepts the swap.
func (s *Service) ContinueOutboundSwap(ctx context.Context, sessionID, unshieldTxHash string) (*session.SwapSession, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Direction != session.DirectionOutbound {
		return nil, fmt.Errorf("session %s is not an outbound swap", sessionID)
	}
	if sess.Status != session.StatusAwaitingDeposit {
		return nil, fmt.Errorf("session %s cannot be continued from state %s", sessionID, sess.Status)
	}
	if unshieldTxHash == "" {
		return nil, fmt.Errorf("unshield transaction hash is required")
	}

	prov, err := s.providerFor(&sess.Route)
	if err != nil {
		return nil, err
	}

	handle, err := prov.Execute(ctx, &sess.Route)
	if err != nil {
		return nil, fmt.Errorf("provider %s failed to start swap: %w", prov.Name(), err)
	}

	sess.Tracking.UnshieldTxHash = unshieldTxHash
	sess.Tracking.ProviderSwapID = handle.ProviderSwapID
	sess.Tracking.DepositAddress = handle.DepositAddress
	sess.Tracking.DepositMemo = handle.DepositMemo
	sess.Tracking.TrackingURL = handle.TrackingURL

	if submitter, ok := prov.(provider.DepositSubmitter); ok {
		if err := submitter.SubmitDepositTx(ctx, handle.ProviderSwapID, unshieldTxHash); err != nil {
			// Detection still happens on chain, just slower.
			s.log.WithError(err).Warn("failed to submit deposit transaction to provider")
		}
	}

	if err := sess.ApplyStatus(session.StatusSwapInProgress); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.monitor.Watch(sess.ID)
	s.publishSession(events.SwapStatusUpdated, sess, "")
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"provider":   prov.Name(),
	}).Info("outbound swap continued")

	return sess.Clone(), nil
}

// CancelSession expires a session the user no longer wants. Only
// sessions still waiting on a deposit can be cancelled; once funds are
// moving the provider owns the outcome.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (*session.SwapSession, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Cancelable() {
		return nil, fmt.Errorf("session %s cannot be cancelled in state %s", sessionID, sess.Status)
	}

	// Stop the poll loop first so a late status write loses to the
	// terminal state below.
	s.monitor.Cancel(sessionID)

	if err := sess.ApplyStatus(session.StatusExpired); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	s.publishSession(events.SwapStatusUpdated, sess, "cancelled by user")
	s.log.WithField("session_id", sessionID).Info("session cancelled")
	return sess.Clone(), nil
}

// DeleteSession removes a finished session from the store.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Status.Terminal() {
		return fmt.Errorf("session %s is still %s; cancel it before deleting", sessionID, sess.Status)
	}
	return s.store.Delete(ctx, sessionID)
}

// GetSession returns one session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*session.SwapSession, error) {
	return s.store.Get(ctx, sessionID)
}

// GetAllSessions returns every stored session.
func (s *Service) GetAllSessions(ctx context.Context) ([]*session.SwapSession, error) {
	return s.store.List(ctx)
}

// GetSessionsByDirection returns sessions filtered by direction.
func (s *Service) GetSessionsByDirection(ctx context.Context, d session.Direction) ([]*session.SwapSession, error) {
	return s.store.ListByDirection(ctx, d)
}

// Subscribe registers a lifecycle event handler and returns its
// unsubscribe function.
func (s *Service) Subscribe(h events.Handler) func() {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.Subscribe(h)
}

// Resume re-arms monitoring for sessions that were active when the
// process last stopped.
func (s *Service) Resume(ctx context.Context) error {
	return s.monitor.Resume(ctx)
}

// validateRoute rejects routes that must not be executed.
func (s *Service) validateRoute(route *types.SwapRoute) error {
	if route == nil {
		return fmt.Errorf("route is required")
	}
	if route.Expired(time.Now()) {
		return fmt.Errorf("route %s has expired; request a fresh quote", route.RouteID)
	}
	if route.AmountIn.IsZero() {
		return fmt.Errorf("route amount must be greater than 0")
	}
	if route.Fees.Total >= route.AmountIn {
		return fmt.Errorf("route fees (%s) meet or exceed the input amount (%s)", route.Fees.Total, route.AmountIn)
	}
	if !s.cfg.MinAmountIn.IsZero() && route.AmountIn < s.cfg.MinAmountIn {
		return fmt.Errorf("amount %s is below the minimum swap size %s", route.AmountIn, s.cfg.MinAmountIn)
	}
	return nil
}

func (s *Service) providerFor(route *types.SwapRoute) (provider.Provider, error) {
	prov, ok := s.providers[route.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", route.Provider)
	}
	return prov, nil
}

func (s *Service) publishSession(t events.Type, sess *session.SwapSession, message string) {
	s.publishEvent(events.Event{
		Type:      t,
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Message:   message,
	})
}

func (s *Service) publishEvent(ev events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ev)
}
