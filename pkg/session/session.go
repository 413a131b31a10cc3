// Package session holds the swap session record, its state machine,
// and the durable stores that persist it.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"zecswap/pkg/types"
)

// Status is a session's position in the swap lifecycle.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingDeposit  Status = "awaiting_deposit"
	StatusDepositDetected  Status = "deposit_detected"
	StatusDepositConfirmed Status = "deposit_confirmed"
	StatusSwapInProgress   Status = "swap_in_progress"
	StatusOutputPending    Status = "output_pending"
	StatusOutputConfirmed  Status = "output_confirmed"
	StatusAutoShielding    Status = "auto_shielding"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusRefunded         Status = "refunded"
	StatusExpired          Status = "expired"
)

// statusRank orders the forward path. Terminal failure states carry no
// rank; they are reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusIdle:             0,
	StatusAwaitingDeposit:  1,
	StatusDepositDetected:  2,
	StatusDepositConfirmed: 3,
	StatusSwapInProgress:   4,
	StatusOutputPending:    5,
	StatusOutputConfirmed:  6,
	StatusAutoShielding:    7,
	StatusCompleted:        8,
}

// Terminal reports whether the status ends the session's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from
// s to target. States only move forward; any non-terminal state may
// fail, refund, or expire; terminal states never move again.
func (s Status) CanTransition(target Status) bool {
	if s == target {
		return false
	}
	if s.Terminal() {
		return false
	}
	switch target {
	case StatusFailed, StatusRefunded, StatusExpired:
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to > from
}

// Direction distinguishes swaps into the shielded pool from swaps out
// of it.
type Direction string

const (
	DirectionInbound  Direction = "inbound"  // foreign asset -> shielded ZEC
	DirectionOutbound Direction = "outbound" // shielded ZEC -> foreign asset
)

// TrackingData ties a session to the provider executing it.
type TrackingData struct {
	Provider          string `json:"provider"`
	ProviderSwapID    string `json:"provider_swap_id,omitempty"`
	DepositAddress    string `json:"deposit_address,omitempty"`
	DepositMemo       string `json:"deposit_memo,omitempty"`
	TrackingURL       string `json:"tracking_url,omitempty"`
	UnshieldTxHash    string `json:"unshield_tx_hash,omitempty"`
	ShieldTxID        string `json:"shield_tx_id,omitempty"`
	DestinationTxHash string `json:"destination_tx_hash,omitempty"`
}

// SwapSession is the record of one swap from intent to settlement. It
// is created by the swap service and mutated only by the settlement
// monitor and the auto-shield coordinator.
type SwapSession struct {
	ID                string           `json:"id"`
	Direction         Direction        `json:"direction"`
	Source            types.ChainAsset `json:"source"`
	Destination       types.ChainAsset `json:"destination"`
	AmountIn          types.Amount     `json:"amount_in"`
	ExpectedAmountOut types.Amount     `json:"expected_amount_out"`
	ActualAmountOut   types.Amount     `json:"actual_amount_out,omitempty"`
	Status            Status           `json:"status"`
	Route             types.SwapRoute  `json:"route"`
	Tracking          TrackingData     `json:"tracking"`

	FreshTransparentAddress *types.FreshAddress `json:"fresh_transparent_address,omitempty"`
	FreshShieldedAddress    *types.FreshAddress `json:"fresh_shielded_address,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	DepositConfirmedAt *time.Time `json:"deposit_confirmed_at,omitempty"`
	SwapStartedAt      *time.Time `json:"swap_started_at,omitempty"`
	OutputConfirmedAt  *time.Time `json:"output_confirmed_at,omitempty"`
	ShieldingStartedAt *time.Time `json:"shielding_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FailedAt           *time.Time `json:"failed_at,omitempty"`

	Error string `json:"error,omitempty"`
}

// New creates a session in the idle state.
func New(direction Direction, route types.SwapRoute) *SwapSession {
	return &SwapSession{
		ID:                uuid.New().String(),
		Direction:         direction,
		Source:            route.Source,
		Destination:       route.Destination,
		AmountIn:          route.AmountIn,
		ExpectedAmountOut: route.ExpectedAmountOut,
		Status:            StatusIdle,
		Route:             route,
		Tracking:          TrackingData{Provider: route.Provider},
		CreatedAt:         time.Now(),
	}
}

// ApplyStatus advances the session along the state machine, stamping
// the timestamp that belongs to the new state. It rejects transitions
// the machine does not permit.
func (s *SwapSession) ApplyStatus(target Status) error {
	if !s.Status.CanTransition(target) {
		return fmt.Errorf("invalid transition %s -> %s for session %s", s.Status, target, s.ID)
	}
	if target == StatusAutoShielding && s.Direction != DirectionInbound {
		return fmt.Errorf("auto-shielding is only valid for inbound sessions (session %s)", s.ID)
	}

	s.Status = target
	now := time.Now()
	switch target {
	case StatusDepositConfirmed:
		s.DepositConfirmedAt = &now
	case StatusSwapInProgress:
		s.SwapStartedAt = &now
	case StatusOutputConfirmed:
		s.OutputConfirmedAt = &now
	case StatusAutoShielding:
		s.ShieldingStartedAt = &now
	case StatusCompleted:
		s.CompletedAt = &now
	case StatusFailed, StatusRefunded, StatusExpired:
		s.FailedAt = &now
	}
	return nil
}

// SetActualAmountOut records the settled output. It is only legal once
// the session has reached output confirmation; failure-terminal states
// never settled, so they never carry one.
func (s *SwapSession) SetActualAmountOut(amount types.Amount) error {
	rank, ok := statusRank[s.Status]
	if !ok || rank < statusRank[StatusOutputConfirmed] {
		return fmt.Errorf("actual amount out cannot be set in state %s", s.Status)
	}
	s.ActualAmountOut = amount
	return nil
}

// Cancelable reports whether a user may still cancel the session.
func (s *SwapSession) Cancelable() bool {
	return s.Status == StatusAwaitingDeposit || s.Status == StatusDepositDetected
}

// Clone returns a deep copy, so callers can mutate freely before
// persisting without racing other readers.
func (s *SwapSession) Clone() *SwapSession {
	c := *s
	if s.FreshTransparentAddress != nil {
		a := *s.FreshTransparentAddress
		c.FreshTransparentAddress = &a
	}
	if s.FreshShieldedAddress != nil {
		a := *s.FreshShieldedAddress
		c.FreshShieldedAddress = &a
	}
	c.Route.Hops = append([]types.RouteHop(nil), s.Route.Hops...)
	if s.Route.Metadata != nil {
		c.Route.Metadata = make(map[string]string, len(s.Route.Metadata))
		for k, v := range s.Route.Metadata {
			c.Route.Metadata[k] = v
		}
	}
	for _, ts := range []**time.Time{
		&c.DepositConfirmedAt, &c.SwapStartedAt, &c.OutputConfirmedAt,
		&c.ShieldingStartedAt, &c.CompletedAt, &c.FailedAt,
	} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	return &c
}
