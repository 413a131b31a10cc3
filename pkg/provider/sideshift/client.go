// Package sideshift adapts the SideShift instant-exchange REST API to
// the provider contract. SideShift quotes fixed-rate pairs, opens a
// "shift" with a deposit address, and reports shift status by id.
package sideshift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"zecswap/pkg/chains"
	"zecswap/pkg/provider"
	"zecswap/pkg/types"
)

// ProviderName identifies this adapter in routes and sessions.
const ProviderName = "sideshift"

const defaultBaseURL = "https://sideshift.ai/api/v2"

// metadata keys carried on routes so Execute can open the shift. The
// settle address is the recipient, stored under the shared key so the
// swap service can rewrite it.
const (
	metaQuoteID       = "quote_id"
	metaSettleAddress = provider.MetaRecipient
	metaRefundAddress = provider.MetaRefundTo
)

// network names as SideShift spells them.
var networkNames = map[types.Chain]string{
	types.ChainZcash:    "zcash",
	types.ChainBitcoin:  "bitcoin",
	types.ChainEthereum: "ethereum",
	types.ChainBase:     "base",
	types.ChainArbitrum: "arbitrum",
	types.ChainSolana:   "solana",
	types.ChainNear:     "near",
}

// Config configures the SideShift client.
type Config struct {
	BaseURL     string
	AffiliateID string
	Timeout     time.Duration
	// RequestsPerSecond bounds outbound calls; SideShift rate-limits
	// aggressively on the public API.
	RequestsPerSecond float64
}

// Client implements provider.Provider over the SideShift REST API.
type Client struct {
	baseURL     string
	affiliateID string
	http        *http.Client
	limiter     *rate.Limiter
	log         *logrus.Logger
}

// NewClient creates a SideShift-backed provider client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		affiliateID: cfg.AffiliateID,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:         log,
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return ProviderName }

type quoteRequest struct {
	DepositCoin    string `json:"depositCoin"`
	DepositNetwork string `json:"depositNetwork"`
	SettleCoin     string `json:"settleCoin"`
	SettleNetwork  string `json:"settleNetwork"`
	DepositAmount  string `json:"depositAmount"`
	AffiliateID    string `json:"affiliateId,omitempty"`
}

type quoteResponse struct {
	ID                   string `json:"id"`
	Rate                 string `json:"rate"`
	DepositAmount        string `json:"depositAmount"`
	SettleAmount         string `json:"settleAmount"`
	SettleCoinNetworkFee string `json:"settleCoinNetworkFee"`
	ExpiresAt            string `json:"expiresAt"`
}

type shiftRequest struct {
	QuoteID       string `json:"quoteId"`
	SettleAddress string `json:"settleAddress"`
	RefundAddress string `json:"refundAddress,omitempty"`
	AffiliateID   string `json:"affiliateId,omitempty"`
}

type shiftResponse struct {
	ID             string `json:"id"`
	DepositAddress string `json:"depositAddress"`
	DepositMemo    string `json:"depositMemo"`
	Status         string `json:"status"`
	SettleAmount   string `json:"settleAmount"`
	SettleHash     string `json:"settleHash"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Quote implements provider.Provider.
func (c *Client) Quote(ctx context.Context, req *types.SwapQuoteRequest) ([]types.SwapRoute, error) {
	depositNetwork, ok := networkNames[req.Source.Chain]
	if !ok {
		return nil, fmt.Errorf("chain %s is not supported by %s", req.Source.Chain, ProviderName)
	}
	settleNetwork, ok := networkNames[req.Destination.Chain]
	if !ok {
		return nil, fmt.Errorf("chain %s is not supported by %s", req.Destination.Chain, ProviderName)
	}

	srcDecimals, err := chains.Decimals(req.Source)
	if err != nil {
		return nil, err
	}
	dstDecimals, err := chains.Decimals(req.Destination)
	if err != nil {
		return nil, err
	}

	body := quoteRequest{
		DepositCoin:    strings.ToLower(req.Source.Asset),
		DepositNetwork: depositNetwork,
		SettleCoin:     strings.ToLower(req.Destination.Asset),
		SettleNetwork:  settleNetwork,
		DepositAmount:  types.FormatAmount(req.AmountIn, srcDecimals),
		AffiliateID:    c.affiliateID,
	}

	var quote quoteResponse
	if err := c.do(ctx, http.MethodPost, "/quotes", body, &quote); err != nil {
		return nil, err
	}

	expectedOut, err := types.ParseDecimalAmount(quote.SettleAmount, dstDecimals)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settle amount %q: %w", quote.SettleAmount, err)
	}
	if expectedOut.IsZero() {
		return nil, fmt.Errorf("sideshift quoted zero output for %s", req.Source)
	}

	var networkFee types.Amount
	if quote.SettleCoinNetworkFee != "" {
		if fee, err := types.ParseDecimalAmount(quote.SettleCoinNetworkFee, dstDecimals); err == nil {
			networkFee = fee
		}
	}

	expiresAt := time.Now().Add(10 * time.Minute).Unix()
	if t, err := time.Parse(time.RFC3339, quote.ExpiresAt); err == nil {
		expiresAt = t.Unix()
	}

	route := types.SwapRoute{
		RouteID:           quote.ID,
		Provider:          ProviderName,
		Source:            req.Source,
		Destination:       req.Destination,
		AmountIn:          req.AmountIn,
		ExpectedAmountOut: expectedOut,
		MinimumAmountOut:  types.ApplySlippage(expectedOut, req.SlippageTolerance),
		Fees: types.FeeBreakdown{
			Network: networkFee,
			Total:   networkFee,
			Percent: feePercent(networkFee, expectedOut),
		},
		Hops: []types.RouteHop{{
			From:     req.Source,
			To:       req.Destination,
			Protocol: "sideshift",
			Rate:     float64(expectedOut) / float64(req.AmountIn),
		}},
		EstimatedTimeSeconds: 600,
		ExpiresAt:            expiresAt,
		Metadata: map[string]string{
			metaQuoteID:       quote.ID,
			metaSettleAddress: req.DestinationAddress,
			metaRefundAddress: req.SourceAddress,
		},
	}
	return []types.SwapRoute{route}, nil
}

// Execute implements provider.Provider by opening a fixed shift for the
// quoted route.
func (c *Client) Execute(ctx context.Context, route *types.SwapRoute) (*provider.ExecutionHandle, error) {
	quoteID := route.Metadata[metaQuoteID]
	settleAddress := route.Metadata[metaSettleAddress]
	if quoteID == "" || settleAddress == "" {
		return nil, fmt.Errorf("route %s is missing execution metadata; re-quote before executing", route.RouteID)
	}

	body := shiftRequest{
		QuoteID:       quoteID,
		SettleAddress: settleAddress,
		RefundAddress: route.Metadata[metaRefundAddress],
		AffiliateID:   c.affiliateID,
	}

	var shift shiftResponse
	if err := c.do(ctx, http.MethodPost, "/shifts/fixed", body, &shift); err != nil {
		return nil, err
	}
	if shift.DepositAddress == "" {
		return nil, fmt.Errorf("sideshift returned no deposit address")
	}

	return &provider.ExecutionHandle{
		ProviderSwapID: shift.ID,
		DepositAddress: shift.DepositAddress,
		DepositMemo:    shift.DepositMemo,
		TrackingURL:    "https://sideshift.ai/orders/" + shift.ID,
	}, nil
}

// PollStatus implements provider.Provider.
func (c *Client) PollStatus(ctx context.Context, providerSwapID string) (*provider.StatusDetail, error) {
	var shift shiftResponse
	if err := c.do(ctx, http.MethodGet, "/shifts/"+providerSwapID, nil, &shift); err != nil {
		return nil, err
	}

	detail := &provider.StatusDetail{
		Status:            mapStatus(shift.Status),
		DestinationTxHash: shift.SettleHash,
		Message:           shift.Status,
	}
	// Settle amount is reported in human units of the settle coin; the
	// decimals are unknown here, so the monitor falls back to the
	// route's expectation when this stays zero.
	return detail, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sideshift request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read sideshift response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("sideshift error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("sideshift returned status code %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode sideshift response: %w", err)
		}
	}
	return nil
}

// mapStatus translates shift statuses into the provider vocabulary.
func mapStatus(s string) provider.Status {
	switch strings.ToLower(s) {
	case "waiting":
		return provider.StatusAwaitingDeposit
	case "pending":
		return provider.StatusDepositDetected
	case "processing":
		return provider.StatusDepositConfirmed
	case "review":
		return provider.StatusSwapInProgress
	case "settling":
		return provider.StatusOutputPending
	case "settled":
		return provider.StatusOutputConfirmed
	case "refunded":
		return provider.StatusRefunded
	case "expired":
		return provider.StatusFailed
	default:
		return provider.StatusUnknown
	}
}

func feePercent(fee, out types.Amount) float64 {
	if out.IsZero() {
		return 0
	}
	return float64(fee) / float64(out+fee) * 100
}
