// Package nearintents adapts the NEAR Intents 1Click API to the
// provider contract. The 1Click flow quotes a fixed-rate route, hands
// out a deposit address, and tracks the swap by that address.
package nearintents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zecswap/pkg/provider"
	"zecswap/pkg/types"
)

// ProviderName identifies this adapter in routes and sessions.
const ProviderName = "near-intents"

const tokenCacheTTL = 10 * time.Minute

// depositDeadline is how long a deposit address stays valid.
const depositDeadline = 24 * time.Hour

// metadata keys carried on routes so Execute can replay the quote. The
// recipient and refund keys come from the provider package so the swap
// service can rewrite them.
const (
	metaOriginAsset      = "origin_asset"
	metaDestinationAsset = "destination_asset"
	metaRecipient        = provider.MetaRecipient
	metaRefundTo         = provider.MetaRefundTo
)

// blockchain names as the 1Click API spells them.
var blockchainNames = map[types.Chain]string{
	types.ChainZcash:    "zec",
	types.ChainBitcoin:  "btc",
	types.ChainEthereum: "eth",
	types.ChainBase:     "base",
	types.ChainArbitrum: "arb",
	types.ChainSolana:   "sol",
	types.ChainNear:     "near",
}

// Client implements provider.Provider over the 1Click SDK.
type Client struct {
	api   *oneclick.APIClient
	token string
	log   *logrus.Logger

	mu       sync.Mutex
	tokens   []oneclick.TokenResponse
	tokensAt time.Time
}

// NewClient creates a 1Click-backed provider client.
func NewClient(jwtToken string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		api:   oneclick.NewAPIClient(oneclick.NewConfiguration()),
		token: jwtToken,
		log:   log,
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return ProviderName }

// auth returns ctx carrying the JWT the SDK expects.
func (c *Client) auth(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// Quote implements provider.Provider. It issues a dry quote (no deposit
// address is created) and returns a single route.
func (c *Client) Quote(ctx context.Context, req *types.SwapQuoteRequest) ([]types.SwapRoute, error) {
	originID, err := c.resolveAssetID(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	destID, err := c.resolveAssetID(ctx, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	resp, err := c.requestQuote(ctx, true, originID, destID, req.AmountIn, req.SlippageTolerance, req.DestinationAddress, req.SourceAddress)
	if err != nil {
		return nil, err
	}

	q := resp.GetQuote()
	expectedOut, err := types.ParseAmount(q.GetAmountOut())
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoted output: %w", err)
	}

	route := types.SwapRoute{
		RouteID:           uuid.New().String(),
		Provider:          ProviderName,
		Source:            req.Source,
		Destination:       req.Destination,
		AmountIn:          req.AmountIn,
		ExpectedAmountOut: expectedOut,
		MinimumAmountOut:  types.ApplySlippage(expectedOut, req.SlippageTolerance),
		Fees:              types.FeeBreakdown{}, // rate-implied; 1Click does not itemize
		Hops: []types.RouteHop{{
			From:     req.Source,
			To:       req.Destination,
			Protocol: "near-intents",
			Rate:     float64(expectedOut) / float64(req.AmountIn),
		}},
		EstimatedTimeSeconds: int64(q.GetTimeEstimate()),
		ExpiresAt:            q.GetDeadline().Unix(),
		Metadata: map[string]string{
			metaOriginAsset:      originID,
			metaDestinationAsset: destID,
			metaRecipient:        req.DestinationAddress,
			metaRefundTo:         req.SourceAddress,
		},
	}
	return []types.SwapRoute{route}, nil
}

// Execute implements provider.Provider. 1Click has no separate execute
// call: re-issuing the quote with dry=false materializes the deposit
// address, which is also the swap's tracking id.
func (c *Client) Execute(ctx context.Context, route *types.SwapRoute) (*provider.ExecutionHandle, error) {
	originID := route.Metadata[metaOriginAsset]
	destID := route.Metadata[metaDestinationAsset]
	recipient := route.Metadata[metaRecipient]
	refundTo := route.Metadata[metaRefundTo]
	if originID == "" || destID == "" || recipient == "" {
		return nil, fmt.Errorf("route %s is missing execution metadata; re-quote before executing", route.RouteID)
	}

	slippage := 0.0
	if route.ExpectedAmountOut > 0 && route.MinimumAmountOut < route.ExpectedAmountOut {
		slippage = 1 - float64(route.MinimumAmountOut)/float64(route.ExpectedAmountOut)
	}

	resp, err := c.requestQuote(ctx, false, originID, destID, route.AmountIn, slippage, recipient, refundTo)
	if err != nil {
		return nil, err
	}

	q := resp.GetQuote()
	depositAddress := q.GetDepositAddress()
	if depositAddress == "" {
		return nil, fmt.Errorf("1click returned no deposit address")
	}

	return &provider.ExecutionHandle{
		ProviderSwapID: depositAddress,
		DepositAddress: depositAddress,
		DepositMemo:    "",
		TrackingURL:    "https://explorer.near-intents.org/?depositAddress=" + depositAddress,
	}, nil
}

// PollStatus implements provider.Provider. The swap id is the deposit
// address handed out at execution time.
func (c *Client) PollStatus(ctx context.Context, providerSwapID string) (*provider.StatusDetail, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.auth(ctx)).DepositAddress(providerSwapID).Execute()
	if err != nil {
		return nil, apiError("failed to get status", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status API returned status code %d", httpResp.StatusCode)
	}

	detail := &provider.StatusDetail{
		Status:  mapStatus(resp.GetStatus()),
		Message: resp.GetStatus(),
	}

	details := resp.GetSwapDetails()
	if details.HasAmountOut() {
		if out, err := types.ParseAmount(details.GetAmountOut()); err == nil {
			detail.ActualAmountOut = out
		}
	}
	if hashes := details.GetDestinationChainTxHashes(); len(hashes) > 0 {
		detail.DestinationTxHash = hashes[0].GetHash()
	}
	return detail, nil
}

// SubmitDepositTx implements provider.DepositSubmitter. Reporting the
// deposit hash lets the resolver network pick the intent up before the
// deposit confirms on its own.
func (c *Client) SubmitDepositTx(ctx context.Context, providerSwapID, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(providerSwapID, txHash)

	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.auth(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("failed to submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("submit deposit returned status code %d", httpResp.StatusCode)
	}
	return nil
}

func (c *Client) requestQuote(ctx context.Context, dry bool, originID, destID string, amountIn types.Amount, slippage float64, recipient, refundTo string) (*oneclick.QuoteResponse, error) {
	if recipient == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	if refundTo == "" {
		refundTo = recipient
	}

	quoteReq := oneclick.NewQuoteRequest(
		dry,
		"EXACT_INPUT",
		float32(slippage*10000), // basis points
		originID,
		"ORIGIN_CHAIN",
		destID,
		amountIn.String(),
		refundTo,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		time.Now().Add(depositDeadline),
	)

	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.auth(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError("failed to get quote", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("quote API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}
	return resp, nil
}

// resolveAssetID maps a ChainAsset onto a 1Click asset id, using the
// token's contract address when given, otherwise the token list.
func (c *Client) resolveAssetID(ctx context.Context, asset types.ChainAsset) (string, error) {
	if asset.ContractAddress != "" && strings.HasPrefix(asset.ContractAddress, "nep141:") {
		return asset.ContractAddress, nil
	}

	blockchain, ok := blockchainNames[asset.Chain]
	if !ok {
		return "", fmt.Errorf("chain %s is not supported by %s", asset.Chain, ProviderName)
	}

	tokens, err := c.supportedTokens(ctx)
	if err != nil {
		return "", err
	}

	symbol := strings.ToUpper(asset.Asset)
	for _, token := range tokens {
		if strings.ToUpper(token.GetSymbol()) == symbol &&
			strings.ToLower(token.GetBlockchain()) == blockchain {
			return token.GetAssetId(), nil
		}
	}
	return "", fmt.Errorf("token %q not found on chain %q", asset.Asset, blockchain)
}

// SupportedTokens returns the tokens the 1Click API can swap.
func (c *Client) SupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	return c.supportedTokens(ctx)
}

// supportedTokens returns the token list, cached briefly to keep quote
// fan-out from hammering the tokens endpoint.
func (c *Client) supportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokens != nil && time.Since(c.tokensAt) < tokenCacheTTL {
		return c.tokens, nil
	}

	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.auth(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokens API returned status code %d", httpResp.StatusCode)
	}

	c.tokens = resp
	c.tokensAt = time.Now()
	return c.tokens, nil
}

// mapStatus translates 1Click statuses into the provider vocabulary.
func mapStatus(s string) provider.Status {
	switch strings.ToUpper(s) {
	case "PENDING_DEPOSIT":
		return provider.StatusAwaitingDeposit
	case "KNOWN_DEPOSIT_TX", "INCOMPLETE_DEPOSIT":
		return provider.StatusDepositDetected
	case "PROCESSING":
		return provider.StatusSwapInProgress
	case "SUCCESS", "COMPLETED":
		return provider.StatusOutputConfirmed
	case "REFUNDED":
		return provider.StatusRefunded
	case "FAILED":
		return provider.StatusFailed
	default:
		return provider.StatusUnknown
	}
}

// apiError extracts the message the API put in the response body, if
// any, so callers see more than a status code.
func apiError(prefix string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return fmt.Errorf("%s (status %d): %w", prefix, httpResp.StatusCode, err)
	}

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil {
		if message, ok := parsed["message"].(string); ok {
			return fmt.Errorf("%s (status %d): %s", prefix, httpResp.StatusCode, message)
		}
	}
	return fmt.Errorf("%s (status %d): %s", prefix, httpResp.StatusCode, string(body))
}
