// Package quote fans a quote request out to every enabled provider and
// merges the results into one ranked list.
package quote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"zecswap/pkg/provider"
	"zecswap/pkg/types"
)

// DefaultProviderTimeout bounds each provider's quote call so one slow
// provider cannot stall the whole aggregation.
const DefaultProviderTimeout = 15 * time.Second

// ProviderError records one provider's quote failure. It is advisory:
// the aggregate result is still valid.
type ProviderError struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// Result is the merged outcome of one quote fan-out. Routes is sorted
// by expected output descending; Recommended is Routes[0] or nil. An
// empty Routes with populated Errors is a valid "no routes available"
// result, not an error.
type Result struct {
	Routes      []types.SwapRoute `json:"routes"`
	Recommended *types.SwapRoute  `json:"recommended,omitempty"`
	Errors      []ProviderError   `json:"errors,omitempty"`
}

// Aggregator queries providers concurrently and ranks their routes.
type Aggregator struct {
	providers []provider.Provider
	timeout   time.Duration
	log       *logrus.Logger
}

// New creates an aggregator over the given providers.
func New(providers []provider.Provider, timeout time.Duration, log *logrus.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{providers: providers, timeout: timeout, log: log}
}

// GetQuotes asks every enabled provider for routes. All providers are
// queried with the same request and every call is waited on; a failure
// never cancels or fails the others.
func (a *Aggregator) GetQuotes(ctx context.Context, req *types.SwapQuoteRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	type outcome struct {
		provider string
		routes   []types.SwapRoute
		err      error
	}

	enabled := make([]provider.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if req.AllowsProvider(p.Name()) {
			enabled = append(enabled, p)
		}
	}

	outcomes := make([]outcome, len(enabled))
	var wg sync.WaitGroup
	for i, p := range enabled {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			routes, err := p.Quote(callCtx, req)
			outcomes[i] = outcome{provider: p.Name(), routes: routes, err: err}
		}(i, p)
	}
	wg.Wait()

	result := &Result{Routes: []types.SwapRoute{}}
	for _, o := range outcomes {
		if o.err != nil {
			a.log.WithFields(logrus.Fields{
				"provider": o.provider,
				"error":    o.err,
			}).Warn("provider quote failed")
			result.Errors = append(result.Errors, ProviderError{Provider: o.provider, Reason: o.err.Error()})
			continue
		}
		result.Routes = append(result.Routes, o.routes...)
	}

	rankRoutes(result.Routes)
	if len(result.Routes) > 0 {
		result.Recommended = &result.Routes[0]
	}
	return result, nil
}

// rankRoutes orders routes by expected output descending. Ties break
// deterministically: lower total fee first, then provider name.
func rankRoutes(routes []types.SwapRoute) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].ExpectedAmountOut != routes[j].ExpectedAmountOut {
			return routes[i].ExpectedAmountOut > routes[j].ExpectedAmountOut
		}
		if routes[i].Fees.Total != routes[j].Fees.Total {
			return routes[i].Fees.Total < routes[j].Fees.Total
		}
		return routes[i].Provider < routes[j].Provider
	})
}
