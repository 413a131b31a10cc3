package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zecswap/pkg/chains"
	"zecswap/pkg/parser"
	"zecswap/pkg/quote"
	"zecswap/pkg/types"
)

var (
	quoteFromChain string
	quoteToChain   string
	quoteSlippage  float64
	quoteProviders []string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Compare swap routes across providers",
	Long: `Fetch quotes from every enabled provider and rank them by expected
output. No session is created and no funds move.

Examples:
  zecswap quote 0.5 BTC to ZEC
  zecswap quote 1.5 ZEC to USDC --to-chain base
  zecswap quote 100 USDC to ZEC --providers sideshift`,
	Args: cobra.MinimumNArgs(3),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFromChain, "from-chain", "", "Source blockchain (optional)")
	quoteCmd.Flags().StringVar(&quoteToChain, "to-chain", "", "Destination blockchain (optional)")
	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0, "Slippage tolerance as a fraction (default from config)")
	quoteCmd.Flags().StringSliceVar(&quoteProviders, "providers", nil, "Only ask these providers")
}

func runQuote(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	req, err := buildQuoteRequest(eng, args, quoteFromChain, quoteToChain, quoteSlippage, "", "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	req.Providers = quoteProviders

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}

	result, err := eng.service.GetQuotes(context.Background(), req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	displayQuoteResult(result, req)
}

// buildQuoteRequest parses "<amount> <token> to <token>" and resolves
// it into a provider-ready request. Empty addresses fall back to
// per-chain probe addresses, good for pricing only.
func buildQuoteRequest(eng *engine, args []string, fromChain, toChain string, slippage float64, sourceAddr, destAddr string) (*types.SwapQuoteRequest, error) {
	intent, err := parser.ParseSwapArgs(args)
	if err != nil {
		return nil, err
	}

	source, err := resolveAsset(parser.NormalizeTokenSymbol(intent.SourceToken), fromChain)
	if err != nil {
		return nil, err
	}
	destination, err := resolveAsset(parser.NormalizeTokenSymbol(intent.DestToken), toChain)
	if err != nil {
		return nil, err
	}

	srcDecimals, err := chains.Decimals(source)
	if err != nil {
		return nil, err
	}
	amountIn, err := types.ParseDecimalAmount(intent.Amount, srcDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", intent.Amount, err)
	}

	if slippage == 0 {
		slippage = eng.cfg.SlippageTolerance
	}
	if sourceAddr == "" {
		sourceAddr = probeAddress(source.Chain)
	}
	if destAddr == "" {
		destAddr = probeAddress(destination.Chain)
	}

	return &types.SwapQuoteRequest{
		Source:             source,
		Destination:        destination,
		AmountIn:           amountIn,
		SourceAddress:      sourceAddr,
		DestinationAddress: destAddr,
		SlippageTolerance:  slippage,
	}, nil
}

func displayQuoteResult(result *quote.Result, req *types.SwapQuoteRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTES")
	fmt.Println(strings.Repeat("=", 60))

	if len(result.Routes) == 0 {
		color.Yellow("\n  No routes available for %s -> %s\n", req.Source, req.Destination)
	}

	for i, route := range result.Routes {
		marker := " "
		if result.Recommended != nil && route.RouteID == result.Recommended.RouteID {
			marker = color.GreenString("*")
		}
		fmt.Printf("\n%s %d. %s\n", marker, i+1, color.CyanString(route.Provider))
		fmt.Printf("     Expected out:  %s %s (min %s)\n",
			formatAsset(route.ExpectedAmountOut, req.Destination), req.Destination.Asset,
			formatAsset(route.MinimumAmountOut, req.Destination))
		fmt.Printf("     Total fees:    %s\n", formatAsset(route.Fees.Total, req.Destination))
		fmt.Printf("     Est. time:     %ds\n", route.EstimatedTimeSeconds)
		fmt.Printf("     Route id:      %s\n", route.RouteID)
	}

	for _, provErr := range result.Errors {
		color.Yellow("\n  %s: %s", provErr.Provider, provErr.Reason)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// formatAsset renders a smallest-unit amount in the asset's human
// units, falling back to raw units when the decimals are unknown.
func formatAsset(amount types.Amount, asset types.ChainAsset) string {
	d, err := chains.Decimals(asset)
	if err != nil {
		return amount.String()
	}
	return types.FormatAmount(amount, d)
}
