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

	"zecswap/pkg/session"
)

var (
	sellToChain   string
	sellToAddress string
	sellSlippage  float64
	sellProvider  string
	sellNoConfirm bool
)

var sellCmd = &cobra.Command{
	Use:   "sell <amount> ZEC to <dest-token>",
	Short: "Swap shielded ZEC into a foreign asset",
	Long: `Start an outbound swap. The session stages a fresh transparent
address; unshield your ZEC to it yourself, then report the transaction
with 'zecswap continue'. The engine never holds shielded keys.

Examples:
  zecswap sell 1.5 ZEC to USDC --to 0x123...
  zecswap sell 0.25 ZEC to BTC --to bc1q...`,
	Args: cobra.MinimumNArgs(3),
	Run:  runSell,
}

func init() {
	rootCmd.AddCommand(sellCmd)

	sellCmd.Flags().StringVar(&sellToChain, "to-chain", "", "Destination blockchain (optional)")
	sellCmd.Flags().StringVar(&sellToAddress, "to", "", "Destination address (REQUIRED)")
	sellCmd.Flags().Float64Var(&sellSlippage, "slippage", 0, "Slippage tolerance as a fraction (default from config)")
	sellCmd.Flags().StringVar(&sellProvider, "provider", "", "Force a specific provider instead of the best route")
	sellCmd.Flags().BoolVarP(&sellNoConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSell(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if sellToAddress == "" {
		printError(fmt.Errorf("--to is required: the address that receives the swapped asset"))
		os.Exit(1)
	}

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	req, err := buildQuoteRequest(eng, args, "zcash", sellToChain, sellSlippage, "", sellToAddress)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if sellProvider != "" {
		req.Providers = []string{sellProvider}
	}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}
	result, err := eng.service.GetQuotes(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if result.Recommended == nil {
		printError(fmt.Errorf("no routes available for %s -> %s", req.Source, req.Destination))
		os.Exit(1)
	}

	route := result.Recommended
	if !jsonOutput {
		displayQuoteResult(result, req)
		if !sellNoConfirm && !confirmPrompt("Prepare the outbound swap with the recommended route?") {
			fmt.Println("\nSwap cancelled.")
			return
		}
	}

	sess, err := eng.service.ExecuteSwapFromShieldedZec(ctx, route, sellToAddress)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(sess, "", "  ")
		fmt.Println(string(data))
		return
	}

	displayUnshieldInstructions(sess)
}

func displayUnshieldInstructions(sess *session.SwapSession) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                UNSHIELD INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nUnshield %s ZEC from your wallet to:\n\n",
		formatAsset(sess.AmountIn, sess.Source))
	color.Cyan("  %s\n", sess.FreshTransparentAddress.Address)
	fmt.Println("\nThen report the transaction so the swap can execute:")
	color.Cyan("  zecswap continue %s <unshield-txid>\n", sess.ID)
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
