package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zecswap/pkg/events"
	"zecswap/pkg/session"
)

var (
	buyFromChain string
	buyRefundTo  string
	buySlippage  float64
	buyProvider  string
	buyNoConfirm bool
	buyWatch     bool
)

var buyCmd = &cobra.Command{
	Use:   "buy <amount> <source-token>",
	Short: "Swap a foreign asset into shielded ZEC",
	Long: `Start an inbound swap: quote across providers, execute the best route,
and print the deposit address. The provider pays out to a fresh
transparent address that is auto-shielded after settlement.

Examples:
  zecswap buy 0.5 BTC --refund-to <btc-address>
  zecswap buy 100 USDC --from-chain base --refund-to 0x123... --watch`,
	Args: cobra.MinimumNArgs(2),
	Run:  runBuy,
}

func init() {
	rootCmd.AddCommand(buyCmd)

	buyCmd.Flags().StringVar(&buyFromChain, "from-chain", "", "Source blockchain (optional)")
	buyCmd.Flags().StringVar(&buyRefundTo, "refund-to", "", "Refund address on the source chain")
	buyCmd.Flags().Float64Var(&buySlippage, "slippage", 0, "Slippage tolerance as a fraction (default from config)")
	buyCmd.Flags().StringVar(&buyProvider, "provider", "", "Force a specific provider instead of the best route")
	buyCmd.Flags().BoolVarP(&buyNoConfirm, "yes", "y", false, "Skip confirmation prompt")
	buyCmd.Flags().BoolVar(&buyWatch, "watch", false, "Stay attached and report settlement progress")
}

func runBuy(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quoteArgs := append(append([]string{}, args...), "to", "ZEC")
	req, err := buildQuoteRequest(eng, quoteArgs, buyFromChain, "zcash", buySlippage, buyRefundTo, "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if buyProvider != "" {
		req.Providers = []string{buyProvider}
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
		if !buyNoConfirm && !confirmPrompt("Proceed with the recommended route?") {
			fmt.Println("\nSwap cancelled.")
			return
		}
	}

	if !jsonOutput {
		s.Suffix = " Starting swap..."
		s.Start()
	}
	sess, err := eng.service.ExecuteSwapToShieldedZec(ctx, route, buyRefundTo)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(sess, "", "  ")
		fmt.Println(string(data))
	} else {
		displayDepositInstructions(sess, req.Source.Asset)
	}

	if buyWatch {
		watchSession(eng, sess.ID, jsonOutput)
	} else if !jsonOutput {
		fmt.Println("Check progress with:")
		color.Cyan("  zecswap sessions %s\n", sess.ID)
	}
}

func displayDepositInstructions(sess *session.SwapSession, sourceToken string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the swap, send %s %s to:\n\n",
		formatAsset(sess.AmountIn, sess.Source), sourceToken)
	color.Cyan("  %s\n", sess.Tracking.DepositAddress)

	if sess.Tracking.DepositMemo != "" {
		fmt.Printf("\nMemo (REQUIRED): %s\n", color.MagentaString(sess.Tracking.DepositMemo))
	}
	if sess.Tracking.TrackingURL != "" {
		fmt.Printf("\nProvider tracking: %s\n", sess.Tracking.TrackingURL)
	}

	fmt.Printf("\nSession: %s\n", color.CyanString(sess.ID))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// watchSession blocks until the session reaches a terminal state,
// printing lifecycle events as they arrive. In-flight sessions from a
// previous run are re-armed first, so attaching after a restart still
// settles.
func watchSession(eng *engine, sessionID string, jsonOutput bool) {
	if err := eng.service.Resume(context.Background()); err != nil {
		eng.log.WithError(err).Warn("failed to resume session monitoring")
	}

	done := make(chan events.Event, 1)
	unsubscribe := eng.service.Subscribe(func(ev events.Event) {
		if ev.SessionID != sessionID {
			return
		}
		if jsonOutput {
			data, _ := json.Marshal(ev)
			fmt.Println(string(data))
		} else {
			fmt.Printf("  [%s] %s %s\n", ev.At.Format(time.TimeOnly), ev.Type, ev.Message)
		}
		if session.Status(ev.Status).Terminal() {
			select {
			case done <- ev:
			default:
			}
		}
	})
	defer unsubscribe()

	if !jsonOutput {
		fmt.Println("Watching settlement (Ctrl-C to detach, the swap continues)...")
	}

	ev := <-done
	if !jsonOutput {
		switch session.Status(ev.Status) {
		case session.StatusCompleted:
			color.Green("\nSwap completed.\n")
		case session.StatusRefunded:
			color.Yellow("\nSwap refunded.\n")
		default:
			color.Red("\nSwap %s: %s\n", ev.Status, ev.Message)
		}
	}
}

func confirmPrompt(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
