package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var continueWatch bool

var continueCmd = &cobra.Command{
	Use:   "continue <session-id> <unshield-txid>",
	Short: "Report the unshield transaction and execute an outbound swap",
	Long: `Continue an outbound swap prepared with 'zecswap sell'. The unshield
transaction id is handed to the provider so deposit detection starts
immediately.`,
	Args: cobra.ExactArgs(2),
	Run:  runContinue,
}

func init() {
	rootCmd.AddCommand(continueCmd)

	continueCmd.Flags().BoolVar(&continueWatch, "watch", false, "Stay attached and report settlement progress")
}

func runContinue(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Executing swap..."
		s.Start()
	}
	sess, err := eng.service.ContinueOutboundSwap(context.Background(), args[0], args[1])
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
		color.Green("\nSwap executing.")
		fmt.Printf("  Session:  %s\n", sess.ID)
		fmt.Printf("  Deposit:  %s\n", sess.Tracking.DepositAddress)
		if sess.Tracking.TrackingURL != "" {
			fmt.Printf("  Tracking: %s\n", sess.Tracking.TrackingURL)
		}
		fmt.Println("\nForward the unshielded funds to the deposit address above if your")
		fmt.Println("wallet has not done so already.")
		fmt.Println()
	}

	if continueWatch {
		watchSession(eng, sess.ID, jsonOutput)
	}
}
