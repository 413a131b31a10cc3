package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zecswap/pkg/session"
)

var (
	sessionsDirection string
	sessionsWatch     bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List swap sessions or show one in detail",
	Long: `Without arguments, lists every stored session newest first. With a
session id, shows that session in full. --watch re-arms monitoring for
in-flight sessions and stays attached until the session settles.

Examples:
  zecswap sessions
  zecswap sessions --direction inbound
  zecswap sessions <session-id>
  zecswap sessions <session-id> --watch`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().StringVar(&sessionsDirection, "direction", "", "Filter by direction: inbound or outbound")
	sessionsCmd.Flags().BoolVar(&sessionsWatch, "watch", false, "Stay attached to a session until it settles")
}

func runSessions(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	ctx := context.Background()

	if len(args) == 1 {
		sess, err := eng.service.GetSession(ctx, args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			data, _ := json.MarshalIndent(sess, "", "  ")
			fmt.Println(string(data))
		} else {
			displaySession(sess)
		}
		if sessionsWatch && !sess.Status.Terminal() {
			watchSession(eng, sess.ID, jsonOutput)
		}
		return
	}

	var sessions []*session.SwapSession
	switch sessionsDirection {
	case "":
		sessions, err = eng.service.GetAllSessions(ctx)
	case "inbound":
		sessions, err = eng.service.GetSessionsByDirection(ctx, session.DirectionInbound)
	case "outbound":
		sessions, err = eng.service.GetSessionsByDirection(ctx, session.DirectionOutbound)
	default:
		err = fmt.Errorf("unknown direction %q (want inbound or outbound)", sessionsDirection)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	if jsonOutput {
		data, _ := json.MarshalIndent(sessions, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(sessions) == 0 {
		fmt.Println("\nNo sessions.")
		return
	}

	fmt.Println()
	for _, sess := range sessions {
		fmt.Printf("  %s  %-8s  %-17s  %s -> %s  %s\n",
			sess.ID,
			sess.Direction,
			colorStatus(sess.Status),
			sess.Source.Asset, sess.Destination.Asset,
			sess.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func displaySession(sess *session.SwapSession) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP SESSION")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Session:       %s\n", sess.ID)
	fmt.Printf("  Direction:     %s\n", sess.Direction)
	fmt.Printf("  Status:        %s\n", colorStatus(sess.Status))
	fmt.Printf("  Pair:          %s -> %s\n", sess.Source, sess.Destination)
	fmt.Printf("  Amount in:     %s %s\n", formatAsset(sess.AmountIn, sess.Source), sess.Source.Asset)
	fmt.Printf("  Expected out:  %s %s\n", formatAsset(sess.ExpectedAmountOut, sess.Destination), sess.Destination.Asset)
	if !sess.ActualAmountOut.IsZero() {
		fmt.Printf("  Actual out:    %s %s\n", formatAsset(sess.ActualAmountOut, sess.Destination), sess.Destination.Asset)
	}
	fmt.Printf("  Provider:      %s\n", sess.Tracking.Provider)
	if sess.Tracking.DepositAddress != "" {
		fmt.Printf("  Deposit:       %s\n", sess.Tracking.DepositAddress)
	}
	if sess.Tracking.DepositMemo != "" {
		fmt.Printf("  Memo:          %s\n", sess.Tracking.DepositMemo)
	}
	if sess.Tracking.UnshieldTxHash != "" {
		fmt.Printf("  Unshield tx:   %s\n", sess.Tracking.UnshieldTxHash)
	}
	if sess.Tracking.ShieldTxID != "" {
		fmt.Printf("  Shield tx:     %s\n", sess.Tracking.ShieldTxID)
	}
	if sess.Tracking.DestinationTxHash != "" {
		fmt.Printf("  Settlement tx: %s\n", sess.Tracking.DestinationTxHash)
	}
	if sess.Tracking.TrackingURL != "" {
		fmt.Printf("  Tracking:      %s\n", sess.Tracking.TrackingURL)
	}
	fmt.Printf("  Created:       %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	if sess.CompletedAt != nil {
		fmt.Printf("  Completed:     %s\n", sess.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if sess.Error != "" {
		fmt.Printf("  Error:         %s\n", color.RedString(sess.Error))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func colorStatus(s session.Status) string {
	switch s {
	case session.StatusCompleted:
		return color.GreenString(string(s))
	case session.StatusFailed, session.StatusExpired:
		return color.RedString(string(s))
	case session.StatusRefunded:
		return color.YellowString(string(s))
	default:
		return color.CyanString(string(s))
	}
}
