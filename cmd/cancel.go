package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a session still waiting on its deposit",
	Long: `Cancel a swap session. Only sessions still in awaiting_deposit or
deposit_detected can be cancelled; once funds are moving the provider
owns the outcome.`,
	Args: cobra.ExactArgs(1),
	Run:  runCancel,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a finished session from the store",
	Args:  cobra.ExactArgs(1),
	Run:   runDelete,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runCancel(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sess, err := eng.service.CancelSession(context.Background(), args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Yellow("\nSession %s cancelled.\n", sess.ID)
	fmt.Println()
}

func runDelete(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	eng, err := buildEngine(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := eng.service.DeleteSession(context.Background(), args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\nSession %s deleted.\n", args[0])
	fmt.Println()
}
