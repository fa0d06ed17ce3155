package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

func newLedgerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the LLM cost ledger",
	}

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := a.ledger.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			return printEntries(entries)
		},
	}
	recentCmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")

	var days int
	dailyCmd := &cobra.Command{
		Use:   "daily",
		Short: "Show per-day costs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			since := time.Now().UTC().AddDate(0, 0, -days)
			costs, err := a.ledger.DailyCosts(context.Background(), since)
			if err != nil {
				return err
			}
			if len(costs) == 0 {
				fmt.Println("No ledger entries in range.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tCALLS\tCOST (USD)")
			for _, c := range costs {
				fmt.Fprintf(w, "%s\t%d\t%.4f\n", c.Date, c.Calls, c.CostUSD)
			}
			return w.Flush()
		},
	}
	dailyCmd.Flags().IntVar(&days, "days", 30, "number of days to include")

	sessionCmd := &cobra.Command{
		Use:   "session <session-id>",
		Short: "List the ledger entries of one chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := a.ledger.BySession(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printEntries(entries)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.AddCommand(recentCmd, dailyCmd, sessionCmd)
	return cmd
}

func printEntries(entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		fmt.Println("No ledger entries found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSESSION\tMODEL\tPROMPT\tCOMPLETION\tCOST (USD)\tBLOCKED")
	for _, e := range entries {
		session := "-"
		if e.SessionID != nil {
			session = *e.SessionID
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%.4f\t%t\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), session, e.Model,
			e.PromptTokens, e.CompletionTokens, e.CostUSD, e.BlockedAfter)
	}
	return w.Flush()
}
