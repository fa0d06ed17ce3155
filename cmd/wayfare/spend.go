package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSpendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Inspect LLM spend against the monthly cap",
	}

	var month string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show spend vs the monthly cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := context.Background()
			status, err := a.gate.Status(ctx, month)
			if err != nil {
				return err
			}
			stats, err := a.ledger.MonthlyStats(ctx, status.Month)
			if err != nil {
				return err
			}

			state := "ok"
			switch {
			case status.IsCapped:
				state = "capped"
			case status.IsWarning:
				state = "warning"
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MONTH\tCAP\tSPENT\tREMAINING\tUSED\tCALLS\tBLOCKED\tSTATE")
			fmt.Fprintf(w, "%s\t$%.2f\t$%.4f\t$%.4f\t%.1f%%\t%d\t%d\t%s\n",
				status.Month, status.CapUSD, status.SpentUSD, status.RemainingUSD,
				status.PercentageUsed, stats.TotalCalls, stats.BlockedCalls, state)
			return w.Flush()
		},
	}
	statusCmd.Flags().StringVar(&month, "month", "", "month in YYYY-MM format (default: current month)")

	addConfigFlag(cmd, &configPath)
	cmd.AddCommand(statusCmd)
	return cmd
}
