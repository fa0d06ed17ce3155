package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wayfare-ai/wayfare/pkg/store"
)

func newItineraryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "itinerary",
		Short: "Work with stored itineraries",
	}

	var format string
	exportCmd := &cobra.Command{
		Use:   "export <itinerary-id>",
		Short: "Export an itinerary as JSON or iCalendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "ics" {
				return fmt.Errorf("unknown format %q (use json or ics)", format)
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := context.Background()
			exp := a.exporter()
			id := args[0]

			if format == "ics" {
				cal, err := exp.ICS(ctx, id)
				if err != nil {
					return exportErr(id, err)
				}
				_, err = fmt.Fprint(os.Stdout, cal)
				return err
			}

			doc, err := exp.JSON(ctx, id)
			if err != nil {
				return exportErr(id, err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "output format: json or ics")

	addConfigFlag(cmd, &configPath)
	cmd.AddCommand(exportCmd)
	return cmd
}

func exportErr(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("itinerary %s not found", id)
	}
	return err
}
