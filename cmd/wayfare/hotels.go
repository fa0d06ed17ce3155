package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wayfare-ai/wayfare/pkg/providers/hotels"
)

func newHotelsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "hotels",
		Short: "Manage hotel data",
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the stub hotel catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := hotels.NewStub(a.store, a.logger).Seed(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d stub hotels.\n", n)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.AddCommand(seedCmd)
	return cmd
}
