package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wayfare-ai/wayfare/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start Wayfare as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			exec, err := a.executor(ctx)
			if err != nil {
				return err
			}

			srv := mcp.New(mcp.Deps{
				Spend:    a.gate,
				Stats:    a.ledger,
				Cache:    a.cache,
				Actions:  exec,
				Sessions: a.store,
				Exporter: a.exporter(),
			}, version, a.logger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
