package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP server",
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

			srv := server.New(a.cfg, server.Deps{
				Chat:     a.orchestrator(exec),
				Sessions: a.store,
				Exporter: a.exporter(),
				Spend:    a.gate,
				Ledger:   a.ledger,
				Cache:    a.cache,
			}, a.logger)

			a.logger.Info("starting wayfare",
				zap.String("config", configPath),
				zap.String("model", a.cfg.LLM.Model),
				zap.String("hotel_provider", a.cfg.Hotels.Provider),
				zap.Float64("monthly_cap_usd", a.cfg.Spend.MonthlyCapUSD),
			)
			return srv.ListenAndServe(ctx)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
