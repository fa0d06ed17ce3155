package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	cachepkg "github.com/wayfare-ai/wayfare/pkg/cache/sqlite"
	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/db"
	"github.com/wayfare-ai/wayfare/pkg/export"
	"github.com/wayfare-ai/wayfare/pkg/geo"
	"github.com/wayfare-ai/wayfare/pkg/ledger"
	"github.com/wayfare-ai/wayfare/pkg/llm"
	"github.com/wayfare-ai/wayfare/pkg/logging"
	"github.com/wayfare-ai/wayfare/pkg/orchestrator"
	"github.com/wayfare-ai/wayfare/pkg/providers/hotels"
	"github.com/wayfare-ai/wayfare/pkg/providers/opentripmap"
	"github.com/wayfare-ai/wayfare/pkg/spendcap"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

const defaultConfigPath = "wayfare.yaml"

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.PersistentFlags().StringVarP(path, "config", "c", defaultConfigPath, "path to config file")
}

// app holds the storage-level components every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	conn   *sqlx.DB
	store  *store.Store
	ledger *ledger.SQLiteLedger
	gate   *spendcap.Gate
	cache  *cachepkg.Cache
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, conn: conn}

	if a.store, err = store.New(conn); err != nil {
		return nil, a.fail(fmt.Errorf("init store: %w", err))
	}
	if a.ledger, err = ledger.New(conn); err != nil {
		return nil, a.fail(fmt.Errorf("init ledger: %w", err))
	}
	if a.cache, err = cachepkg.New(conn, cfg.Cache, logger); err != nil {
		return nil, a.fail(fmt.Errorf("init cache: %w", err))
	}
	a.gate = spendcap.New(cfg.Spend, a.ledger, logger)
	return a, nil
}

func (a *app) fail(err error) error {
	return errors.Join(err, a.Close())
}

// Close stops the cache sweeper and closes the database.
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.conn.Close())
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *app) exporter() *export.Exporter {
	return export.New(a.store, geo.NewTimezoneFinder())
}

// executor wires the providers behind the travel actions.
func (a *app) executor(ctx context.Context) (*actions.Executor, error) {
	hp, err := hotels.New(ctx, a.cfg.Hotels, a.cfg.Cache.TTL, a.store, a.cache, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init hotel provider: %w", err)
	}
	pois := opentripmap.New(a.cfg.OpenTripMap, a.cfg.Cache.TTL, a.cache, a.store, a.logger)
	return actions.NewExecutor(pois, hp, a.store, a.logger), nil
}

func (a *app) orchestrator(exec *actions.Executor) *orchestrator.Orchestrator {
	client := llm.NewOpenAI(a.cfg.LLM, a.logger)
	return orchestrator.New(a.cfg.LLM, a.gate, a.store, client, exec, a.logger)
}
