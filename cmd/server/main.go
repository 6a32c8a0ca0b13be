package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/config"
	"github.com/soaringjerry/Canvass/internal/db"
	"github.com/soaringjerry/Canvass/internal/logger"
)

type rootFlags struct {
	envFile       string
	addr          string
	dbDriver      string
	dbDSN         string
	migrationsDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "canvass",
		Short:         "Survey creation and response collection server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", ".env", "optional .env file to load before reading the environment")
	pf.StringVar(&f.addr, "addr", "", "listen address (overrides CANVASS_ADDR)")
	pf.StringVar(&f.dbDriver, "db-driver", "", "sqlite3 or postgres (overrides CANVASS_DB_DRIVER)")
	pf.StringVar(&f.dbDSN, "db-dsn", "", "database path or DSN (overrides CANVASS_DB_DSN)")
	pf.StringVar(&f.migrationsDir, "migrations", "", "migrations directory (overrides CANVASS_MIGRATIONS_DIR)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), f)
			},
		},
		newMigrateCmd(f),
		newCreateAdminCmd(f),
	)
	return root
}

// app is the loaded configuration plus a migrated store, shared by every command.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *db.Store
}

func loadConfig(f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.dbDriver != "" {
		cfg.Database.Driver = f.dbDriver
	}
	if f.dbDSN != "" {
		cfg.Database.DSN = f.dbDSN
	}
	if f.migrationsDir != "" {
		cfg.Database.MigrationsDir = f.migrationsDir
	}
	return cfg, cfg.Validate()
}

func openApp(ctx context.Context, f *rootFlags) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "canvass")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	n, err := db.RunMigrations(ctx, conn, cfg.Database.MigrationsDir, log)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if n > 0 {
		log.Info("database migrated", zap.Int("applied", n))
	}
	store, err := db.NewStore(conn, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
