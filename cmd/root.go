package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/addons"
	"github.com/simonvc/confutil/internal/config"
	"github.com/simonvc/confutil/internal/logging"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/store"
)

var (
	flagServer    string
	flagDB        string
	flagLogLevel  string
	flagLogFormat string
	flagCRM       bool
	flagUID       int64
)

var (
	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "confutil",
	Short: "Configure an ERP database: settings, taxes, charts of accounts, user rights",
	Long: "confutil drives the settings wizards and installers of an ERP record store. " +
		"It looks records up strictly (exactly one or at most one match), upserts per-company " +
		"settings and runs YAML install plans.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.FromConfig(cfg.Logging)
		return nil
	},
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		c.ServerURL = flagServer
	}
	if flags.Changed("db") {
		c.DBPath = flagDB
	}
	if flags.Changed("log-level") {
		c.Logging.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.Logging.Format = flagLogFormat
	}
	if flags.Changed("crm") {
		c.CRM = flagCRM
	}
	if flags.Changed("uid") {
		c.UID = flagUID
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8888", "Server address (env CONFUTIL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "confutil.db", "SQLite database path (env CONFUTIL_DB)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format: console or json (env LOG_FORMAT)")
	rootCmd.PersistentFlags().BoolVar(&flagCRM, "crm", false, "Seed the CRM names of the sales groups (env CONFUTIL_CRM)")
	rootCmd.PersistentFlags().Int64Var(&flagUID, "uid", orm.SuperuserID, "User id to act as (env CONFUTIL_UID)")
}

func Execute() error {
	return rootCmd.Execute()
}

// env is the identity commands act as.
func env() orm.Env {
	return orm.NewEnv(cfg.UID)
}

// openStore opens the configured database with every addon installed.
// Installing is idempotent, so a fresh file is seeded on first use.
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	var opts []addons.Option
	if cfg.CRM {
		opts = append(opts, addons.WithCRM())
	}
	if err := addons.Install(ctx, st, orm.NewEnv(orm.SuperuserID), opts...); err != nil {
		st.Close()
		return nil, fmt.Errorf("install addons: %w", err)
	}
	return st, nil
}
