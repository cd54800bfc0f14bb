// Package cmd holds the siteprogress command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/siteprogress/config"
	"p9e.in/siteprogress/pkg/store"
)

// app is the state shared by every sub-command.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
	log        *zap.Logger
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "siteprogress",
		Short:         "Construction site progress tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.setupFlags(rootCmd)

	versionCmd := versionCommand()
	rootCmd.AddCommand(
		serveCommand(a),
		migrateCommand(a),
		siteCommand(a),
		userCommand(a),
		legacyCommand(a),
		exportCommand(a),
		diagnoseCommand(a),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.initialize()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.log != nil {
			_ = a.log.Sync()
		}
	}
	return rootCmd
}

// setupFlags defines the global flags and binds them into viper so they
// take precedence over file and environment values.
func (a *app) setupFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a config file (yaml, json or toml)")
	flags.String("db-driver", "", "Database driver: sqlite or postgres")
	flags.String("db-dsn", "", "Database DSN or SQLite file path")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: json or console")

	for key, flag := range map[string]string{
		"db.driver":  "db-driver",
		"db.dsn":     "db-dsn",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
}

func (a *app) initialize() error {
	settings, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.settings = settings
	a.log = log
	return nil
}

// openStore connects, migrates and returns the store.
func (a *app) openStore() (*gorm.DB, *store.Store, error) {
	db, err := config.OpenDatabase(a.settings.DB, a.log, a.settings.Log.Level == "debug")
	if err != nil {
		return nil, nil, err
	}
	if err := config.Migrations(db); err != nil {
		closeDB(db)
		return nil, nil, fmt.Errorf("could not run migrations: %w", err)
	}
	return db, store.New(db, a.log), nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	root := RootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
