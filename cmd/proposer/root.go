package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/proposer/internal/config"
	"github.com/ShayCichocki/proposer/internal/logging"
)

// app carries state shared by subcommands once the root command has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "proposer",
		Short: "Generate R&D proposals with a panel of specialist models",
		Long: `Proposer turns a one-paragraph project brief into a multi-section R&D
proposal. Six specialists (background, technical, market, budget, planning
and impact) draft their sections concurrently, an integration pass
reconciles them, and every report is stored as a new version of its brief.

Configuration is read from ~/.config/proposer/config.yaml, then
.proposer.yaml in the current directory or a parent, then PROPOSER_*
environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (overrides the XDG and project files)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newGenerateCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newReportsCmd(a))
	cmd.AddCommand(newRequestsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads and validates configuration and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(cmd.ErrOrStderr(), cfg.Logging.File, level)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
