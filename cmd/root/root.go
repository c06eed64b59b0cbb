// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"

	"fjacquet/notif-ledger/internal/config"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input  string
	Output string
}

var (
	// Log is the shared logger instance for commands
	Log = logging.NewDefault()

	// AppConfig is loaded once per invocation by PersistentPreRunE.
	AppConfig *config.Config

	// AppContainer is built lazily by GetContainer and closed after the command.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "notif-ledger",
		Short: "Turn bank and mobile-money notifications into a categorized ledger.",
		Long: `notif-ledger reads SMS and email notifications from financial institutions,
extracts amount, direction, counterparty and account, categorizes each one,
stores it exactly once and keeps budgets up to date.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// SharedFlags are accessible to all commands
	SharedFlags = CommonFlags{}

	// ConfigFile is an explicit config file path; empty searches the default locations.
	ConfigFile string
	// LogLevel overrides log.level when set.
	LogLevel string
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input CSV file or directory of messages")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
	Cmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default: config.yaml in $HOME/.notif-ledger, .notif-ledger or .)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, args []string) error {
	envFile, envErr := config.LoadEnv()

	cfg, err := config.InitializeConfigFile(ConfigFile)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	AppConfig = cfg
	Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	if envErr != nil {
		Log.WithError(envErr).Warn("Failed to load .env file")
	} else if envFile != "" {
		Log.Debug("Loaded environment variables", logging.F(logging.FieldFile, envFile))
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if AppContainer == nil {
		return
	}
	if err := AppContainer.Close(); err != nil {
		Log.WithError(err).Warn("Failed to close container")
	}
	AppContainer = nil
}

// GetContainer builds the application container on first use.
func GetContainer(ctx context.Context) (*container.Container, error) {
	if AppContainer != nil {
		return AppContainer, nil
	}
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c, err := container.NewContainer(ctx, AppConfig, container.WithLogger(Log))
	if err != nil {
		return nil, err
	}
	AppContainer = c
	return c, nil
}

// InputPath returns --input or the configured inbox path.
func InputPath() string {
	if SharedFlags.Input != "" {
		return SharedFlags.Input
	}
	if AppConfig != nil {
		return AppConfig.Inbox.Path
	}
	return ""
}
