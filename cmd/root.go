package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/config"
	"github.com/fakeyudi/minutes/internal/engine"
	"github.com/fakeyudi/minutes/internal/logging"
	"github.com/fakeyudi/minutes/internal/profile"
	"github.com/fakeyudi/minutes/internal/storage"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// noDict disables hiragana readings for this invocation.
var noDict bool

// logger writes to the log file; it is a no-op until PersistentPreRunE runs.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:          "minutes",
	Short:        "Transcribe Japanese speech, keep a history and summarize it with Gemini",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First-run: config missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to minutes! Looks like this is your first time.")
			if err := runSetup(cmd); err != nil {
				return err
			}
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		l, err := logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		logger = l
		logger.Debug("configuration loaded",
			zap.String("storage", cfg.Storage),
			zap.String("data_dir", cfg.DataDir),
			zap.String("model", cfg.Model),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// loadConfig merges the config files, overlays the environment, fills in
// the path defaults and validates the result.
func loadConfig() (config.Config, error) {
	global, err := config.LoadGlobal()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading global config: %w", err)
	}
	project, err := config.LoadProject()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading project config: %w", err)
	}
	c := config.Merge(global, project)

	env, err := config.LoadEnv(".env")
	if err != nil {
		return config.Config{}, err
	}
	c = config.ApplyEnv(c, env)

	if c.DataDir == "" {
		dir, err := storage.DataDir()
		if err != nil {
			return config.Config{}, err
		}
		c.DataDir = dir
	}
	if c.Socket == "" {
		c.Socket = engine.SocketPath()
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, logging.DefaultFile)
	}
	if err := config.Validate(c); err != nil {
		return config.Config{}, err
	}
	return c, nil
}

// openApp builds the application without a recognizer, for commands that
// only work on stored data.
func openApp() (*app.App, error) {
	return app.Open(cfg, nil, nil, logger)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noDict, "no-dict", false, "skip loading the hiragana dictionary")
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}
