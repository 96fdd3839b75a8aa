// Package cmd implements the fpstreamer command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fpstreamer",
	Short: "Live stream audio fingerprint uploader",
	Long: `fpstreamer decodes live audio streams, fingerprints rolling windows of
the audio and uploads the fingerprints to a recognition backend.

Without a subcommand it runs "watch" when supervisor.watchdog is set in the
configuration and "run" otherwise.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Supervisor.Watchdog {
			return runWatch(cmd, args)
		}
		return runRun(cmd, args)
	},
}

// Execute runs the CLI. Errors are already logged when it returns.
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	err := rootCmd.Execute()
	if err != nil {
		if logger != nil {
			logger.Error("fpstreamer failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "fpstreamer:", err)
		}
	}
	return err
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd == versionCmd {
			return nil
		}
		return setup()
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./fpstreamer.yaml or /etc/fpstreamer/fpstreamer.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(runCmd, watchCmd, workerCmd, versionCmd)
}

func setup() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	cfg = loaded

	l, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func newLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(lc.OutputPaths) > 0 {
		zc.OutputPaths = lc.OutputPaths
	}
	return zc.Build()
}
