package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every channel in this process without a watchdog",
	RunE:  runRun,
}

func runRun(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	logger.Info("fpstreamer starting", zap.String("mode", "run"))
	return runGroup(ctx, cfg, logger, cfg.Admin.HTTPAddr, cfg.Admin.GRPCAddr)
}
