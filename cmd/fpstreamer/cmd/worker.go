package cmd

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/supervisor"
)

const orphanCheckInterval = time.Second

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run the pipeline group as a supervised child process",
	Hidden: true,
	RunE:   runWorker,
}

func runWorker(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	l := logger.With(zap.String("generation", os.Getenv(supervisor.EnvGeneration)))
	l.Info("fpstreamer starting", zap.String("mode", "worker"), zap.Int("pid", os.Getpid()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	parent, _ := strconv.Atoi(os.Getenv(supervisor.EnvSupervisorPID))
	go supervisor.WatchParent(ctx, parent, orphanCheckInterval, l, cancel)

	return runGroup(ctx, cfg, l, cfg.Admin.WorkerHTTPAddr, "")
}
