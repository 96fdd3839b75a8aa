package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/admin"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/supervisor"
)

var inProcess bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline group under a watchdog that restarts it",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&inProcess, "in-process", false, "run the group in this process instead of a child process")
}

func runWatch(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	logger.Info("fpstreamer starting", zap.String("mode", "watch"), zap.Bool("inProcess", inProcess))

	// Fail fast on a bad remote listing; every generation fetches its own.
	if _, err := loadChannels(ctx, cfg, logger); err != nil {
		return err
	}

	factory, err := unitFactory()
	if err != nil {
		return err
	}

	health := admin.NewHealth()
	opts := supervisor.Options{
		PollInterval: cfg.Supervisor.PollInterval,
		MaxAge:       cfg.Supervisor.MaxAge,
		StopGrace:    cfg.Supervisor.StopGrace,
		Sampler:      supervisor.SampleProcess,
		OnAlive:      health.SetServing,
	}
	if cfg.Supervisor.RestartSchedule != "" {
		sched, err := cron.ParseStandard(cfg.Supervisor.RestartSchedule)
		if err != nil {
			return fmt.Errorf("supervisor.restart_schedule: %w", err)
		}
		opts.Schedule = sched
	}
	sup := supervisor.New(factory, opts, logger)

	router := admin.NewRouter(admin.RouterOptions{
		Status:      func() any { return sup.Status() },
		Ready:       health.Serving,
		CORSOrigins: cfg.Admin.CORSOrigins,
	}, logger)
	srv := admin.NewServer(cfg.Admin.HTTPAddr, cfg.Admin.GRPCAddr, router, health, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

func unitFactory() (supervisor.Factory, error) {
	if inProcess {
		return func(generation string) supervisor.Unit {
			l := logger.With(zap.String("generation", generation))
			return supervisor.NewFuncUnit(generation, func(ctx context.Context) error {
				return runGroup(ctx, cfg, l, cfg.Admin.WorkerHTTPAddr, "")
			})
		}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	args := []string{"worker"}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	if envFile != "" {
		if abs, err := filepath.Abs(envFile); err == nil {
			args = append(args, "--env-file", abs)
		}
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	return func(generation string) supervisor.Unit {
		return supervisor.NewProcessUnit(generation, exe, args, logger)
	}, nil
}
