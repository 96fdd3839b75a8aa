package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/admin"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/channels"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/fingerprint"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/httpclient"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/ingest"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/pipeline"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/resolver"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newHTTPClient(c *config.Config, l *zap.Logger) *httpclient.Client {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.Resolver.FetchTimeout
	return httpclient.New(hc, l)
}

// loadChannels returns the configured channels, fetching the stream list
// from the remote API first when it is enabled.
func loadChannels(ctx context.Context, c *config.Config, l *zap.Logger) ([]config.ChannelConfig, error) {
	if c.Remote.Enabled {
		client := channels.NewClient(newHTTPClient(c, l), c.Remote, l)
		streams, err := client.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("remote channel list: %w", err)
		}
		c = c.WithStreams(streams)
		if err := c.ValidateStreams(); err != nil {
			return nil, fmt.Errorf("remote channel list: %w", err)
		}
	}
	return c.Channels(), nil
}

func newDeps(c *config.Config, l *zap.Logger) pipeline.Deps {
	return pipeline.Deps{
		Resolver:  resolver.New(resolver.NewFetcher(c.Resolver.FetchTimeout, l), l, resolver.WithBlockPrivateTargets(c.Resolver.BlockPrivateTargets)),
		Decoder:   ingest.NewFFmpegDecoder(c.Decoder.FFmpegPath, l),
		Generator: fingerprint.NewCommandGenerator(c.Fingerprinter.Command, c.Fingerprinter.Args...),
	}
}

// runGroup runs one pipeline group in this process, with its admin
// listeners on httpAddr/grpcAddr, until every channel stops or ctx ends.
func runGroup(ctx context.Context, c *config.Config, l *zap.Logger, httpAddr, grpcAddr string) error {
	chans, err := loadChannels(ctx, c, l)
	if err != nil {
		return err
	}
	group := pipeline.NewGroup(chans, newDeps(c, l), l)

	health := admin.NewHealth()
	router := admin.NewRouter(admin.RouterOptions{
		Status:      func() any { return map[string]any{"channels": group.Status()} },
		Ready:       health.Serving,
		CORSOrigins: c.Admin.CORSOrigins,
	}, l)
	srv := admin.NewServer(httpAddr, grpcAddr, router, health, l)

	g, gctx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(gctx)
	defer stopAdmin()

	g.Go(func() error {
		defer stopAdmin()
		health.SetServing(true)
		err := group.Run(gctx)
		health.SetServing(false)
		return err
	})
	g.Go(func() error {
		return srv.Run(adminCtx)
	})
	return g.Wait()
}
