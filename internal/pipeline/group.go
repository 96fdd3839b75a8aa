package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
)

// Group runs a set of channel pipelines in one process. Channel failures
// are handled inside each channel and never end the group.
type Group struct {
	channels []*Channel
	logger   *zap.Logger
}

// NewGroup builds one channel pipeline per config.
func NewGroup(cfgs []config.ChannelConfig, deps Deps, logger *zap.Logger) *Group {
	g := &Group{logger: logger}
	for _, cfg := range cfgs {
		g.channels = append(g.channels, NewChannel(cfg, deps, logger))
	}
	return g
}

// Run starts every channel and blocks until all of them have stopped,
// either on their own or because ctx was cancelled.
func (g *Group) Run(ctx context.Context) error {
	g.logger.Info("pipeline group starting", zap.Int("channels", len(g.channels)))

	eg, ctx := errgroup.WithContext(ctx)
	for _, ch := range g.channels {
		eg.Go(func() error {
			ch.Start(ctx)
			ch.Wait()
			return nil
		})
	}
	err := eg.Wait()
	g.logger.Info("pipeline group stopped")
	return err
}

// Stop signals every channel.
func (g *Group) Stop() {
	for _, ch := range g.channels {
		ch.Stop()
	}
}

// Status returns a snapshot of every channel.
func (g *Group) Status() []ChannelStatus {
	out := make([]ChannelStatus, 0, len(g.channels))
	for _, ch := range g.channels {
		out = append(out, ch.Status())
	}
	return out
}
