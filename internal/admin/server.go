package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

// Server runs the admin HTTP and gRPC listeners. An empty address disables
// the corresponding listener.
type Server struct {
	httpAddr string
	grpcAddr string
	handler  http.Handler
	health   *Health
	logger   *zap.Logger
}

// NewServer creates a server; handler may be nil when httpAddr is empty.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, health *Health, logger *zap.Logger) *Server {
	return &Server{
		httpAddr: httpAddr,
		grpcAddr: grpcAddr,
		handler:  handler,
		health:   health,
		logger:   logger.With(zap.String("component", "admin")),
	}
}

// Run serves until ctx is cancelled, then shuts both listeners down. Both
// listeners are bound before anything is served, so a listen error leaves
// nothing running.
func (s *Server) Run(ctx context.Context) error {
	var httpLn, grpcLn net.Listener
	if s.httpAddr != "" {
		ln, err := net.Listen("tcp", s.httpAddr)
		if err != nil {
			return fmt.Errorf("admin http listen: %w", err)
		}
		httpLn = ln
	}
	if s.grpcAddr != "" && s.health != nil {
		ln, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			if httpLn != nil {
				httpLn.Close()
			}
			return fmt.Errorf("admin grpc listen: %w", err)
		}
		grpcLn = ln
	}

	g, ctx := errgroup.WithContext(ctx)

	if httpLn != nil {
		srv := &http.Server{
			Handler:      s.handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("admin http listening", zap.String("addr", httpLn.Addr().String()))
			if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if grpcLn != nil {
		gs := grpc.NewServer()
		healthpb.RegisterHealthServer(gs, s.health.srv)
		g.Go(func() error {
			s.logger.Info("admin grpc listening", zap.String("addr", grpcLn.Addr().String()))
			if err := gs.Serve(grpcLn); err != nil {
				return fmt.Errorf("admin grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			s.health.Shutdown()
			gs.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}
