package admin

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the gRPC health server, next to
// the overall "" service.
const ServiceName = "fpstreamer"

// Health tracks whether the pipeline group is running and reports it
// through the gRPC health protocol.
type Health struct {
	srv *health.Server
}

// NewHealth starts out NOT_SERVING.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.SetServing(false)
	return h
}

// SetServing flips both the overall and the named service status.
func (h *Health) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}

// Serving reports the current overall status.
func (h *Health) Serving() bool {
	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// Shutdown marks every service NOT_SERVING permanently.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
