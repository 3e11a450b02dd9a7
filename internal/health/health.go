// Package health exposes editor link status over the standard gRPC health protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service tracking the editor connection.
const ServiceName = "ueagent.editor"

// Reporter publishes editor connectivity as health serving status.
type Reporter struct {
	server *grpchealth.Server
}

// NewReporter starts in NOT_SERVING until the editor connects.
func NewReporter() *Reporter {
	server := grpchealth.NewServer()
	server.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Reporter{server: server}
}

// SetConnected flips the editor service between SERVING and NOT_SERVING.
func (r *Reporter) SetConnected(connected bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.server.SetServingStatus(ServiceName, status)
}

// Serve runs a gRPC server with the health service until ctx is cancelled.
func Serve(ctx context.Context, listener net.Listener, reporter *Reporter) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, reporter.server)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		reporter.server.Shutdown()
		srv.GracefulStop()
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	<-stopped
	return nil
}
