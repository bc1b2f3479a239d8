package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"ai-scene-narrator-service/internal/observability/metrics"
)

func dial(t *testing.T, s *Server) grpc_health_v1.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func TestHealthFollowsConnectivity(t *testing.T) {
	s := NewServer("0", metrics.NewMetrics(prometheus.NewRegistry()))
	client := dial(t, s)

	tests := []struct {
		name   string
		online bool
		want   grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"offline", false, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
		{"back online", true, grpc_health_v1.HealthCheckResponse_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetOnline(tt.online)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if resp.GetStatus() != tt.want {
				t.Errorf("status = %v, want %v", resp.GetStatus(), tt.want)
			}
		})
	}
}

func TestOverallHealthServing(t *testing.T) {
	s := NewServer("0", metrics.NewMetrics(prometheus.NewRegistry()))
	client := dial(t, s)
	s.SetOnline(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("overall status = %v, want SERVING", resp.GetStatus())
	}
}
