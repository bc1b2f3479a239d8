package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-scene-narrator-service/internal/observability/metrics"
)

func TestMuxEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordLoopTick("navigation")

	ready := false
	mux := newMux(reg, func() bool { return ready })

	tests := []struct {
		name     string
		path     string
		setReady bool
		wantCode int
		wantBody string
	}{
		{"liveness", "/healthz", false, http.StatusOK, "ok"},
		{"not ready", "/readyz", false, http.StatusServiceUnavailable, "not ready"},
		{"ready", "/readyz", true, http.StatusOK, "ready"},
		{"metrics", "/metrics", false, http.StatusOK, "ai_scene_narrator_loop_ticks_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready = tt.setReady
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			body, _ := io.ReadAll(rec.Body)
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body %q does not contain %q", body, tt.wantBody)
			}
		})
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	intercept := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := intercept(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "resp", nil
	})
	if err != nil || resp != "resp" {
		t.Fatalf("got (%v, %v), want (resp, nil)", resp, err)
	}

	wantErr := status.Error(codes.NotFound, "unknown service")
	_, err = intercept(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}
