package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewServer("127.0.0.1:0", logging.Nop())

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		st, err := s.Check(ctx, service)
		require.NoError(t, err)
		return st
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(Storage))

	s.SetWhatsApp(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(WhatsApp))

	s.SetStorage(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(Storage))

	s.SetStorage(true)
	s.SetWhatsApp(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(Storage))

	_, err := s.Check(ctx, "unknown.Service")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestInterceptor_PassesThrough(t *testing.T) {
	s := NewServer("", logging.Nop())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestRun_ServesHealthAndStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewServer("127.0.0.1:99999", logging.Nop())

	err := s.Run(context.Background())
	require.Error(t, err)
}

func TestRun_AnswersOverNetwork(t *testing.T) {
	s := NewServer("127.0.0.1:50599", logging.Nop())
	s.SetWhatsApp(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	conn, err := grpc.NewClient("127.0.0.1:50599", grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	var resp *healthpb.HealthCheckResponse
	require.Eventually(t, func() bool {
		callCtx, c := context.WithTimeout(ctx, 200*time.Millisecond)
		defer c()
		resp, err = client.Check(callCtx, &healthpb.HealthCheckRequest{})
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServingStatus(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(true))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(false))
}
