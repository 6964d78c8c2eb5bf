package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakePinger struct{ fail atomic.Bool }

func (p *fakePinger) Ping(context.Context) error {
	if p.fail.Load() {
		return errors.New("db down")
	}
	return nil
}

const bufSize = 1 << 20

func startBufHealth(t *testing.T, h *Health) (healthpb.HealthClient, func()) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	go func() { _ = h.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); h.Stop(time.Second); _ = lis.Close() }
	return healthpb.NewHealthClient(cc), stop
}

func TestHealth_ReflectsDatabase(t *testing.T) {
	t.Parallel()

	db := &fakePinger{}
	h := NewHealth(db, zaptest.NewLogger(t), time.Second)
	cl, stop := startBufHealth(t, h)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := cl.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before first probe: %v", resp.GetStatus())
	}

	if st := h.Probe(ctx); st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("probe: %v", st)
	}
	resp, err = cl.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("serving: %v %v", resp.GetStatus(), err)
	}

	db.fail.Store(true)
	h.Probe(ctx)
	resp, err = cl.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("db down: %v %v", resp.GetStatus(), err)
	}
}

func TestHealth_WatchStopsWithContext(t *testing.T) {
	t.Parallel()

	h := NewHealth(&fakePinger{}, zaptest.NewLogger(t), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
