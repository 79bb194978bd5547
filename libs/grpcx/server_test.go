package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}

func TestHealthReadyCheck(t *testing.T) {
	addr := freeAddr(t)
	srv := NewServer()
	srv.SetServing("booking", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, addr, slog.New(slog.NewTextHandler(io.Discard, nil))) }()
	defer func() {
		cancel()
		<-done
	}()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()
	if err := HealthReadyCheck(addr, "booking")(checkCtx); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	srv.SetServing("booking", false)
	if err := HealthReadyCheck(addr, "booking")(checkCtx); err == nil {
		t.Fatalf("expected not serving error")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if RequestIDFromContext(ctx) != "" {
		t.Fatalf("empty id should not be stored")
	}
	ctx = WithRequestID(ctx, "abc")
	if RequestIDFromContext(ctx) != "abc" {
		t.Fatalf("expected abc")
	}
	if len(NewRequestID()) != 32 {
		t.Fatalf("expected 32 hex chars")
	}
}
