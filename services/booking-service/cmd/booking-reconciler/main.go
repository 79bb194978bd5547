package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/app"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-reconciler")
	logger := runtime.NewLogger(service)
	if err := runtime.LoadDotEnv(); err != nil {
		logger.Warn("dotenv load failed", "err", err)
	}

	port, err := config.Port("PORT", "8093")
	if err != nil {
		panic(err)
	}
	cfg, err := app.LoadConfig(service)
	if err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store open failed", "err", err, "driver", cfg.StoreDriver)
		panic(err)
	}
	defer store.Close()

	notifier, err := notify.FromConfig(cfg.Notify, logger)
	if err != nil {
		panic(err)
	}
	runner := app.NewReconciler(cfg, store, clock.NewSystem(cfg.Location), notifier, logger)

	checks := []runtime.ReadyCheck{store.ReadyCheck()}
	// Report the API as a dependency when it is reachable over gRPC.
	if addr := config.String("BOOKING_GRPC_ADDR", ""); addr != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthReadyCheck(addr, "booking-service")})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "reconciler"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("reconciler stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("reconciler stopped")
}
