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
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/app"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	if err := runtime.LoadDotEnv(); err != nil {
		logger.Warn("dotenv load failed", "err", err)
	}

	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
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
	clk := clock.NewSystem(cfg.Location)
	coord := booking.NewCoordinator(store, clk, notifier, logger)

	g, gctx := errgroup.WithContext(ctx)

	checks := []runtime.ReadyCheck{store.ReadyCheck()}
	var writer outbox.MessageWriter
	if cfg.KafkaBrokers != "" {
		w := kafkax.NewWriter(cfg.KafkaBrokers)
		defer func() { _ = w.Close() }()
		writer = w

		reader := consumer.NewReader(consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.DirectoryTopic,
		})
		directory := consumer.New(reader, store, logger)
		g.Go(func() error {
			directory.Run(gctx)
			return nil
		})
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	publisher := outbox.NewPublisher(store, writer, logger, outbox.PublisherConfig{
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})

	if cfg.ReconcileInProcess {
		runner := app.NewReconciler(cfg, store, clk, notifier, logger)
		g.Go(func() error { return runner.Run(gctx) })
	}

	grpcSrv := grpcx.NewServer()
	grpcSrv.SetServing(service, true)
	g.Go(func() error { return grpcSrv.Serve(gctx, ":"+grpcPort, logger) })

	limiter := httpx.RateLimitFromEnv(logger)
	defer func() { _ = limiter.Close() }()
	if limiter.Ready != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: limiter.Ready})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux,
		handlers.NewBookingHandler(coord, logger),
		handlers.NewScheduleHandler(schedule.NewService(store), logger),
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicyFromEnv()),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		limiter.Middleware,
		// Innermost so it sees the request the mux stamps with its pattern.
		httpx.WithMetrics,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr, "store", store.Driver, "time_zone", cfg.Location.String())
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
		logger.Error("booking service stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("booking service stopped")
}
