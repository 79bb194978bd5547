package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	logger := runtime.NewLogger(service)
	if err := runtime.LoadDotEnv(); err != nil {
		logger.Warn("dotenv load failed", "err", err)
	}
	port, err := config.Port("PORT", "8080")
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

	var jwks *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwks = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_CACHE_TTL", 5*time.Minute))
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", "dev-secret"), jwks)

	limiter := httpx.RateLimitFromEnv(logger)
	defer func() { _ = limiter.Close() }()
	var checks []runtime.ReadyCheck
	if limiter.Ready != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: limiter.Ready})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")), verifier)

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicyFromEnv()),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		limiter.Middleware,
		httpx.WithMetrics,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
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
		logger.Error("gateway stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("http server stopped")
}

// registerRoutes proxies the booking API. Timetables and schedules are
// readable without a token; everything else carries the verified identity.
func registerRoutes(mux *http.ServeMux, bookingURL *url.URL, verifier *auth.Verifier) {
	bookingProxy := httputil.NewSingleHostReverseProxy(bookingURL)
	bookingProxy.Transport = otelhttp.NewTransport(http.DefaultTransport)

	public := stripIdentity(bookingProxy)
	mux.Handle("GET /api/v1/providers/{id}/timetable", public)
	mux.Handle("GET /api/v1/providers/{id}/schedule", public)

	authed := auth.RequireAuth(verifier)
	registerProxy(mux, "/api/v1/appointments", authed(bookingProxy))
	registerProxy(mux, "/api/v1/providers", authed(bookingProxy))
	registerProxy(mux, "/api/v1/schedule", authed(auth.RequireRole(auth.RoleProvider, auth.RoleAdmin)(bookingProxy)))
	registerProxy(mux, "/api/v1/admin", authed(auth.RequireRole(auth.RoleProvider, auth.RoleAdmin)(bookingProxy)))
}

// stripIdentity drops identity headers so anonymous callers cannot forge them.
func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(auth.HeaderUserID)
		r.Header.Del(auth.HeaderRole)
		next.ServeHTTP(w, r)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
