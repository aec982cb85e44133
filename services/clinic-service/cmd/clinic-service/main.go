package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/renalworks/pdcare/libs/auth"
	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/libs/config"
	"github.com/renalworks/pdcare/libs/db"
	"github.com/renalworks/pdcare/libs/httpx"
	"github.com/renalworks/pdcare/libs/kafkax"
	otelx "github.com/renalworks/pdcare/libs/otel"
	"github.com/renalworks/pdcare/libs/runtime"
	"github.com/renalworks/pdcare/services/clinic-service/internal/handlers"
	"github.com/renalworks/pdcare/services/clinic-service/internal/outbox"
	"github.com/renalworks/pdcare/services/clinic-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "clinic-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	clinicHandler := handlers.NewClinicHandler(repo, outboxRepo, clock.System{}, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	authed := func(next http.Handler) http.Handler { return next }
	if secret := config.String("AUTH_HS256_SECRET", ""); secret != "" {
		authed = httpx.WithAuth(secret)
	} else {
		logger.Warn("AUTH_HS256_SECRET not set; requests are unauthenticated")
	}
	staff := func(h http.HandlerFunc) http.Handler {
		return authed(httpx.RequireRole(h, auth.RoleStaff, auth.RoleAdmin))
	}
	mux.Handle("/api/v1/patients/register", staff(clinicHandler.RegisterPatient))
	mux.Handle("/api/v1/patients/archive", staff(clinicHandler.ArchivePatient))
	mux.Handle("/api/v1/patients", staff(clinicHandler.Patients))
	mux.Handle("/api/v1/providers", staff(clinicHandler.Providers))
	mux.Handle("/api/v1/prescriptions", staff(clinicHandler.Prescriptions))
	mux.Handle("/api/v1/treatments", staff(clinicHandler.Treatments))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithTimeout(time.Duration(config.Int("HTTP_TIMEOUT_SECONDS", 30))*time.Second),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
