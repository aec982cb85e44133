package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/renalworks/pdcare/libs/auth"
	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/libs/config"
	"github.com/renalworks/pdcare/libs/db"
	"github.com/renalworks/pdcare/libs/httpx"
	"github.com/renalworks/pdcare/libs/kafkax"
	otelx "github.com/renalworks/pdcare/libs/otel"
	"github.com/renalworks/pdcare/libs/runtime"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/capacity"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/consumer"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/handlers"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/inbox"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/outbox"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/reconcile"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/schedule"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/storage"
)

func clinicLocation(logger *slog.Logger) *time.Location {
	name := config.String("CLINIC_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Error("invalid CLINIC_TIMEZONE, falling back to UTC", "value", name, "err", err)
		return time.UTC
	}
	return loc
}

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8082")
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

	capacityLimit := config.Int("DAILY_CAPACITY_LIMIT", 80)
	windowDays := config.Int("CONFIRM_WINDOW_DAYS", 2)
	cutoffHour, err := config.Hour("RECONCILE_CUTOFF_HOUR", 22)
	if err != nil {
		panic(err)
	}
	loc := clinicLocation(logger)
	clk := clock.System{}

	repo := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository()
	alloc := capacity.Allocator{Limit: capacityLimit}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sweeper := reconcile.NewSweeper(repo, outboxRepo, alloc, clk, loc, logger)
	worker := reconcile.NewWorker(sweeper, repo.SweepMarker(), clk, loc, logger, reconcile.WorkerConfig{
		CutoffHour: cutoffHour,
		Interval:   5 * time.Minute,
	})
	go worker.Run(ctx)

	apptHandler := handlers.NewAppointmentHandler(repo, outboxRepo, alloc, clk, logger, windowDays)

	// New patient registrations arrive as events from the clinic service; the
	// first check-up and its follow-up are booked on receipt.
	inboxRepo := inbox.NewRepository(pool)
	registeredTopic := config.String("KAFKA_CONSUME_TOPIC", "clinic.patient.registered.v1")
	if strings.TrimSpace(registeredTopic) != "" {
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   registeredTopic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				PatientID        string `json:"patient_id"`
				ProviderID       string `json:"provider_id"`
				RegistrationDate string `json:"registration_date"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.PatientID == "" || payload.ProviderID == "" {
				logger.Error("missing required event fields", "topic", msg.Topic)
				return nil
			}
			date, err := time.Parse("2006-01-02", payload.RegistrationDate)
			if err != nil {
				logger.Error("invalid registration_date in event", "err", err, "topic", msg.Topic)
				return nil
			}

			_, _, err = apptHandler.CreateInitialSchedule(ctx, payload.PatientID, payload.ProviderID, date)
			if err == schedule.ErrScheduleExists {
				// Redelivery or re-registration; the chain already exists.
				logger.Info("schedule already exists", "patient_id", payload.PatientID)
				return nil
			}
			return err
		})
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	// Auth wraps only the API routes; the health probes stay open.
	authed := func(next http.Handler) http.Handler { return next }
	if secret := config.String("AUTH_HS256_SECRET", ""); secret != "" {
		authed = httpx.WithAuth(secret)
	} else {
		logger.Warn("AUTH_HS256_SECRET not set; requests are unauthenticated")
	}
	staff := func(h http.HandlerFunc) http.Handler {
		return authed(httpx.RequireRole(h, auth.RoleStaff, auth.RoleAdmin))
	}
	mux.Handle("/api/v1/schedules", staff(apptHandler.CreateSchedule))
	mux.Handle("/api/v1/appointments/start", staff(apptHandler.StartCheckup))
	mux.Handle("/api/v1/appointments/complete", staff(apptHandler.CompleteCheckup))
	mux.Handle("/api/v1/appointments/reschedule/decide", staff(apptHandler.DecideReschedule))
	mux.Handle("/api/v1/appointments", authed(http.HandlerFunc(apptHandler.List)))

	// Patient self-service endpoints additionally get the rate limit; they
	// face the public internet through the gateway.
	patientMux := http.NewServeMux()
	patientMux.HandleFunc("/api/v1/appointments/confirm", apptHandler.Confirm)
	patientMux.HandleFunc("/api/v1/appointments/reschedule", apptHandler.RequestReschedule)
	var limited http.Handler
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 30), time.Minute, service)
		limited = limiter.Middleware(logger, true)(patientMux)
	} else {
		limited = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 30), time.Minute).Middleware()(patientMux)
	}
	limited = authed(limited)
	mux.Handle("/api/v1/appointments/confirm", limited)
	mux.Handle("/api/v1/appointments/reschedule", limited)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithTimeout(time.Duration(config.Int("HTTP_TIMEOUT_SECONDS", 30))*time.Second),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
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
