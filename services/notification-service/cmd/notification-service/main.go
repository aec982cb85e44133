package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/renalworks/pdcare/libs/config"
	"github.com/renalworks/pdcare/libs/db"
	"github.com/renalworks/pdcare/libs/httpx"
	"github.com/renalworks/pdcare/libs/kafkax"
	otelx "github.com/renalworks/pdcare/libs/otel"
	"github.com/renalworks/pdcare/libs/runtime"
	"github.com/renalworks/pdcare/services/notification-service/internal/consumer"
	"github.com/renalworks/pdcare/services/notification-service/internal/email"
	"github.com/renalworks/pdcare/services/notification-service/internal/inbox"
	"github.com/renalworks/pdcare/services/notification-service/internal/render"
	"github.com/renalworks/pdcare/services/notification-service/internal/sms"
	"github.com/renalworks/pdcare/services/notification-service/internal/storage"
)

// dispatcher fans a rendered message out to whichever channels the patient
// is reachable on and records every attempt. Send failures never propagate:
// scheduling state is the source of truth and a lost message must not block
// the appointment chain.
type dispatcher struct {
	repo        *storage.Repository
	emailSender email.Sender
	smsSender   sms.Sender
	logger      *slog.Logger
}

func (d *dispatcher) dispatch(ctx context.Context, eventType, appointmentID, patientID string, build func(name string) render.Message) {
	contact, err := d.repo.GetContact(ctx, patientID)
	if err != nil {
		if storage.IsNotFound(err) {
			d.logger.Info("no contact on file, skipping notification", "patient_id", patientID, "event_type", eventType)
			return
		}
		d.logger.Error("contact lookup failed", "err", err, "patient_id", patientID)
		return
	}
	msg := build(contact.FullName)

	if contact.Email != "" {
		status, reason := "sent", ""
		if err := d.emailSender.Send(contact.Email, msg.Subject, msg.Body); err != nil {
			status, reason = "failed", err.Error()
			d.logger.Error("email send failed", "err", err, "patient_id", patientID)
		}
		d.record(ctx, eventType, appointmentID, patientID, "email", contact.Email, msg, status, reason)
	}
	if contact.Phone != "" {
		status, reason := "sent", ""
		if err := d.smsSender.Send(ctx, contact.Phone, msg.Body); err != nil {
			status, reason = "failed", err.Error()
			d.logger.Error("sms send failed", "err", err, "patient_id", patientID)
		}
		d.record(ctx, eventType, appointmentID, patientID, "sms", contact.Phone, msg, status, reason)
	}
}

func (d *dispatcher) record(ctx context.Context, eventType, appointmentID, patientID, channel, recipient string, msg render.Message, status, reason string) {
	err := d.repo.Insert(ctx, storage.Notification{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		EventType:     eventType,
		Channel:       channel,
		Recipient:     recipient,
		Subject:       msg.Subject,
		Body:          msg.Body,
		Status:        status,
		FailureReason: reason,
	})
	if err != nil {
		d.logger.Error("failed to record notification", "err", err)
	}
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
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

	inboxRepo := inbox.NewRepository(pool)
	repo := storage.NewRepository(pool)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@pdcare.local"),
		config.String("SMTP_USER", ""),
		config.String("SMTP_PASS", ""),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
			config.String("SMS_SENDER_ID", "PDCare"),
		)
	default:
		smsSender = sms.NewNoopSender()
	}

	d := &dispatcher{repo: repo, emailSender: emailSender, smsSender: smsSender, logger: logger}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	start := func(topic string, handler consumer.Handler) {
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	start("clinic.patient.registered.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			PatientID string `json:"patient_id"`
			FullName  string `json:"full_name"`
			Phone     string `json:"phone"`
			Email     string `json:"email"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.PatientID == "" {
			logger.Error("invalid registration payload", "err", err)
			return nil
		}
		return repo.UpsertContact(ctx, storage.Contact{
			PatientID: payload.PatientID,
			FullName:  payload.FullName,
			Phone:     payload.Phone,
			Email:     payload.Email,
		})
	})

	start("scheduling.appointment.scheduled.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID   string `json:"appointment_id"`
			PatientID       string `json:"patient_id"`
			AppointmentDate string `json:"appointment_date"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.PatientID == "" {
			logger.Error("invalid scheduled payload", "err", err)
			return nil
		}
		d.dispatch(ctx, "scheduled", payload.AppointmentID, payload.PatientID, func(name string) render.Message {
			return render.Scheduled(name, payload.AppointmentDate)
		})
		return nil
	})

	start("scheduling.appointment.confirmed.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID   string `json:"appointment_id"`
			PatientID       string `json:"patient_id"`
			AppointmentDate string `json:"appointment_date"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.PatientID == "" {
			logger.Error("invalid confirmed payload", "err", err)
			return nil
		}
		d.dispatch(ctx, "confirmed", payload.AppointmentID, payload.PatientID, func(name string) render.Message {
			return render.Confirmed(name, payload.AppointmentDate)
		})
		return nil
	})

	start("scheduling.appointment.missed.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID string `json:"appointment_id"`
			PatientID     string `json:"patient_id"`
			MissedDate    string `json:"missed_date"`
			RescheduledTo string `json:"rescheduled_to"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.PatientID == "" {
			logger.Error("invalid missed payload", "err", err)
			return nil
		}
		d.dispatch(ctx, "missed", payload.AppointmentID, payload.PatientID, func(name string) render.Message {
			return render.Missed(name, payload.MissedDate, payload.RescheduledTo)
		})
		return nil
	})

	start("scheduling.reschedule.resolved.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID   string `json:"appointment_id"`
			PatientID       string `json:"patient_id"`
			Approved        bool   `json:"approved"`
			AppointmentDate string `json:"appointment_date"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.PatientID == "" {
			logger.Error("invalid resolved payload", "err", err)
			return nil
		}
		d.dispatch(ctx, "reschedule_resolved", payload.AppointmentID, payload.PatientID, func(name string) render.Message {
			return render.RescheduleResolved(name, payload.Approved, payload.AppointmentDate)
		})
		return nil
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithTimeout(time.Duration(config.Int("HTTP_TIMEOUT_SECONDS", 30))*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
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
