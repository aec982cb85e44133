// Package reconcile closes out overdue, unattended appointments and books
// their replacements. It runs nightly after the clinic day has ended.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/capacity"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/cycle"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/outbox"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/schedule"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/storage"
)

const sweepBatchSize = 500

type Sweeper struct {
	repo   *storage.AppointmentRepository
	outbox *outbox.Repository
	alloc  capacity.Allocator
	clk    clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

func NewSweeper(repo *storage.AppointmentRepository, outboxRepo *outbox.Repository, alloc capacity.Allocator, clk clock.Clock, loc *time.Location, logger *slog.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{
		repo:   repo,
		outbox: outboxRepo,
		alloc:  alloc,
		clk:    clk,
		loc:    loc,
		logger: logger,
	}
}

// Run sweeps every appointment dated before asOf's clinic-local day that is
// still pending and unswept. Each record is its own transaction; one bad
// record is logged and skipped, never aborting the rest. Returns how many
// records were actually reconciled.
func (s *Sweeper) Run(ctx context.Context, asOf time.Time) (int, error) {
	today := cycle.DayIn(asOf, s.loc)
	ids, err := s.repo.ListOverdueIDs(ctx, today, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		switch err := s.processOne(ctx, id, today); {
		case err == nil:
			processed++
		case errors.Is(err, schedule.ErrAlreadyClosed):
			// Another run got here first; the remarks guard held.
		default:
			s.logger.Error("missed-visit reconciliation failed", "appointment_id", id, "err", err)
		}
	}
	return processed, nil
}

func (s *Sweeper) processOne(ctx context.Context, id string, today time.Time) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}

	outcome, err := schedule.PlanMissed(appt, today)
	if err != nil {
		return err
	}

	assigned, err := s.alloc.Allocate(ctx, s.repo.DayLocker(tx), outcome.Candidate)
	if err != nil {
		return err
	}
	outcome, err = schedule.FinalizeMissedSuccessor(appt, assigned, s.clk.Now())
	if err != nil {
		return err
	}

	if err := s.repo.Create(ctx, tx, &outcome.Successor); err != nil {
		return err
	}
	if err := s.repo.MarkMissed(ctx, tx, appt.ID, outcome.Remarks, outcome.Successor.ID); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"provider_id":    appt.ProviderID,
		"missed_date":    appt.AppointmentDate.Format("2006-01-02"),
		"rescheduled_to": outcome.Successor.AppointmentDate.Format("2006-01-02"),
		"successor_id":   outcome.Successor.ID,
		"missed_count":   outcome.Successor.MissedCount,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "scheduling.appointment.missed.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
