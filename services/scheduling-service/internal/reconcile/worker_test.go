package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/renalworks/pdcare/libs/clock"
)

type fakeMarker struct {
	claimOK  bool
	claims   []time.Time
	finishes []int
}

func (f *fakeMarker) Claim(_ context.Context, runDate time.Time) (bool, error) {
	f.claims = append(f.claims, runDate)
	return f.claimOK, nil
}

func (f *fakeMarker) Finish(_ context.Context, _ time.Time, processed int) error {
	f.finishes = append(f.finishes, processed)
	return nil
}

type fakeRunner struct {
	processed int
	err       error
	runs      int
}

func (f *fakeRunner) Run(context.Context, time.Time) (int, error) {
	f.runs++
	return f.processed, f.err
}

func newTestWorker(runner Runner, marker RunMarker, now time.Time, loc *time.Location) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(runner, marker, clock.Fixed{T: now}, loc, logger, WorkerConfig{CutoffHour: 22})
}

func TestTick_FailedSweepLeavesClaimUnfinished(t *testing.T) {
	marker := &fakeMarker{claimOK: true}
	runner := &fakeRunner{err: errors.New("db down")}
	now := time.Date(2025, 3, 5, 22, 30, 0, 0, time.UTC)

	newTestWorker(runner, marker, now, time.UTC).tick(context.Background())

	if len(marker.claims) != 1 {
		t.Fatalf("expected one claim, got %d", len(marker.claims))
	}
	if runner.runs != 1 {
		t.Fatalf("expected sweep to run once, got %d", runner.runs)
	}
	// No Finish: the claim stays reclaimable so a later tick can retry.
	if len(marker.finishes) != 0 {
		t.Fatalf("expected no finish after failed sweep, got %v", marker.finishes)
	}
}

func TestTick_SuccessfulSweepFinishesRun(t *testing.T) {
	marker := &fakeMarker{claimOK: true}
	runner := &fakeRunner{processed: 3}
	now := time.Date(2025, 3, 5, 22, 30, 0, 0, time.UTC)

	newTestWorker(runner, marker, now, time.UTC).tick(context.Background())

	if len(marker.finishes) != 1 || marker.finishes[0] != 3 {
		t.Fatalf("expected finish with processed=3, got %v", marker.finishes)
	}
}

func TestTick_BeforeCutoffDoesNothing(t *testing.T) {
	marker := &fakeMarker{claimOK: true}
	runner := &fakeRunner{}
	now := time.Date(2025, 3, 5, 20, 0, 0, 0, time.UTC)

	newTestWorker(runner, marker, now, time.UTC).tick(context.Background())

	if len(marker.claims) != 0 || runner.runs != 0 {
		t.Fatalf("expected no activity before cutoff, got claims=%d runs=%d", len(marker.claims), runner.runs)
	}
}

func TestTick_UnclaimedRunSkipsSweep(t *testing.T) {
	marker := &fakeMarker{claimOK: false}
	runner := &fakeRunner{}
	now := time.Date(2025, 3, 5, 22, 30, 0, 0, time.UTC)

	newTestWorker(runner, marker, now, time.UTC).tick(context.Background())

	if runner.runs != 0 {
		t.Fatalf("expected sweep to be skipped when another instance holds the claim, got %d runs", runner.runs)
	}
}

func TestTick_RunDateIsClinicLocalDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	marker := &fakeMarker{claimOK: true}
	runner := &fakeRunner{}
	// 22:30 in the clinic is already March 6 in UTC. The claim must still be
	// for the clinic day, March 5.
	now := time.Date(2025, 3, 5, 22, 30, 0, 0, est)

	newTestWorker(runner, marker, now, est).tick(context.Background())

	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if len(marker.claims) != 1 || !marker.claims[0].Equal(want) {
		t.Fatalf("expected claim for clinic day %s, got %v", want, marker.claims)
	}
}

func TestAfterCutoff(t *testing.T) {
	cases := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{"well before", 14, 0, false},
		{"one minute before", 21, 59, false},
		{"exactly at cutoff", 22, 0, true},
		{"after cutoff", 23, 30, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2025, 3, 5, tc.hour, tc.min, 0, 0, time.UTC)
			if got := AfterCutoff(now, 22); got != tc.want {
				t.Fatalf("AfterCutoff(%02d:%02d) = %v, want %v", tc.hour, tc.min, got, tc.want)
			}
		})
	}
}

func TestAfterCutoff_MidnightHour(t *testing.T) {
	// A zero cutoff means the sweep may run at any time of day.
	now := time.Date(2025, 3, 5, 0, 10, 0, 0, time.UTC)
	if !AfterCutoff(now, 0) {
		t.Fatal("cutoff hour 0 should always pass")
	}
}
