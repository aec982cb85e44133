package capacity

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDays counts confirmed visits per date and records lock order.
type fakeDays struct {
	counts map[string]int
	locked []string
}

func newFakeDays() *fakeDays {
	return &fakeDays{counts: map[string]int{}}
}

func (f *fakeDays) LockDay(_ context.Context, day time.Time) error {
	f.locked = append(f.locked, day.Format("2006-01-02"))
	return nil
}

func (f *fakeDays) CountConfirmed(_ context.Context, day time.Time) (int, error) {
	return f.counts[day.Format("2006-01-02")], nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAllocate_CandidateHasRoom(t *testing.T) {
	q := newFakeDays()
	q.counts["2025-04-01"] = 79

	got, err := Allocator{Limit: 80}.Allocate(context.Background(), q, day(2025, 4, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(2025, 4, 1)) {
		t.Fatalf("expected candidate date kept, got %s", got)
	}
}

func TestAllocate_AdvancesPastFullDays(t *testing.T) {
	q := newFakeDays()
	q.counts["2025-04-01"] = 80
	q.counts["2025-04-02"] = 80
	q.counts["2025-04-03"] = 12

	got, err := Allocator{Limit: 80}.Allocate(context.Background(), q, day(2025, 4, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(2025, 4, 3)) {
		t.Fatalf("expected 2025-04-03, got %s", got)
	}
	// Every inspected day must have been locked, in order.
	want := []string{"2025-04-01", "2025-04-02", "2025-04-03"}
	if len(q.locked) != len(want) {
		t.Fatalf("expected %d locks, got %v", len(want), q.locked)
	}
	for i := range want {
		if q.locked[i] != want[i] {
			t.Fatalf("lock order %v, want %v", q.locked, want)
		}
	}
}

func TestAllocate_NeverEarlierThanCandidate(t *testing.T) {
	q := newFakeDays()
	// Earlier days are wide open, but the scan must not look backwards.
	got, err := Allocator{Limit: 80}.Allocate(context.Background(), q, day(2025, 4, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Before(day(2025, 4, 15)) {
		t.Fatalf("allocated %s before the candidate", got)
	}
}

func TestAllocate_InvalidLimit(t *testing.T) {
	if _, err := (Allocator{}).Allocate(context.Background(), newFakeDays(), day(2025, 4, 1)); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestCheck_FullDay(t *testing.T) {
	q := newFakeDays()
	q.counts["2025-04-01"] = 80

	err := Allocator{Limit: 80}.Check(context.Background(), q, day(2025, 4, 1))
	if !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
}

func TestCheck_DoesNotAdvance(t *testing.T) {
	q := newFakeDays()
	q.counts["2025-04-01"] = 80
	q.counts["2025-04-02"] = 0

	// Check on a full day fails even though the next day is open.
	if err := (Allocator{Limit: 80}).Check(context.Background(), q, day(2025, 4, 1)); err == nil {
		t.Fatal("expected error on full day")
	}
	if len(q.locked) != 1 {
		t.Fatalf("expected one lock, got %v", q.locked)
	}
}
