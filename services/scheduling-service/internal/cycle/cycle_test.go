package cycle

import (
	"errors"
	"testing"
	"time"
)

func TestNextVisit_TwentyEightDays(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextVisit(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 1, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextVisit_MonthRollover(t *testing.T) {
	base := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	got, err := NextVisit(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextVisit_StripsTimeOfDay(t *testing.T) {
	base := time.Date(2025, 1, 1, 17, 45, 12, 0, time.UTC)
	got, err := NextVisit(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("expected midnight, got %s", got)
	}
}

func TestNextVisit_ZeroDate(t *testing.T) {
	if _, err := NextVisit(time.Time{}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDay_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("MYT", 8*3600)
	// 01:30 local on Jan 2 is still Jan 1 in UTC.
	ts := time.Date(2025, 1, 2, 1, 30, 0, 0, loc)
	got := Day(ts)
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDayIn_WestOfUTC(t *testing.T) {
	// A 22:30 tick in an EST clinic is already the next day in UTC. The
	// clinic calendar, not the UTC one, decides what "today" is.
	est := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 3, 5, 22, 30, 0, 0, est)
	got := DayIn(ts, est)
	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected clinic day %s, got %s", want, got)
	}
}

func TestDayIn_EastOfUTC(t *testing.T) {
	myt := time.FixedZone("MYT", 8*3600)
	// 01:00 local on Mar 6 is still Mar 5 in UTC; the clinic day is Mar 6.
	ts := time.Date(2025, 3, 6, 1, 0, 0, 0, myt)
	got := DayIn(ts.UTC(), myt)
	want := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected clinic day %s, got %s", want, got)
	}
}

func TestDayIn_NilLocation(t *testing.T) {
	ts := time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC)
	if got := DayIn(ts, nil); !got.Equal(Day(ts)) {
		t.Fatalf("expected UTC fallback %s, got %s", Day(ts), got)
	}
}
