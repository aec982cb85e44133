package cycle

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInConfirmWindow(t *testing.T) {
	visit := date(2025, 3, 10)
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"three days before", date(2025, 3, 7), false},
		{"two days before", date(2025, 3, 8), true},
		{"one day before", date(2025, 3, 9), true},
		{"visit day", date(2025, 3, 10), true},
		{"day after", date(2025, 3, 11), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InConfirmWindow(tc.now, visit, 2); got != tc.want {
				t.Fatalf("InConfirmWindow(%s) = %v, want %v", tc.now.Format("2006-01-02"), got, tc.want)
			}
		})
	}
}

func TestInConfirmWindow_IgnoresTimeOfDay(t *testing.T) {
	visit := date(2025, 3, 10)
	// 23:59 two days before is still within the window.
	now := time.Date(2025, 3, 8, 23, 59, 0, 0, time.UTC)
	if !InConfirmWindow(now, visit, 2) {
		t.Fatal("late-evening confirmation inside the window was rejected")
	}
}

func TestReminderFor(t *testing.T) {
	now := date(2025, 3, 1)
	cases := []struct {
		name string
		date time.Time
		want ReminderStatus
	}{
		{"same day", date(2025, 3, 1), ReminderToday},
		{"next day", date(2025, 3, 2), ReminderTomorrow},
		{"three days out", date(2025, 3, 4), ReminderInWeek},
		{"seven days out", date(2025, 3, 8), ReminderInWeek},
		{"eight days out", date(2025, 3, 9), ReminderNone},
		{"yesterday", date(2025, 2, 28), ReminderNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReminderFor(now, tc.date); got != tc.want {
				t.Fatalf("ReminderFor = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsPast(t *testing.T) {
	now := date(2025, 3, 10)
	if IsPast(now, date(2025, 3, 10)) {
		t.Fatal("visit day itself must not be past")
	}
	if !IsPast(now, date(2025, 3, 9)) {
		t.Fatal("yesterday should be past")
	}
}

func TestDaysUntil_Signed(t *testing.T) {
	if d := DaysUntil(date(2025, 3, 10), date(2025, 3, 7)); d != -3 {
		t.Fatalf("expected -3, got %d", d)
	}
	if d := DaysUntil(date(2025, 3, 10), date(2025, 4, 7)); d != 28 {
		t.Fatalf("expected 28, got %d", d)
	}
}
