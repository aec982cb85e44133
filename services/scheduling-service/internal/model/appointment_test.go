package model

import "testing"

func TestParseConfirmationStatus_NormalizesCase(t *testing.T) {
	got, err := ParseConfirmationStatus("  Pending_Reschedule ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ConfirmationPendingReschedule {
		t.Fatalf("expected pending_reschedule, got %q", got)
	}
}

func TestParseConfirmationStatus_Unknown(t *testing.T) {
	if _, err := ParseConfirmationStatus("cancelled"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseCheckupStatus(t *testing.T) {
	for _, raw := range []string{"pending", "IN_PROGRESS", "Completed", "missed"} {
		if _, err := ParseCheckupStatus(raw); err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
	}
	if _, err := ParseCheckupStatus("no_show"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestCheckupStatus_ForwardOnly(t *testing.T) {
	cases := []struct {
		from, to CheckupStatus
		want     bool
	}{
		{CheckupPending, CheckupInProgress, true},
		{CheckupPending, CheckupCompleted, true},
		{CheckupPending, CheckupMissed, true},
		{CheckupInProgress, CheckupCompleted, true},
		{CheckupInProgress, CheckupMissed, false},
		{CheckupCompleted, CheckupPending, false},
		{CheckupCompleted, CheckupInProgress, false},
		{CheckupMissed, CheckupPending, false},
		{CheckupMissed, CheckupCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCheckupStatus_Closed(t *testing.T) {
	if CheckupPending.Closed() || CheckupInProgress.Closed() {
		t.Fatal("open states reported closed")
	}
	if !CheckupCompleted.Closed() || !CheckupMissed.Closed() {
		t.Fatal("terminal states reported open")
	}
}
