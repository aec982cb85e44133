package render

import (
	"strings"
	"testing"
)

func TestScheduled(t *testing.T) {
	msg := Scheduled("Aminah", "2025-04-02")
	if !strings.Contains(msg.Body, "Dear Aminah") {
		t.Fatalf("missing greeting: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "2025-04-02") {
		t.Fatalf("missing date: %q", msg.Body)
	}
}

func TestMissed_NamesBothDates(t *testing.T) {
	msg := Missed("", "2025-03-01", "2025-04-02")
	if !strings.Contains(msg.Body, "Dear patient") {
		t.Fatalf("missing fallback greeting: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "2025-03-01") || !strings.Contains(msg.Body, "2025-04-02") {
		t.Fatalf("missing dates: %q", msg.Body)
	}
}

func TestRescheduleResolved(t *testing.T) {
	approved := RescheduleResolved("Tan", true, "2025-03-14")
	if !strings.Contains(approved.Subject, "approved") {
		t.Fatalf("unexpected subject %q", approved.Subject)
	}
	declined := RescheduleResolved("Tan", false, "2025-03-10")
	if !strings.Contains(declined.Subject, "declined") {
		t.Fatalf("unexpected subject %q", declined.Subject)
	}
	if !strings.Contains(declined.Body, "2025-03-10") {
		t.Fatalf("declined message must restate the standing date: %q", declined.Body)
	}
}
