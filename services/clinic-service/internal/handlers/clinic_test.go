package handlers

import (
	"testing"
	"time"

	"github.com/renalworks/pdcare/libs/clock"
)

func TestRegistrationDate_DefaultsToClockDay(t *testing.T) {
	clk := clock.Fixed{T: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)}
	got, err := registrationDate(clk, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRegistrationDate_ExplicitDateWins(t *testing.T) {
	clk := clock.Fixed{T: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)}
	got, err := registrationDate(clk, " 2025-06-01 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRegistrationDate_Malformed(t *testing.T) {
	if _, err := registrationDate(clock.System{}, "15/06/2025"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}
