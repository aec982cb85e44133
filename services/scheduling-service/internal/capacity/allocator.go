// Package capacity enforces the clinic's daily confirmed-appointment ceiling.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCapacity = errors.New("daily capacity limit must be positive")
	ErrExceeded        = errors.New("daily capacity exceeded")
)

// maxScanDays bounds the forward scan so a pathological data set cannot spin
// the allocator forever.
const maxScanDays = 366

// DayQuerier is the slice of the appointment store the allocator needs. The
// LockDay call must serialize concurrent allocations for the same date within
// the caller's transaction; the count is always recomputed from appointment
// rows so there is no separate reservation table to drift.
type DayQuerier interface {
	LockDay(ctx context.Context, day time.Time) error
	CountConfirmed(ctx context.Context, day time.Time) (int, error)
}

type Allocator struct {
	Limit int
}

// Allocate returns the first date at or after candidate with confirmed load
// under the limit, locking each inspected day. The returned date is never
// earlier than the candidate.
func (a Allocator) Allocate(ctx context.Context, q DayQuerier, candidate time.Time) (time.Time, error) {
	if a.Limit <= 0 {
		return time.Time{}, ErrInvalidCapacity
	}
	day := candidate
	for i := 0; i < maxScanDays; i++ {
		if err := q.LockDay(ctx, day); err != nil {
			return time.Time{}, err
		}
		n, err := q.CountConfirmed(ctx, day)
		if err != nil {
			return time.Time{}, err
		}
		if n < a.Limit {
			return day, nil
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no open day within %d days of %s", maxScanDays, candidate.Format("2006-01-02"))
}

// Check verifies a deliberately chosen date has room, without advancing.
// Used by the staff reschedule-approval path, which must fail loudly rather
// than silently move the visit.
func (a Allocator) Check(ctx context.Context, q DayQuerier, day time.Time) error {
	if a.Limit <= 0 {
		return ErrInvalidCapacity
	}
	if err := q.LockDay(ctx, day); err != nil {
		return err
	}
	n, err := q.CountConfirmed(ctx, day)
	if err != nil {
		return err
	}
	if n >= a.Limit {
		return ErrExceeded
	}
	return nil
}
