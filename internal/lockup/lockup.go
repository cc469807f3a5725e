// Package lockup implements the lock-duration policy: validating requested
// lockup day counts against the configured bounds, deriving absolute
// deadlines, and extending existing locks.
package lockup

import (
	"errors"
	"fmt"
	"time"

	"github.com/emberfi/stake-engine/internal/model"
)

var (
	// ErrInvalidLockupDays is returned when the requested lockup falls
	// outside [minLockupDays, maxLockupDays]. Both ends are inclusive.
	ErrInvalidLockupDays = errors.New("lockup: lockup days outside configured bounds")

	// ErrInvalidExtendDays is returned when an extension would leave the
	// total remaining lock outside the configured bounds.
	ErrInvalidExtendDays = errors.New("lockup: extended lock outside configured bounds")

	// ErrReachedDeadline is returned when extending a lock whose deadline
	// has already passed.
	ErrReachedDeadline = errors.New("lockup: deadline already reached")
)

// Validate checks lockupDays against [minDays, maxDays] and returns the
// absolute deadline. The day-to-seconds product cannot overflow int64: day
// counts are bounded by configuration and 2^63 seconds is on the order of
// 10^11 years, so no saturating arithmetic is needed here.
func Validate(now time.Time, lockupDays, minDays, maxDays int64) (time.Time, error) {
	if lockupDays < minDays || lockupDays > maxDays {
		return time.Time{}, fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidLockupDays, lockupDays, minDays, maxDays)
	}
	return Deadline(now, lockupDays), nil
}

// Deadline returns now + lockupDays whole days.
func Deadline(now time.Time, lockupDays int64) time.Time {
	return now.Add(time.Duration(lockupDays*model.SecondsPerDay) * time.Second)
}

// Extend pushes deadline out by extendDays whole days. The deadline must not
// have passed yet, and the total remaining lock measured in whole days from
// now (floor) must stay within [minDays, maxDays].
func Extend(now, deadline time.Time, extendDays, minDays, maxDays int64) (time.Time, error) {
	if !deadline.After(now) {
		return time.Time{}, fmt.Errorf("%w: deadline %s", ErrReachedDeadline, deadline.UTC().Format(time.RFC3339))
	}
	newDeadline := Deadline(deadline, extendDays)
	remaining := int64(newDeadline.Sub(now)/time.Second) / model.SecondsPerDay
	if remaining < minDays || remaining > maxDays {
		return time.Time{}, fmt.Errorf("%w: %d days remaining not in [%d, %d]",
			ErrInvalidExtendDays, remaining, minDays, maxDays)
	}
	return newDeadline, nil
}

// RemainingDays returns the number of locked days left before deadline,
// rounded up: any partial day counts as a full one, so the protocol never
// under-collects the early-exit clawback. Zero when the deadline has passed.
func RemainingDays(now, deadline time.Time) int64 {
	if !deadline.After(now) {
		return 0
	}
	day := int64(24 * time.Hour)
	return (int64(deadline.Sub(now)) + day - 1) / day
}
