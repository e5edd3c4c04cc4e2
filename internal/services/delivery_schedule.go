package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultDeliveryCutoffHour = 14

	// maxHolidayLookahead bounds the holiday scan so a calendar that flags
	// every date cannot loop forever.
	maxHolidayLookahead = 366
)

// ErrNoWorkingDay is returned when no non-holiday date exists within the
// lookahead window.
var ErrNoWorkingDay = errors.New("delivery schedule: no working day found")

// DeliverySchedule derives delivery dates for new sales orders: orders placed
// after the daily cutoff schedule from the next day, and holidays are skipped
// until a working day is found.
type DeliverySchedule struct {
	holidays   HolidayCalendar
	clock      func() time.Time
	cutoffHour int
}

// DeliveryScheduleDeps enumerates the schedule's collaborators.
type DeliveryScheduleDeps struct {
	Holidays   HolidayCalendar
	Clock      func() time.Time
	CutoffHour int
}

// NewDeliverySchedule wires the schedule. A zero CutoffHour selects the
// default of 14:00.
func NewDeliverySchedule(deps DeliveryScheduleDeps) (*DeliverySchedule, error) {
	if deps.Holidays == nil {
		return nil, errors.New("delivery schedule: holiday calendar is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cutoff := deps.CutoffHour
	if cutoff == 0 {
		cutoff = defaultDeliveryCutoffHour
	}
	if cutoff < 0 || cutoff > 23 {
		return nil, fmt.Errorf("delivery schedule: cutoff hour %d out of range", cutoff)
	}

	return &DeliverySchedule{
		holidays:   deps.Holidays,
		clock:      clock,
		cutoffHour: cutoff,
	}, nil
}

// NextWorkingDay returns the first non-holiday date at or after the given
// date. A zero date means today. When the current time is past the cutoff and
// dontAdvance is false, the base date moves to tomorrow before holidays are
// considered.
func (s *DeliverySchedule) NextWorkingDay(ctx context.Context, date time.Time, dontAdvance bool) (time.Time, error) {
	now := s.clock()
	if date.IsZero() {
		date = now
	}
	date = truncateToDay(date)

	if now.Hour() >= s.cutoffHour && !dontAdvance {
		date = date.AddDate(0, 0, 1)
	}

	for i := 0; i < maxHolidayLookahead; i++ {
		holiday, err := s.holidays.IsHoliday(ctx, date)
		if err != nil {
			return time.Time{}, fmt.Errorf("delivery schedule: holiday lookup for %s: %w", date.Format("2006-01-02"), err)
		}
		if !holiday {
			return date, nil
		}
		date = date.AddDate(0, 0, 1)
	}

	return time.Time{}, ErrNoWorkingDay
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
