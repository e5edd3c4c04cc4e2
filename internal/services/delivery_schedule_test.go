package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHolidayCalendar struct {
	holidays map[string]bool
	err      error
	calls    int
}

func (f *fakeHolidayCalendar) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.holidays[date.Format("2006-01-02")], nil
}

func newSchedule(t *testing.T, holidays *fakeHolidayCalendar, now time.Time) *DeliverySchedule {
	t.Helper()
	schedule, err := NewDeliverySchedule(DeliveryScheduleDeps{
		Holidays: holidays,
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewDeliverySchedule error: %v", err)
	}
	return schedule
}

func TestDeliverySchedule_SkipsWeekendHolidays(t *testing.T) {
	ctx := context.Background()
	// 2024-06-08 is a Saturday.
	saturday := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	holidays := &fakeHolidayCalendar{holidays: map[string]bool{
		"2024-06-08": true,
		"2024-06-09": true,
	}}
	schedule := newSchedule(t, holidays, time.Date(2024, 6, 7, 10, 0, 0, 0, time.UTC))

	got, err := schedule.NextWorkingDay(ctx, saturday, true)
	if err != nil {
		t.Fatalf("NextWorkingDay error: %v", err)
	}
	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(monday) {
		t.Fatalf("got %s, want Monday %s", got, monday)
	}
}

func TestDeliverySchedule_AfterCutoffAdvancesBaseDate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 5, 15, 30, 0, 0, time.UTC)
	schedule := newSchedule(t, &fakeHolidayCalendar{}, now)

	got, err := schedule.NextWorkingDay(ctx, time.Time{}, false)
	if err != nil {
		t.Fatalf("NextWorkingDay error: %v", err)
	}
	tomorrow := time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(tomorrow) {
		t.Fatalf("got %s, want tomorrow %s", got, tomorrow)
	}
}

func TestDeliverySchedule_AfterCutoffDontAdvance(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 5, 15, 30, 0, 0, time.UTC)
	schedule := newSchedule(t, &fakeHolidayCalendar{}, now)

	got, err := schedule.NextWorkingDay(ctx, time.Time{}, true)
	if err != nil {
		t.Fatalf("NextWorkingDay error: %v", err)
	}
	today := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(today) {
		t.Fatalf("got %s, want today %s", got, today)
	}
}

func TestDeliverySchedule_BeforeCutoffKeepsToday(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	schedule := newSchedule(t, &fakeHolidayCalendar{}, now)

	got, err := schedule.NextWorkingDay(ctx, time.Time{}, false)
	if err != nil {
		t.Fatalf("NextWorkingDay error: %v", err)
	}
	today := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(today) {
		t.Fatalf("got %s, want today %s", got, today)
	}
}

func TestDeliverySchedule_CalendarError(t *testing.T) {
	ctx := context.Background()
	holidays := &fakeHolidayCalendar{err: errors.New("calendar down")}
	schedule := newSchedule(t, holidays, time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC))

	if _, err := schedule.NextWorkingDay(ctx, time.Time{}, false); err == nil {
		t.Fatalf("expected calendar error to propagate")
	}
}

func TestDeliverySchedule_EveryDayHoliday(t *testing.T) {
	ctx := context.Background()
	schedule, err := NewDeliverySchedule(DeliveryScheduleDeps{
		Holidays: alwaysHoliday{},
		Clock:    func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewDeliverySchedule error: %v", err)
	}

	if _, err := schedule.NextWorkingDay(ctx, time.Time{}, false); !errors.Is(err, ErrNoWorkingDay) {
		t.Fatalf("expected ErrNoWorkingDay, got %v", err)
	}
}

type alwaysHoliday struct{}

func (alwaysHoliday) IsHoliday(context.Context, time.Time) (bool, error) {
	return true, nil
}
