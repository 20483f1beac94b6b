// Package pickup schedules carrier pickups and consolidates pending pickup
// requests into per-location batches.
package pickup

import (
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// MaxSearchDays bounds the search for the next working day.
const MaxSearchDays = 60

// HolidayChecker reports non-working days per country.
type HolidayChecker interface {
	IsNonWorkingDay(country string, day time.Time) bool
}

// Scheduler computes the next pickup date for a country.
type Scheduler struct {
	holidays HolidayChecker
	now      func() time.Time
	loc      *time.Location
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the time zone calendar dates are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// NewScheduler creates a scheduler backed by holidays.
func NewScheduler(holidays HolidayChecker, opts ...Option) *Scheduler {
	s := &Scheduler{
		holidays: holidays,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextPickupDate returns the first working day strictly after today.
// Friday advances to Monday and Saturday to Monday; a landing day that is a
// holiday is advanced again from that day.
func (s *Scheduler) NextPickupDate(country string) (time.Time, error) {
	country = strings.ToUpper(country)
	now := s.now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	for i := 0; i < MaxSearchDays; i++ {
		day = advance(day)
		if !s.holidays.IsNonWorkingDay(country, day) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no working day within %d steps for %s", shipper.ErrSchedulingFailure, MaxSearchDays, country)
}

func advance(day time.Time) time.Time {
	switch day.Weekday() {
	case time.Friday:
		return day.AddDate(0, 0, 3)
	case time.Saturday:
		return day.AddDate(0, 0, 2)
	default:
		return day.AddDate(0, 0, 1)
	}
}
