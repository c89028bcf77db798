package service

import (
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// DayCutoffHour is the local hour at which a new business day begins.
const DayCutoffHour = 5

// BusinessDay attributes t to its calendar date in loc, or to the previous
// date when t falls before the cutoff hour.
func BusinessDay(t time.Time, loc *time.Location) internal.Day {
	local := t.In(loc)
	day := internal.DayOf(local)
	if local.Hour() < DayCutoffHour {
		day = day.AddDays(-1)
	}
	return day
}

// BusinessDayBounds is the half-open range [day 05:00, day+1 05:00) in loc.
func BusinessDayBounds(day internal.Day, loc *time.Location) (time.Time, time.Time) {
	return day.At(DayCutoffHour, loc), day.AddDays(1).At(DayCutoffHour, loc)
}

// CalendarDayBounds is the half-open range [midnight, next midnight) in loc.
func CalendarDayBounds(day internal.Day, loc *time.Location) (time.Time, time.Time) {
	return day.Start(loc), day.AddDays(1).Start(loc)
}
