// Package calview projects a flat list of calendar events onto a Monday-based
// week grid of hour slots.
//
// Everything here is a pure function of its inputs. All calendar math uses
// the location carried by the day/reference argument; callers resolve the
// display zone once (config.Timezone) and pass times in it.
package calview

import (
	"fmt"
	"time"

	"jarviscal/internal/model"
)

// HourRange is an inclusive range of hours of day shown as grid rows.
type HourRange struct {
	First int
	Last  int
}

// DefaultHours spans 6 AM to 10 PM.
var DefaultHours = HourRange{First: 6, Last: 22}

// Hours lists every hour in the range.
func (h HourRange) Hours() []int {
	if h.Last < h.First {
		return nil
	}
	out := make([]int, 0, h.Last-h.First+1)
	for hr := h.First; hr <= h.Last; hr++ {
		out = append(out, hr)
	}
	return out
}

// Contains reports whether hour falls inside the range.
func (h HourRange) Contains(hour int) bool {
	return hour >= h.First && hour <= h.Last
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
// Sunday belongs to the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	wd := int(t.Weekday())
	offset := wd - 1
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

// WeekDays returns the seven days starting at start.
func WeekDays(start time.Time) [7]time.Time {
	var days [7]time.Time
	for i := range days {
		days[i] = time.Date(start.Year(), start.Month(), start.Day()+i, 0, 0, 0, 0, start.Location())
	}
	return days
}

// PrevWeek and NextWeek step a week start by seven days.
func PrevWeek(start time.Time) time.Time {
	return WeekStart(start.AddDate(0, 0, -7))
}

func NextWeek(start time.Time) time.Time {
	return WeekStart(start.AddDate(0, 0, 7))
}

// IsSameCalendarDay compares the calendar dates of a and b, ignoring time
// of day. b is converted into a's location first.
func IsSameCalendarDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SlotsForDay buckets the events that fall on day by hour of day. Only
// occupied hours inside hours appear in the result. Events with an
// unparsable date or an hour outside the range are left out of the grid.
// Input order is kept within a bucket and events is not modified.
func SlotsForDay(events []model.CalendarEvent, day time.Time, hours HourRange) map[int][]model.CalendarEvent {
	slots := make(map[int][]model.CalendarEvent)
	loc := day.Location()
	for _, ev := range events {
		start, err := ev.Start(loc)
		if err != nil {
			continue
		}
		if !IsSameCalendarDay(day, start) {
			continue
		}
		hr := start.Hour()
		if !hours.Contains(hr) {
			continue
		}
		slots[hr] = append(slots[hr], ev)
	}
	return slots
}

// FormatHourLabel renders an hour of day in 12-hour form: 0 -> "12 AM",
// 12 -> "12 PM", 13 -> "1 PM", 9 -> "9 AM".
func FormatHourLabel(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour == 12:
		return "12 PM"
	case hour > 12:
		return fmt.Sprintf("%d PM", hour-12)
	default:
		return fmt.Sprintf("%d AM", hour)
	}
}

// FormatEventTime renders t as "3:04 PM".
func FormatEventTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// WeekTitle renders the month heading of a week, e.g. "November 2025".
func WeekTitle(start time.Time) string {
	return start.Format("January 2006")
}

// WeekSubtitle renders e.g. "Week of Nov 10".
func WeekSubtitle(start time.Time) string {
	return "Week of " + start.Format("Jan 2")
}

// IsCurrentHour reports whether now falls on day within hour.
func IsCurrentHour(day time.Time, hour int, now time.Time) bool {
	now = now.In(day.Location())
	return IsSameCalendarDay(day, now) && now.Hour() == hour
}
