package calview

import (
	"time"

	"jarviscal/internal/model"
)

// Day is one column of the week grid.
type Day struct {
	Date    time.Time
	IsToday bool
	Slots   map[int][]model.CalendarEvent
}

// Events returns the events of one hour; nil when the slot is empty.
func (d Day) Events(hour int) []model.CalendarEvent {
	return d.Slots[hour]
}

// Week is the full grid for the week containing a reference date.
type Week struct {
	Start time.Time
	Days  [7]Day
	Hours []int
	// Total counts every event in the input, including ones outside the grid.
	Total int
}

// BuildWeek projects events onto the week containing ref. now marks today
// and is converted into ref's location.
func BuildWeek(events []model.CalendarEvent, ref time.Time, hours HourRange, now time.Time) Week {
	start := WeekStart(ref)
	w := Week{
		Start: start,
		Hours: hours.Hours(),
		Total: len(events),
	}
	now = now.In(start.Location())
	for i, date := range WeekDays(start) {
		w.Days[i] = Day{
			Date:    date,
			IsToday: IsSameCalendarDay(date, now),
			Slots:   SlotsForDay(events, date, hours),
		}
	}
	return w
}

// Placed counts events that landed in a slot of the grid.
func (w Week) Placed() int {
	n := 0
	for _, d := range w.Days {
		for _, evs := range d.Slots {
			n += len(evs)
		}
	}
	return n
}
