package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "jarviscal/internal/log"
	"jarviscal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the zone the event_date wall-clock strings are written
	// in. If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd define the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps the expansion of a single UID. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the event drafts ready to be created on the backend.
type ExpandResult struct {
	// Events are sorted by start and carry no ID.
	Events []model.CalendarEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into concrete event drafts inside the
// configured range. RRULE, EXDATE and RECURRENCE-ID overrides are applied.
// All-day events are placed at midnight of their day.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var order []string
	for _, ev := range events {
		if ev.Floating {
			ev = pinFloating(ev, cfg.Location)
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	type occurrence struct {
		start time.Time
		event model.CalendarEvent
	}
	var all []occurrence

	for _, uid := range order {
		ov := overridesByUID[uid]
		n := 0
		truncated := false
		for _, ev := range baseByUID[uid] {
			starts := occurrenceStarts(ev, cfg)
			for _, start := range starts {
				if n == cfg.MaxOccurrencesPerEvent {
					truncated = true
					break
				}
				src := ev
				if o, ok := findOverrideForStart(ov, start); ok {
					src = o
					start = o.Start
				}
				all = append(all, occurrence{start: start, event: toDraft(src, start, cfg.Location)})
				n++
			}
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	slices.SortStableFunc(all, func(a, b occurrence) int {
		return a.start.Compare(b.start)
	})
	result.Events = make([]model.CalendarEvent, 0, len(all))
	for _, o := range all {
		result.Events = append(result.Events, o.event)
	}
	return result, nil
}

// occurrenceStarts lists the start instants of ev inside the range.
func occurrenceStarts(ev ParsedEvent, cfg ExpandConfig) []time.Time {
	if ev.RawRRule == "" {
		if ev.Start.Before(cfg.RangeStart) || ev.Start.After(cfg.RangeEnd) {
			return nil
		}
		return []time.Time{ev.Start}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	return set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
}

// pinFloating reads the wall clock of a floating event in loc.
func pinFloating(ev ParsedEvent, loc *time.Location) ParsedEvent {
	ev.Start = wallClock(ev.Start, loc)
	ev.End = wallClock(ev.End, loc)
	exDates := make([]time.Time, len(ev.ExDates))
	for i, ex := range ev.ExDates {
		exDates[i] = wallClock(ex, loc)
	}
	ev.ExDates = exDates
	if ev.Recurrence != nil {
		rid := wallClock(*ev.Recurrence, loc)
		ev.Recurrence = &rid
	}
	return ev
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toDraft(ev ParsedEvent, start time.Time, loc *time.Location) model.CalendarEvent {
	local := start.In(loc)
	if ev.AllDay {
		// All-day dates are floating; keep the calendar date as written.
		local = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	}
	draft := model.CalendarEvent{
		Title:       ev.Summary,
		Description: ev.Description,
		EventDate:   model.FormatEventDate(local),
		Completed:   ev.Completed,
	}
	if ev.ReminderMinutes != nil {
		m := *ev.ReminderMinutes
		draft.ReminderMinutes = &m
	}
	return draft
}
