package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "jarviscal/internal/log"
	"jarviscal/internal/model"
)

const productID = "-//jarviscal//calendar export//EN"

// ExportOptions controls Encode.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Location is the zone event_date values are interpreted in. If nil,
	// time.Local is used.
	Location *time.Location
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Encode renders events as an iCalendar document. Events whose date cannot
// be parsed are logged and skipped.
func Encode(events []model.CalendarEvent, opts ExportOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	written := 0
	for _, ev := range events {
		start, err := ev.Start(loc)
		if err != nil {
			appLog.Error("ics export: skipping event", err, "id", ev.ID, "event_date", ev.EventDate)
			continue
		}

		ve := cal.AddEvent(eventUID(ev))
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		ve.SetSummary(ev.Title)
		if strings.TrimSpace(ev.Description) != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Completed {
			ve.SetProperty(propCompleted, "TRUE")
		}
		if ev.ReminderMinutes != nil && *ev.ReminderMinutes >= 0 {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", *ev.ReminderMinutes))
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
		}
		written++
	}

	appLog.Debug("ics export completed", "events", written, "skipped", len(events)-written)
	return cal.Serialize()
}

// eventUID is stable for server events and random for drafts.
func eventUID(ev model.CalendarEvent) string {
	if ev.ID != 0 {
		return fmt.Sprintf("event-%d@jarviscal", ev.ID)
	}
	return uuid.NewString() + "@jarviscal"
}
