package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "jarviscal/internal/log"
)

// propCompleted carries the completion flag of exported events.
const propCompleted = ical.ComponentProperty("X-JARVIS-COMPLETED")

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string

	Summary     string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool
	// Floating is set when DTSTART carries neither a UTC suffix nor a
	// TZID, all-day dates included. Floating times are wall clock in the
	// zone Expand is given; EXDATE and RECURRENCE-ID values follow DTSTART.
	Floating bool

	// ReminderMinutes is taken from the first VALARM with a relative
	// trigger before the start; nil when there is none.
	ReminderMinutes *int
	Completed       bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - VTIMEZONE/TZID handling is left to the underlying library.
//   - All-day events are detected from the DTSTART value format.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded, not expanded; see Expand.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "source", src.Name())
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "source", src.Name())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "source", src.Name(), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(propCompleted); p != nil {
		out.Completed = strings.EqualFold(strings.TrimSpace(p.Value), "TRUE")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
		if !strings.HasSuffix(dtStartProp.Value, "Z") && propLocation(dtStartProp) == nil {
			out.Floating = true
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, propLocation(ridProp)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	for _, alarm := range ve.Alarms() {
		trig := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if trig == nil {
			continue
		}
		if m, ok := triggerMinutes(trig.Value); ok {
			out.ReminderMinutes = &m
			break
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string (EXDATE,
// RECURRENCE-ID). Values without a UTC suffix are read in loc; a nil loc
// keeps the wall clock in UTC for Expand to pin.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

// propLocation resolves the TZID parameter of p, nil when absent or unknown.
func propLocation(p *ical.IANAProperty) *time.Location {
	ids := p.ICalParameters[string(ical.ParameterTzid)]
	if len(ids) == 0 || ids[0] == "" {
		return nil
	}
	loc, err := time.LoadLocation(strings.Trim(ids[0], `"`))
	if err != nil {
		appLog.Debug("ics: unknown TZID, treating as floating", "tzid", ids[0])
		return nil
	}
	return loc
}

// triggerMinutes reads a relative VALARM trigger such as "-PT15M", "-PT1H"
// or "-P1D" and returns the minutes before start. Absolute or positive
// triggers are rejected.
func triggerMinutes(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "-P") {
		return 0, false
	}
	v = v[2:]

	total := 0
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, false
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				total += n * 7 * 24 * 60
			case r == 'D' && !inTime:
				total += n * 24 * 60
			case r == 'H' && inTime:
				total += n * 60
			case r == 'M' && inTime:
				total += n
			case r == 'S' && inTime:
				total += n / 60
			default:
				return 0, false
			}
		}
	}
	if num != "" {
		return 0, false
	}
	return total, true
}

func unescapeText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}
