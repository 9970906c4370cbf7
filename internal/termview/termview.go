// Package termview renders calendar and assistant output for the terminal.
package termview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"jarviscal/internal/calview"
	"jarviscal/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	dayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	todayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	hourStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(6).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Strikethrough(true)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// RenderWeek draws a week as an agenda: one block per day with its
// occupied hour slots. now marks the current hour.
func RenderWeek(w calview.Week, now time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(calview.WeekTitle(w.Start)))
	b.WriteString("  ")
	b.WriteString(subtitleStyle.Render(calview.WeekSubtitle(w.Start)))
	b.WriteString("\n\n")

	loc := w.Start.Location()
	for _, d := range w.Days {
		label := d.Date.Format("Mon Jan 2")
		if d.IsToday {
			b.WriteString(todayStyle.Render(label + " · today"))
		} else {
			b.WriteString(dayStyle.Render(label))
		}
		b.WriteString("\n")

		empty := true
		for _, h := range w.Hours {
			evs := d.Events(h)
			if len(evs) == 0 {
				continue
			}
			empty = false
			hl := hourStyle.Render(calview.FormatHourLabel(h))
			if calview.IsCurrentHour(d.Date, h, now) {
				hl = currentStyle.Render("▸") + hl
			} else {
				hl = " " + hl
			}
			for i, ev := range evs {
				if i > 0 {
					hl = strings.Repeat(" ", lipgloss.Width(hl))
				}
				b.WriteString(hl)
				b.WriteString("  ")
				b.WriteString(eventLine(ev, loc))
				b.WriteString("\n")
			}
		}
		if empty {
			b.WriteString(mutedStyle.Render("        no events"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d total events", w.Total)))
	b.WriteString("\n")
	return b.String()
}

// RenderEvents lists events in input order with their ids.
func RenderEvents(events []model.CalendarEvent, loc *time.Location) string {
	if len(events) == 0 {
		return mutedStyle.Render("No events.") + "\n"
	}
	var b strings.Builder
	for _, ev := range events {
		when := ev.EventDate
		if t, err := ev.Start(loc); err == nil {
			when = t.Format("Mon Jan 2 3:04 PM")
		}
		b.WriteString(idStyle.Render(fmt.Sprintf("#%d", ev.ID)))
		b.WriteString("  ")
		b.WriteString(dayStyle.Render(when))
		b.WriteString("  ")
		b.WriteString(eventTitle(ev))
		if ev.ReminderMinutes != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  (reminder %dm)", *ev.ReminderMinutes)))
		}
		b.WriteString("\n")
		if ev.Description != "" {
			b.WriteString(mutedStyle.Render("      " + ev.Description))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderSearchResults lists knowledge base hits in server order.
func RenderSearchResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return mutedStyle.Render("No results.") + "\n"
	}
	var b strings.Builder
	for i, r := range results {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%d. %s", i+1, r.Title)))
		if r.Similarity != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  %.2f", *r.Similarity)))
		}
		b.WriteString("\n")
		if r.URL != "" {
			b.WriteString(idStyle.Render("   " + r.URL))
			b.WriteString("\n")
		}
		if r.Preview != "" {
			b.WriteString("   " + r.Preview + "\n")
		}
	}
	return b.String()
}

// RenderModels lists models, marking the current one.
func RenderModels(list model.ModelList) string {
	var b strings.Builder
	for _, m := range list.Models {
		marker := "  "
		name := m.Name
		if m.Current || m.Name == list.Current {
			marker = currentStyle.Render("* ")
			name = titleStyle.Render(m.Name)
		}
		b.WriteString(marker + name)
		if m.Size > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  %.1f GB", float64(m.Size)/1e9)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMarkdown renders an assistant reply for the terminal, word-wrapped
// at width (80 when width <= 0).
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func eventLine(ev model.CalendarEvent, loc *time.Location) string {
	t, err := ev.Start(loc)
	if err != nil {
		return eventTitle(ev)
	}
	return timeStyle.Render(calview.FormatEventTime(t)) + " " + eventTitle(ev)
}

func eventTitle(ev model.CalendarEvent) string {
	if ev.Completed {
		return completedStyle.Render(ev.Title) + mutedStyle.Render(" ✓")
	}
	return ev.Title
}
