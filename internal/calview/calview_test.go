package calview

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarviscal/internal/model"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestWeekStartIsMondayAndIdempotent(t *testing.T) {
	zones := []*time.Location{time.UTC, mustZone(t, "America/New_York"), mustZone(t, "Asia/Seoul")}
	base := time.Date(2025, 1, 1, 13, 45, 0, 0, time.UTC)

	for _, loc := range zones {
		for i := 0; i < 400; i++ {
			d := base.In(loc).Add(time.Duration(i) * 17 * time.Hour)
			ws := WeekStart(d)

			assert.Equal(t, time.Monday, ws.Weekday(), "input %s", d)
			assert.Equal(t, ws, WeekStart(ws), "idempotence for %s", d)
			assert.False(t, ws.After(d), "start after input for %s", d)
			assert.True(t, d.Before(ws.AddDate(0, 0, 7)), "input beyond week for %s", d)
			h, m, s := ws.Clock()
			assert.Zero(t, h+m+s)
			assert.Equal(t, loc, ws.Location())
		}
	}
}

func TestWeekStartSundayRollsBack(t *testing.T) {
	sunday := time.Date(2025, 11, 16, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), WeekStart(sunday))

	monday := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, WeekStart(monday))
}

func TestWeekStartAcrossDST(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	// DST ends Sunday 2025-11-02 in New York.
	d := time.Date(2025, 11, 2, 12, 0, 0, 0, ny)
	assert.Equal(t, time.Date(2025, 10, 27, 0, 0, 0, 0, ny), WeekStart(d))

	days := WeekDays(WeekStart(d))
	for i, day := range days {
		h, m, _ := day.Clock()
		assert.Zero(t, h, "day %d", i)
		assert.Zero(t, m, "day %d", i)
	}
	assert.Equal(t, 2, days[6].Day())
}

func TestFormatHourLabel(t *testing.T) {
	cases := map[int]string{
		0:  "12 AM",
		1:  "1 AM",
		9:  "9 AM",
		11: "11 AM",
		12: "12 PM",
		13: "1 PM",
		22: "10 PM",
		23: "11 PM",
	}
	for hour, want := range cases {
		assert.Equal(t, want, FormatHourLabel(hour), "hour %d", hour)
	}
}

func TestSlotsForDayPlacesEventInItsHour(t *testing.T) {
	events := []model.CalendarEvent{{ID: 1, Title: "Review", EventDate: "2025-11-12T14:00"}}
	day := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)

	got := SlotsForDay(events, day, HourRange{First: 6, Last: 22})

	want := map[int][]model.CalendarEvent{14: events}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestSlotsForDayFiltering(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: 1, Title: "a", EventDate: "2025-11-12T09:15"},
		{ID: 2, Title: "other day", EventDate: "2025-11-13T09:00"},
		{ID: 3, Title: "too early", EventDate: "2025-11-12T05:30"},
		{ID: 4, Title: "b", EventDate: "2025-11-12T09:45:00"},
		{ID: 5, Title: "garbage", EventDate: "soon"},
		{ID: 6, Title: "late", EventDate: "2025-11-12T23:00"},
	}
	original := append([]model.CalendarEvent(nil), events...)
	day := time.Date(2025, 11, 12, 18, 0, 0, 0, time.UTC)

	got := SlotsForDay(events, day, DefaultHours)

	require.Len(t, got, 1)
	require.Len(t, got[9], 2)
	assert.Equal(t, int64(1), got[9][0].ID)
	assert.Equal(t, int64(4), got[9][1].ID)
	assert.Equal(t, original, events, "input must not be modified")
}

func TestSlotsForDayUsesDayLocation(t *testing.T) {
	seoul := mustZone(t, "Asia/Seoul")
	// 23:00Z on Nov 12 is 08:00 on Nov 13 in Seoul.
	events := []model.CalendarEvent{{ID: 1, EventDate: "2025-11-12T23:00:00Z"}}

	utcDay := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, SlotsForDay(events, utcDay, HourRange{First: 0, Last: 23}), 23)

	seoulDay := time.Date(2025, 11, 13, 0, 0, 0, 0, seoul)
	slots := SlotsForDay(events, seoulDay, HourRange{First: 0, Last: 23})
	assert.Contains(t, slots, 8)
}

func TestIsSameCalendarDay(t *testing.T) {
	a := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsSameCalendarDay(a, time.Date(2025, 11, 12, 23, 59, 59, 0, time.UTC)))
	assert.False(t, IsSameCalendarDay(a, time.Date(2025, 11, 13, 0, 0, 0, 0, time.UTC)))

	plus9 := time.FixedZone("+09", 9*3600)
	// 2025-11-12 20:00 UTC is Nov 13 at +09.
	b := time.Date(2025, 11, 12, 20, 0, 0, 0, time.UTC)
	assert.True(t, IsSameCalendarDay(a, b))
	assert.False(t, IsSameCalendarDay(time.Date(2025, 11, 12, 0, 0, 0, 0, plus9), b))
}

func TestHourRange(t *testing.T) {
	assert.Len(t, DefaultHours.Hours(), 17)
	assert.Equal(t, 6, DefaultHours.Hours()[0])
	assert.Equal(t, 22, DefaultHours.Hours()[16])
	assert.Nil(t, HourRange{First: 5, Last: 4}.Hours())
	assert.True(t, DefaultHours.Contains(22))
	assert.False(t, DefaultHours.Contains(23))
}

func TestBuildWeek(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: 1, Title: "mon", EventDate: "2025-11-10T08:00"},
		{ID: 2, Title: "wed", EventDate: "2025-11-12T14:00"},
		{ID: 3, Title: "sun", EventDate: "2025-11-16T21:30"},
		{ID: 4, Title: "next week", EventDate: "2025-11-17T10:00"},
	}
	ref := time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)
	now := time.Date(2025, 11, 12, 14, 20, 0, 0, time.UTC)

	w := BuildWeek(events, ref, DefaultHours, now)

	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 4, w.Total)
	assert.Equal(t, 3, w.Placed())
	assert.True(t, w.Days[2].IsToday)
	assert.False(t, w.Days[3].IsToday)
	require.Len(t, w.Days[0].Events(8), 1)
	require.Len(t, w.Days[2].Events(14), 1)
	require.Len(t, w.Days[6].Events(21), 1)
	assert.Nil(t, w.Days[1].Events(8))

	assert.True(t, IsCurrentHour(w.Days[2].Date, 14, now))
	assert.False(t, IsCurrentHour(w.Days[2].Date, 15, now))

	assert.Equal(t, "November 2025", WeekTitle(w.Start))
	assert.Equal(t, "Week of Nov 10", WeekSubtitle(w.Start))
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), PrevWeek(w.Start))
	assert.Equal(t, time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC), NextWeek(w.Start))
	assert.Equal(t, "2:20 PM", FormatEventTime(now))
}
