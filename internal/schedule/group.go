// Package schedule turns calendar occurrences into laid-out days: it groups
// occurrences by display date, normalizes them into layout events, builds
// the text blocks and runs the layout engine per day.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"daybook/internal/model"
)

// DefaultColor is used when neither the event nor its calendar has one.
const DefaultColor = "#a4bdfc"

// dateOf truncates t to midnight of its calendar date in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Window returns the first and last date of a book that starts backfill
// days before now and covers days dates from today on.
func Window(now time.Time, days, backfill int, loc *time.Location) (from, to time.Time) {
	if days < 1 {
		days = 1
	}
	if backfill < 0 {
		backfill = 0
	}
	today := dateOf(now, loc)
	return today.AddDate(0, 0, -backfill), today.AddDate(0, 0, days-1)
}

// Group builds one Day per date in [from, to] (inclusive, in loc). All-day
// occurrences land on their start date, timed ones on the date their start
// falls on in loc; anything outside the range is dropped. Timed events are
// sorted by start time, keeping source order for equal starts.
func Group(occs []model.Occurrence, from, to time.Time, loc *time.Location) []model.Day {
	if loc == nil {
		loc = time.Local
	}
	from, to = dateOf(from, loc), dateOf(to, loc)

	var days []model.Day
	index := make(map[string]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		index[d.Format(time.DateOnly)] = len(days)
		days = append(days, model.Day{Date: d, AllDay: []model.Event{}, Timed: []model.Event{}})
	}

	for _, occ := range occs {
		var key string
		if occ.AllDay {
			// All-day dates are floating: use the date as written.
			key = occ.Start.Format(time.DateOnly)
		} else {
			key = occ.Start.In(loc).Format(time.DateOnly)
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		ev := Normalize(occ, loc)
		if occ.AllDay {
			days[i].AllDay = append(days[i].AllDay, ev)
		} else {
			days[i].Timed = append(days[i].Timed, ev)
		}
	}

	for i := range days {
		timed := days[i].Timed
		sort.SliceStable(timed, func(a, b int) bool {
			return timed[a].Start.Before(timed[b].Start)
		})
	}
	return days
}

// Normalize converts an occurrence into a layout event in loc.
//
// StartMinute is the minute of day of the start. EndMinute is the minute of
// day of the end, or 1440 when the end falls on a later date, and is never
// below StartMinute.
func Normalize(occ model.Occurrence, loc *time.Location) model.Event {
	if loc == nil {
		loc = time.Local
	}
	color := occ.Color
	if color == "" {
		color = occ.Calendar.Color
	}
	if color == "" {
		color = DefaultColor
	}

	id := occ.InstanceKey
	if id == "" {
		id = occ.UID
	}
	if occ.Calendar.ID != "" {
		id = occ.Calendar.ID + "/" + id
	}

	ev := model.Event{
		ID:          id,
		Title:       occ.Summary,
		Description: occ.Description,
		Location:    occ.Location,
		Color:       color,
		Calendar:    occ.Calendar,
		AllDay:      occ.AllDay,
		Start:       occ.Start,
		End:         occ.End,
	}
	if occ.AllDay {
		ev.EndMinute = model.MinutesPerDay
		return ev
	}

	start, end := occ.Start.In(loc), occ.End.In(loc)
	ev.Start, ev.End = start, end
	ev.StartMinute = start.Hour()*60 + start.Minute()

	switch {
	case dateOf(end, loc).After(dateOf(start, loc)):
		ev.EndMinute = model.MinutesPerDay
	default:
		ev.EndMinute = end.Hour()*60 + end.Minute()
	}
	if ev.EndMinute < ev.StartMinute {
		ev.EndMinute = ev.StartMinute
	}
	if ev.EndMinute > model.MinutesPerDay {
		ev.EndMinute = model.MinutesPerDay
	}
	return ev
}

// TimeInfo formats a timed event's range as "HH:MM - HH:MM" and its true
// duration as "1h 30m", "2h", "45m" or "0m".
func TimeInfo(ev model.Event) (timeRange, duration string) {
	timeRange = ev.Start.Format("15:04") + " - " + ev.End.Format("15:04")

	total := int(ev.Duration() / time.Minute)
	h, m := total/60, total%60
	switch {
	case h > 0 && m > 0:
		duration = fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		duration = fmt.Sprintf("%dh", h)
	default:
		duration = fmt.Sprintf("%dm", m)
	}
	return timeRange, duration
}
