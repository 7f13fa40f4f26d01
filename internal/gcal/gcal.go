// Package gcal reads events from Google Calendar with a service account.
// Calendars must be shared with the service account's e-mail address.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "daybook/internal/log"
	"daybook/internal/model"
	"daybook/internal/schedule"
)

const (
	// DefaultColor is used when a calendar's color cannot be resolved.
	DefaultColor = "#a4bdfc"

	maxResults = 2500
)

var (
	ErrNoCalendars     = errors.New("gcal: no calendar IDs configured")
	ErrAllCalendarsBad = errors.New("gcal: every calendar failed to load")
)

// Source lists events of a fixed set of calendars. It implements
// schedule.Source.
type Source struct {
	svc         *calendar.Service
	calendarIDs []string
}

// NewSource authenticates with the service account key at credentialsFile
// (read-only calendar scope).
func NewSource(ctx context.Context, credentialsFile string, calendarIDs []string) (*Source, error) {
	if len(calendarIDs) == 0 {
		return nil, ErrNoCalendars
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: read credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(data, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: parse credentials: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return NewSourceWithService(svc, calendarIDs), nil
}

// NewSourceWithService wraps an existing Calendar service.
func NewSourceWithService(svc *calendar.Service, calendarIDs []string) *Source {
	return &Source{svc: svc, calendarIDs: calendarIDs}
}

func (s *Source) Name() string { return "google" }

// Fetch lists the events of every configured calendar overlapping
// [from, to). The query window is widened by a day on both sides so events
// that cross midnight in the display zone are not lost; grouping drops
// whatever falls outside. A calendar that fails is logged and skipped.
func (s *Source) Fetch(ctx context.Context, from, to time.Time) (schedule.FetchResult, error) {
	if len(s.calendarIDs) == 0 {
		return schedule.FetchResult{}, ErrNoCalendars
	}

	calColors, eventColors := s.colors(ctx)
	meta := s.calendarMeta(ctx)

	timeMin := from.AddDate(0, 0, -1).Format(time.RFC3339)
	timeMax := to.AddDate(0, 0, 1).Format(time.RFC3339)

	var (
		res    schedule.FetchResult
		failed int
	)
	for _, id := range s.calendarIDs {
		cal := model.Calendar{ID: id, Name: id, Color: DefaultColor}
		if entry, ok := meta[id]; ok {
			if entry.Summary != "" {
				cal.Name = entry.Summary
			}
			switch {
			case calColors[entry.ColorId] != "":
				cal.Color = calColors[entry.ColorId]
			case entry.BackgroundColor != "":
				cal.Color = entry.BackgroundColor
			}
		}

		events, err := s.svc.Events.List(id).
			TimeMin(timeMin).
			TimeMax(timeMax).
			MaxResults(maxResults).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			failed++
			appLog.Error("gcal: list events failed; skipping calendar", err, "calendar", id)
			continue
		}

		res.Calendars = append(res.Calendars, cal)
		for _, ev := range events.Items {
			occ, ok := toOccurrence(ev, cal, eventColors)
			if !ok {
				continue
			}
			res.Occurrences = append(res.Occurrences, occ)
		}
		appLog.Debug("gcal: calendar fetched", "calendar", cal.Name, "events", len(events.Items))
	}

	if failed == len(s.calendarIDs) {
		return schedule.FetchResult{}, ErrAllCalendarsBad
	}
	return res, nil
}

// colors resolves color IDs to hex backgrounds. Failure is not fatal.
func (s *Source) colors(ctx context.Context) (calendars, events map[string]string) {
	calendars, events = map[string]string{}, map[string]string{}
	c, err := s.svc.Colors.Get().Context(ctx).Do()
	if err != nil {
		appLog.Error("gcal: color palette unavailable", err)
		return calendars, events
	}
	for id, def := range c.Calendar {
		calendars[id] = def.Background
	}
	for id, def := range c.Event {
		events[id] = def.Background
	}
	return calendars, events
}

// calendarMeta returns the calendar list keyed by ID. Failure is not fatal.
func (s *Source) calendarMeta(ctx context.Context) map[string]*calendar.CalendarListEntry {
	out := map[string]*calendar.CalendarListEntry{}
	list, err := s.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		appLog.Error("gcal: calendar list unavailable", err)
		return out
	}
	for _, entry := range list.Items {
		out[entry.Id] = entry
	}
	return out
}

// toOccurrence converts an API event. Cancelled or undated events are
// reported as not ok.
func toOccurrence(ev *calendar.Event, cal model.Calendar, eventColors map[string]string) (model.Occurrence, bool) {
	if ev == nil || ev.Status == "cancelled" || ev.Start == nil {
		return model.Occurrence{}, false
	}

	occ := model.Occurrence{
		Calendar:    cal,
		UID:         ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Color:       eventColors[ev.ColorId],
	}

	switch {
	case ev.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return model.Occurrence{}, false
		}
		occ.Start, occ.End = start, start
		if ev.End != nil && ev.End.DateTime != "" {
			if end, err := time.Parse(time.RFC3339, ev.End.DateTime); err == nil {
				occ.End = end
			}
		}
	case ev.Start.Date != "":
		start, err := time.Parse(time.DateOnly, ev.Start.Date)
		if err != nil {
			return model.Occurrence{}, false
		}
		occ.AllDay = true
		occ.Start, occ.End = start, start.AddDate(0, 0, 1)
		if ev.End != nil && ev.End.Date != "" {
			if end, err := time.Parse(time.DateOnly, ev.End.Date); err == nil && end.After(start) {
				occ.End = end
			}
		}
	default:
		return model.Occurrence{}, false
	}

	occ.InstanceKey = ev.Id
	return occ, true
}
