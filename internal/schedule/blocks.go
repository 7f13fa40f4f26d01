package schedule

import (
	"daybook/internal/layout"
	"daybook/internal/model"
)

// Legend lists the calendars that contribute events to day, in the order
// they are first seen (all-day events first, then timed). Calendar colors
// come from known when available, so the legend shows the calendar's own
// color rather than an event override.
func Legend(day model.Day, known []model.Calendar) []model.Calendar {
	meta := make(map[string]model.Calendar, len(known))
	for _, c := range known {
		meta[c.ID] = c
	}

	seen := make(map[string]bool)
	out := []model.Calendar{}
	add := func(ev model.Event) {
		c := ev.Calendar
		if seen[c.ID] {
			return
		}
		seen[c.ID] = true
		if k, ok := meta[c.ID]; ok {
			if k.Name != "" {
				c.Name = k.Name
			}
			if k.Color != "" {
				c.Color = k.Color
			}
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		if c.Color == "" {
			c.Color = DefaultColor
		}
		out = append(out, c)
	}
	for _, ev := range day.AllDay {
		add(ev)
	}
	for _, ev := range day.Timed {
		add(ev)
	}
	return out
}

// Blocks builds the text blocks of day: all-day events first, then timed
// events in start order, each with its meta line.
func Blocks(day model.Day) []layout.Block {
	out := make([]layout.Block, 0, day.Count())
	for _, ev := range day.AllDay {
		out = append(out, layout.Block{
			EventID:     ev.ID,
			Kind:        layout.KindAllDay,
			Title:       ev.Title,
			Meta:        layout.Meta{Calendar: calendarName(ev)},
			Description: ev.Description,
			Color:       ev.Color,
		})
	}
	for _, ev := range day.Timed {
		timeRange, duration := TimeInfo(ev)
		out = append(out, layout.Block{
			EventID:     ev.ID,
			Kind:        layout.KindTimed,
			Title:       ev.Title,
			Meta:        layout.Meta{Calendar: calendarName(ev), TimeRange: timeRange, Duration: duration},
			Description: ev.Description,
			Color:       ev.Color,
		})
	}
	return out
}

func calendarName(ev model.Event) string {
	if ev.Calendar.Name != "" {
		return ev.Calendar.Name
	}
	return ev.Calendar.ID
}
