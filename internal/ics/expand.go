package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "daybook/internal/log"
	"daybook/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

var errInvertedRange = errors.New("ics: expand range end is before its start")

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to; nil means
	// time.Local.
	DisplayLocation *time.Location

	// Occurrences overlapping [RangeStart, RangeEnd) are produced.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps open-ended rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	// Calendar is attached to every occurrence.
	Calendar model.Calendar
}

// ExpandResult is the expanded feed.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents lists UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// ExpandOccurrences turns the events of one feed into concrete occurrences
// in the configured range. RRULE series honor EXDATE and RECURRENCE-ID
// overrides; all-day occurrences keep their calendar date in the display
// zone, timed ones are converted to it. The result is ordered by start, then
// UID, so repeated runs agree.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return ExpandResult{}, errInvertedRange
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	x := expander{cfg: cfg, overrides: make(map[string]map[int64]ParsedEvent)}
	var masters []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			x.addOverride(ev)
			continue
		}
		masters = append(masters, ev)
	}

	var res ExpandResult
	truncated := make(map[string]bool)
	for _, ev := range masters {
		occs, capped := x.expand(ev)
		res.Occurrences = append(res.Occurrences, occs...)
		if capped && !truncated[ev.UID] {
			truncated[ev.UID] = true
			res.TruncatedEvents = append(res.TruncatedEvents, ev.UID)
			appLog.Info("recurrence expansion capped", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	slices.SortStableFunc(res.Occurrences, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.UID, b.UID)
	})
	return res, nil
}

// expander holds per-feed state: overrides indexed by UID and by the
// instant of the instance they replace.
type expander struct {
	cfg       ExpandConfig
	overrides map[string]map[int64]ParsedEvent
}

func (x *expander) addOverride(ev ParsedEvent) {
	byInstant := x.overrides[ev.UID]
	if byInstant == nil {
		byInstant = make(map[int64]ParsedEvent)
		x.overrides[ev.UID] = byInstant
	}
	byInstant[ev.Recurrence.Unix()] = ev
}

// instance returns the override for the instance of uid starting at start,
// or base with [start, end) when there is none.
func (x *expander) instance(base ParsedEvent, start, end time.Time) model.Occurrence {
	if ov, ok := x.overrides[base.UID][start.Unix()]; ok {
		return x.occurrence(ov, ov.Start, ov.End)
	}
	return x.occurrence(base, start, end)
}

// expand produces the occurrences of one master event and whether the cap
// was hit.
func (x *expander) expand(ev ParsedEvent) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, x.cfg.RangeStart, x.cfg.RangeEnd) {
			return nil, false
		}
		return []model.Occurrence{x.instance(ev, ev.Start, ev.End)}, false
	}

	rule, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("skipping event with unparsable RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	rule.DTStart(ev.Start)

	set := &rrule.Set{}
	set.RRule(rule)
	zone := ev.Start.Location()
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(zone))
	}

	starts := set.Between(x.cfg.RangeStart.In(zone), x.cfg.RangeEnd.In(zone), true)
	capped := len(starts) > x.cfg.MaxOccurrencesPerEvent
	if capped {
		starts = starts[:x.cfg.MaxOccurrencesPerEvent]
	}

	length := ev.End.Sub(ev.Start)
	spanDays := 1
	if ev.AllDay {
		// Rounded so a DST shift inside the span does not lose a day.
		spanDays = max(1, int(length.Hours()+12)/24)
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		if ev.AllDay {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			out = append(out, x.instance(ev, day, day.AddDate(0, 0, spanDays)))
			continue
		}
		out = append(out, x.instance(ev, start, start.Add(length)))
	}
	return out, capped
}

// occurrence builds the model value. All-day dates are re-anchored in the
// display zone on the same calendar date so the offset never shifts them.
func (x *expander) occurrence(ev ParsedEvent, start, end time.Time) model.Occurrence {
	loc := x.cfg.DisplayLocation
	if ev.AllDay {
		start, end = floatingDate(start, loc), floatingDate(end, loc)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	} else {
		start, end = start.In(loc), end.In(loc)
	}

	return model.Occurrence{
		Calendar:    x.cfg.Calendar,
		UID:         ev.UID,
		InstanceKey: ev.UID + "@" + start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Color:       ev.Color,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func floatingDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// overlaps reports whether [aStart, aEnd] touches [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && aStart.Before(bEnd)
}
