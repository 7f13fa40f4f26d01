package ics

import (
	"context"
	"time"

	appLog "daybook/internal/log"
	"daybook/internal/model"
	"daybook/internal/schedule"
)

// Source reads one ICS feed through a caching Fetcher. It implements
// schedule.Source.
type Source struct {
	Feed     Feed
	Fetcher  *Fetcher
	Location *time.Location

	// MaxOccurrencesPerEvent caps recurrence expansion; 0 uses the default.
	MaxOccurrencesPerEvent int
}

// NewSources builds one Source per feed, sharing a single Fetcher.
func NewSources(feeds []Feed, fetcher *Fetcher, loc *time.Location) []schedule.Source {
	out := make([]schedule.Source, 0, len(feeds))
	for _, f := range feeds {
		if f.URL == "" {
			continue
		}
		if f.ID == "" {
			switch {
			case f.Name != "":
				f.ID = f.Name
			default:
				f.ID = f.URL
			}
		}
		out = append(out, &Source{Feed: f, Fetcher: fetcher, Location: loc})
	}
	return out
}

func (s *Source) Name() string { return s.Feed.ID }

// Fetch downloads, parses and expands the feed for [from, to).
func (s *Source) Fetch(ctx context.Context, from, to time.Time) (schedule.FetchResult, error) {
	res, err := s.Fetcher.FetchOne(ctx, s.Feed)
	if err != nil {
		return schedule.FetchResult{}, err
	}

	parsed, err := ParseICS(s.Feed, res.Body)
	if err != nil {
		return schedule.FetchResult{}, err
	}

	cal := s.Feed.Calendar()
	if s.Feed.Name == "" && parsed.Name != "" {
		cal.Name = parsed.Name
	}
	if cal.Color == "" {
		cal.Color = parsed.Color
	}

	expanded, err := ExpandOccurrences(parsed.Events, ExpandConfig{
		DisplayLocation:        s.Location,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: s.MaxOccurrencesPerEvent,
		Calendar:               cal,
	})
	if err != nil {
		return schedule.FetchResult{}, err
	}

	appLog.Debug("ics feed expanded",
		appLog.KeySource, s.Feed.ID,
		"occurrences", len(expanded.Occurrences),
		"from_cache", res.FromCache,
		"truncated", len(expanded.TruncatedEvents),
	)

	return schedule.FetchResult{
		Occurrences: expanded.Occurrences,
		Calendars:   []model.Calendar{cal},
	}, nil
}
