// Package layout computes the page geometry of a printed day: lane packing
// of overlapping timed events on the timeline, and the flow of event text
// across fixed-capacity pages.
//
// Everything here is pure and synchronous. Callers may lay out different
// days concurrently, but a single Pack or Allocate call is sequential by
// nature: each decision depends on all earlier ones in the same pass.
package layout

import (
	"errors"
	"sort"

	"daybook/internal/model"
)

var (
	ErrNegativeMinDuration   = errors.New("layout: minimum event duration must not be negative")
	ErrInvalidCapacity       = errors.New("layout: page capacity must be positive")
	ErrInvalidMinSplitHeight = errors.New("layout: minimum split height must not be negative")
	ErrUnknownFontScale      = errors.New("layout: unknown font scale")
)

// Placement is a timed event annotated with its position on the timeline.
// The embedded Event is a copy; Pack never modifies its input.
type Placement struct {
	Event model.Event `json:"event"`

	// Visual interval in minutes since midnight. VisualEnd-VisualStart is at
	// least the configured minimum duration and may run past midnight.
	VisualStart    int `json:"visual_start"`
	VisualEnd      int `json:"visual_end"`
	VisualDuration int `json:"visual_duration"`

	Cluster int `json:"cluster"`
	Lane    int `json:"lane"`
	Lanes   int `json:"lanes"`

	// Width and Left are percentages of the event column.
	Width float64 `json:"width"`
	Left  float64 `json:"left"`
}

// Pack assigns every timed event a lane inside its overlap cluster so that
// no two boxes overlap. minDuration is the visual floor in minutes applied
// to short, zero-length or inverted events.
//
// Output is ordered by cluster, then lane, then position within the lane.
func Pack(events []model.Event, minDuration int) ([]Placement, error) {
	if minDuration < 0 {
		return nil, ErrNegativeMinDuration
	}
	if len(events) == 0 {
		return []Placement{}, nil
	}

	items := make([]Placement, len(events))
	for i, ev := range events {
		dur := ev.EndMinute - ev.StartMinute
		if dur < minDuration {
			dur = minDuration
		}
		items[i] = Placement{
			Event:          ev,
			VisualStart:    ev.StartMinute,
			VisualEnd:      ev.StartMinute + dur,
			VisualDuration: dur,
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].VisualStart < items[j].VisualStart
	})

	out := make([]Placement, 0, len(items))
	for ci, cluster := range clusters(items) {
		out = appendLanes(out, cluster, ci)
	}
	return out, nil
}

// clusters splits start-sorted items into maximal overlapping runs.
func clusters(sorted []Placement) [][]Placement {
	var (
		out     [][]Placement
		current = []Placement{sorted[0]}
		end     = sorted[0].VisualEnd
	)
	for _, p := range sorted[1:] {
		if p.VisualStart < end {
			current = append(current, p)
			if p.VisualEnd > end {
				end = p.VisualEnd
			}
			continue
		}
		out = append(out, current)
		current = []Placement{p}
		end = p.VisualEnd
	}
	return append(out, current)
}

// appendLanes runs first-fit lane assignment over one cluster. Longer
// events win ties on start time.
func appendLanes(out []Placement, cluster []Placement, clusterIndex int) []Placement {
	ordered := make([]Placement, len(cluster))
	copy(ordered, cluster)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].VisualStart != ordered[j].VisualStart {
			return ordered[i].VisualStart < ordered[j].VisualStart
		}
		return ordered[i].VisualDuration > ordered[j].VisualDuration
	})

	var lanes [][]Placement
	for _, p := range ordered {
		placed := false
		for li := range lanes {
			last := lanes[li][len(lanes[li])-1]
			if p.VisualStart >= last.VisualEnd {
				lanes[li] = append(lanes[li], p)
				placed = true
				break
			}
		}
		if !placed {
			lanes = append(lanes, []Placement{p})
		}
	}

	width := 100 / float64(len(lanes))
	for li, lane := range lanes {
		for _, p := range lane {
			p.Cluster = clusterIndex
			p.Lane = li
			p.Lanes = len(lanes)
			p.Width = width
			p.Left = float64(li) * width
			out = append(out, p)
		}
	}
	return out
}
