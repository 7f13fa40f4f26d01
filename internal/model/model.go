package model

import "time"

// MinutesPerDay is the exclusive upper bound of a timeline day.
const MinutesPerDay = 24 * 60

// Calendar identifies the calendar an event came from.
type Calendar struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Occurrence is a single concrete instance of an event as delivered by a
// calendar source (after recurrence expansion). Start and End carry the
// source's own zone; normalization into the display zone happens when the
// occurrence is turned into an Event.
type Occurrence struct {
	Calendar Calendar
	UID      string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	// Color overrides the calendar color when non-empty.
	Color string

	AllDay bool
	Start  time.Time
	End    time.Time
}

// Event is the normalized, read-only input of the layout engine for a
// single day. StartMinute/EndMinute are minutes since local midnight in
// the display zone; Start/End are the zoned timestamps for text rendering.
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Color       string   `json:"color"`
	Calendar    Calendar `json:"calendar"`
	AllDay      bool     `json:"all_day"`

	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is the true duration of the event, independent of any visual
// minimum applied by the layout.
func (e Event) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Day holds one calendar date's events, split into all-day and timed.
type Day struct {
	Date   time.Time `json:"date"`
	AllDay []Event   `json:"all_day"`
	Timed  []Event   `json:"timed"`
}

// Empty reports whether the day has no events at all.
func (d Day) Empty() bool {
	return len(d.AllDay) == 0 && len(d.Timed) == 0
}

// Count returns the number of events in the day.
func (d Day) Count() int {
	return len(d.AllDay) + len(d.Timed)
}
