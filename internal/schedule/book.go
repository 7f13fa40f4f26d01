package schedule

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"daybook/internal/config"
	"daybook/internal/layout"
	appLog "daybook/internal/log"
	"daybook/internal/metrics"
	"daybook/internal/model"
)

// DayLayout is the complete geometry of one printed day.
type DayLayout struct {
	Day        model.Day          `json:"day"`
	Legend     []model.Calendar   `json:"legend"`
	Placements []layout.Placement `json:"placements"`
	Pages      []layout.Page      `json:"pages"`
}

// Book is a laid-out run of consecutive days.
type Book struct {
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Location  string           `json:"timezone"`
	FontScale layout.FontScale `json:"font_scale"`
	Days      []DayLayout      `json:"days"`
}

// Options configures LayoutDays and Assemble.
type Options struct {
	Layout config.LayoutOptions
	// Workers bounds how many days are laid out at once; 0 means GOMAXPROCS.
	Workers int
	Metrics *metrics.Recorder
}

// LayoutDays packs the timeline and allocates the text pages of every day.
// Days are independent and laid out concurrently; within a day the work is
// sequential. The result keeps the order of days.
func LayoutDays(ctx context.Context, days []model.Day, known []model.Calendar, opts Options) ([]DayLayout, error) {
	if err := opts.Layout.Alloc.Validate(); err != nil {
		return nil, err
	}
	if opts.Layout.MinEventMinutes < 0 {
		return nil, layout.ErrNegativeMinDuration
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]DayLayout, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, day := range days {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dl, err := layoutDay(day, known, opts)
			if err != nil {
				return fmt.Errorf("layout %s: %w", day.Date.Format(time.DateOnly), err)
			}
			out[i] = dl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func layoutDay(day model.Day, known []model.Calendar, opts Options) (DayLayout, error) {
	placements, err := layout.Pack(day.Timed, opts.Layout.MinEventMinutes)
	if err != nil {
		return DayLayout{}, err
	}
	pages, err := layout.Allocate(Blocks(day), opts.Layout.Alloc)
	if err != nil {
		return DayLayout{}, err
	}

	for _, p := range pages {
		if p.Overfull {
			appLog.Info("block exceeds an empty page; printed on its own page",
				appLog.Day(day.Date),
				"page", p.Number,
				"event_id", p.Blocks[0].EventID,
				"height", p.Height,
				"capacity", opts.Layout.Alloc.Capacity,
			)
		}
	}
	opts.Metrics.ObserveDay(placements, pages)

	return DayLayout{
		Day:        day,
		Legend:     Legend(day, known),
		Placements: placements,
		Pages:      pages,
	}, nil
}

// Assemble fetches [from, to] from src, groups the occurrences into days in
// loc and lays every day out.
func Assemble(ctx context.Context, src Source, from, to time.Time, loc *time.Location, opts Options) (*Book, error) {
	if loc == nil {
		loc = time.Local
	}
	from, to = dateOf(from, loc), dateOf(to, loc)

	start := time.Now()
	res, err := src.Fetch(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("fetch calendars: %w", err)
	}
	opts.Metrics.ObserveStage(metrics.StageFetch, time.Since(start))

	start = time.Now()
	days := Group(res.Occurrences, from, to, loc)
	laid, err := LayoutDays(ctx, days, res.Calendars, opts)
	if err != nil {
		return nil, err
	}
	opts.Metrics.ObserveStage(metrics.StageLayout, time.Since(start))

	appLog.Info("book assembled",
		appLog.Operation("assemble"),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"days", len(laid),
		"occurrences", len(res.Occurrences),
		appLog.Since(start),
	)

	return &Book{
		From:      from,
		To:        to,
		Location:  loc.String(),
		FontScale: opts.Layout.Alloc.Metrics.Scale,
		Days:      laid,
	}, nil
}
