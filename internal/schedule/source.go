package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "daybook/internal/log"
	"daybook/internal/metrics"
	"daybook/internal/model"
)

// ErrNoSources is returned by Multi when it has nothing to fetch from.
var ErrNoSources = errors.New("schedule: no calendar sources configured")

// FetchResult is what a calendar source delivers for a time range.
type FetchResult struct {
	Occurrences []model.Occurrence
	// Calendars carries display metadata (name, color) for the legend.
	Calendars []model.Calendar
}

// Source delivers expanded event occurrences overlapping [from, to).
type Source interface {
	Name() string
	Fetch(ctx context.Context, from, to time.Time) (FetchResult, error)
}

// Multi fans out to several sources and merges their results in source
// order. A failing source is logged and skipped; Fetch only fails when
// every source failed.
type Multi struct {
	Sources []Source
	Metrics *metrics.Recorder
}

func (m Multi) Name() string { return "multi" }

func (m Multi) Fetch(ctx context.Context, from, to time.Time) (FetchResult, error) {
	if len(m.Sources) == 0 {
		return FetchResult{}, ErrNoSources
	}

	results := make([]FetchResult, len(m.Sources))
	errs := make([]error, len(m.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.Sources {
		g.Go(func() error {
			res, err := src.Fetch(gctx, from, to)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    FetchResult
		failed []error
	)
	for i, src := range m.Sources {
		if errs[i] != nil {
			appLog.Error("calendar source failed; skipping", errs[i], appLog.KeySource, src.Name())
			m.Metrics.SourceFailed(src.Name())
			failed = append(failed, errs[i])
			continue
		}
		out.Occurrences = append(out.Occurrences, results[i].Occurrences...)
		out.Calendars = append(out.Calendars, results[i].Calendars...)
		appLog.Debug("calendar source fetched",
			appLog.KeySource, src.Name(),
			"occurrences", len(results[i].Occurrences),
		)
	}

	if len(failed) == len(m.Sources) {
		return FetchResult{}, errors.Join(failed...)
	}
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}
	return out, nil
}
