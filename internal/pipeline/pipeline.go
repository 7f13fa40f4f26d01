// Package pipeline wires configuration, calendar sources, layout and
// rendering into the end-to-end fetch -> layout -> HTML -> PDF run shared by
// the CLI and the HTTP server.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"daybook/internal/capture"
	"daybook/internal/config"
	"daybook/internal/gcal"
	"daybook/internal/ics"
	appLog "daybook/internal/log"
	"daybook/internal/metrics"
	"daybook/internal/render"
	"daybook/internal/schedule"
)

// Browser prints documents and captures previews.
type Browser interface {
	capture.Printer
	CapturePNG(ctx context.Context, html []byte) ([]byte, error)
}

// Pipeline holds the current configuration and the long-lived pieces built
// from it. It is safe for concurrent use; SetConfig swaps the configuration
// for subsequent runs.
type Pipeline struct {
	browser Browser
	metrics *metrics.Recorder

	// Now returns the current time; tests replace it.
	Now func() time.Time

	mu      sync.RWMutex
	cfg     *config.Config
	fetcher *ics.Fetcher
}

// New returns a pipeline for cfg. browser may be nil when only layout and
// HTML are needed.
func New(cfg *config.Config, browser Browser, rec *metrics.Recorder) *Pipeline {
	p := &Pipeline{browser: browser, metrics: rec, Now: time.Now}
	p.SetConfig(cfg)
	return p
}

// Config returns the configuration in effect.
func (p *Pipeline) Config() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetConfig replaces the configuration. The ICS fetcher is rebuilt only
// when the cache directory changes so conditional-GET state survives
// unrelated edits.
func (p *Pipeline) SetConfig(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetcher == nil || p.cfg == nil || p.cfg.CacheDir != cfg.CacheDir {
		p.fetcher = ics.NewFetcher(cfg.CacheDir)
	}
	p.cfg = cfg
}

func (p *Pipeline) snapshot() (*config.Config, *ics.Fetcher) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.fetcher
}

// Feeds converts the configured ICS subscriptions.
func Feeds(cfg *config.Config) []ics.Feed {
	feeds := make([]ics.Feed, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		feeds = append(feeds, ics.Feed{ID: c.ID, Name: c.Name, URL: c.URL, Color: c.Color})
	}
	return feeds
}

// Sources builds every configured calendar source behind one Multi.
func (p *Pipeline) Sources(ctx context.Context) (schedule.Source, error) {
	cfg, fetcher := p.snapshot()
	loc := cfg.Location()

	sources := ics.NewSources(Feeds(cfg), fetcher, loc)
	if cfg.Google.Enabled() {
		g, err := gcal.NewSource(ctx, cfg.Google.CredentialsFile, cfg.Google.CalendarIDs)
		if err != nil {
			// Google is one source among several; keep the ICS feeds going.
			appLog.Error("google calendar unavailable", err)
			p.metrics.SourceFailed("google")
		} else {
			sources = append(sources, g)
		}
	}
	return schedule.Multi{Sources: sources, Metrics: p.metrics}, nil
}

// Book fetches and lays out days dates from today plus backfill past days.
func (p *Pipeline) Book(ctx context.Context, days, backfill int) (*schedule.Book, error) {
	cfg, _ := p.snapshot()
	lo, err := cfg.LayoutOptions()
	if err != nil {
		return nil, err
	}
	src, err := p.Sources(ctx)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	from, to := schedule.Window(p.Now(), days, backfill, loc)
	return schedule.Assemble(ctx, src, from, to, loc, schedule.Options{
		Layout:  lo,
		Metrics: p.metrics,
	})
}

// DefaultBook uses the configured window.
func (p *Pipeline) DefaultBook(ctx context.Context) (*schedule.Book, error) {
	cfg, _ := p.snapshot()
	return p.Book(ctx, cfg.Days, cfg.Backfill)
}

// HTML renders book into a standalone document.
func (p *Pipeline) HTML(book *schedule.Book) ([]byte, error) {
	start := time.Now()
	var buf bytes.Buffer
	if err := render.HTML(&buf, book); err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(metrics.StageHTML, time.Since(start))
	return buf.Bytes(), nil
}

// PDF renders book and prints it through the browser.
func (p *Pipeline) PDF(ctx context.Context, book *schedule.Book) ([]byte, error) {
	if p.browser == nil {
		return nil, fmt.Errorf("pipeline: no browser configured")
	}
	html, err := p.HTML(book)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	pdf, err := p.browser.PrintPDF(ctx, html)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(metrics.StagePDF, time.Since(start))
	return pdf, nil
}

// Preview captures the first page of the rendered book as PNG.
func (p *Pipeline) Preview(ctx context.Context, book *schedule.Book) ([]byte, error) {
	if p.browser == nil {
		return nil, fmt.Errorf("pipeline: no browser configured")
	}
	html, err := p.HTML(book)
	if err != nil {
		return nil, err
	}
	return p.browser.CapturePNG(ctx, html)
}

// Run performs one full pass with the configured window and writes the PDF
// to the configured output path. It returns the path written.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	start := time.Now()
	cfg, _ := p.snapshot()

	book, err := p.DefaultBook(ctx)
	if err != nil {
		return "", err
	}
	pdf, err := p.PDF(ctx, book)
	if err != nil {
		return "", err
	}
	if err := WriteFile(cfg.Output, pdf); err != nil {
		return "", err
	}

	appLog.Info("book written",
		appLog.Operation("run"),
		"path", cfg.Output,
		"bytes", len(pdf),
		"days", len(book.Days),
		appLog.Since(start),
	)
	return cfg.Output, nil
}

// WriteFile replaces path atomically so readers never see a partial PDF.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".daybook-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
