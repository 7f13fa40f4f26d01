package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "daybook/internal/log"
	"daybook/internal/model"
)

const (
	fetchTimeout = 15 * time.Second
	// maxFeedBytes bounds a single download; real feeds stay far below it.
	maxFeedBytes = 32 << 20
	userAgent    = "daybook (+ics subscription)"
)

// Feed is one ICS subscription.
type Feed struct {
	// ID identifies the feed in logs, metrics and event IDs.
	ID string
	// Name is the display name; empty means "use X-WR-CALNAME or ID".
	Name string
	URL  string
	// Color is the default display color of the feed's events.
	Color string
}

// Calendar returns the display metadata of the feed.
func (f Feed) Calendar() model.Calendar {
	name := f.Name
	if name == "" {
		name = f.ID
	}
	return model.Calendar{ID: f.ID, Name: name, Color: f.Color}
}

// FetchResult is one downloaded (or cached) feed body.
type FetchResult struct {
	Feed Feed
	Body []byte
	// FromCache is set when the body came from disk: on 304, or as a
	// fallback when the server could not be reached or answered an error.
	FromCache bool
}

var (
	ErrEmptyURL         = errors.New("ics: feed URL is empty")
	ErrNoCachedBody     = errors.New("ics: 304 Not Modified but no cached body available")
	ErrUnexpectedStatus = errors.New("ics: unexpected HTTP status")
	ErrFeedTooLarge     = errors.New("ics: feed body exceeds size limit")
)

// Fetcher downloads feeds with conditional GETs (ETag / Last-Modified)
// against a disk cache, so unchanged feeds cost one round trip and a feed
// that is temporarily down still renders from its last good copy.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxBytes int64
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		cacheDir: cacheDir,
		maxBytes: maxFeedBytes,
	}
}

// FetchOne downloads a single feed.
func (f *Fetcher) FetchOne(ctx context.Context, feed Feed) (FetchResult, error) {
	if feed.URL == "" {
		return FetchResult{}, ErrEmptyURL
	}
	logURL := redactURL(feed.URL)
	cache := newFeedCache(f.cacheDir, feed.URL)
	cached, cachedBody := cache.load()

	fallback := func(cause error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, cause
		}
		appLog.Error("ics fetch failed, using cached body", cause, appLog.KeySource, feed.ID, "url", logURL)
		return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if len(cachedBody) > 0 {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	appLog.Debug("ics fetch start", appLog.KeySource, feed.ID, "url", logURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, ErrNoCachedBody
		}
		appLog.Debug("ics feed not modified", appLog.KeySource, feed.ID, "url", logURL)
		return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil

	case resp.StatusCode != http.StatusOK:
		return fallback(fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	// One byte past the limit tells a full-size body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return fallback(fmt.Errorf("ics: read body: %w", err))
	}
	if int64(len(body)) > f.maxBytes {
		return fallback(fmt.Errorf("%w: more than %d bytes", ErrFeedTooLarge, f.maxBytes))
	}

	err = cache.store(validators{
		URL:          feed.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, body)
	if err != nil {
		// The fresh body is still good.
		appLog.Error("ics cache save failed", err, appLog.KeySource, feed.ID, "url", logURL)
	}

	appLog.Info("ics feed downloaded", appLog.KeySource, feed.ID, "url", logURL, "bytes", len(body))
	return FetchResult{Feed: feed, Body: body}, nil
}

// redactURL keeps only scheme and host, since feed paths and query strings
// often embed private tokens.
func redactURL(raw string) string {
	const redacted = "/...(redacted)"
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics:/" + redacted
	}
	return u.Scheme + "://" + u.Host + redacted
}
