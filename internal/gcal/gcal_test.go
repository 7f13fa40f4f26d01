package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"daybook/internal/model"
)

type fakeAPI struct {
	mu      sync.Mutex
	queries map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/colors"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calendar": map[string]any{"7": map[string]string{"background": "#42d692"}},
			"event":    map[string]any{"11": map[string]string{"background": "#dc2127"}},
		})
	case strings.HasSuffix(path, "/users/me/calendarList"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"id": "family@example.com", "summary": "Family", "colorId": "7"},
			},
		})
	case strings.Contains(path, "/calendars/family@example.com/events"):
		f.mu.Lock()
		f.queries = map[string]string{}
		for k := range r.URL.Query() {
			f.queries[k] = r.URL.Query().Get(k)
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id": "e1", "summary": "Dentist", "description": "bring card",
					"start": map[string]string{"dateTime": "2025-03-10T09:00:00+09:00"},
					"end":   map[string]string{"dateTime": "2025-03-10T10:30:00+09:00"},
				},
				{
					"id": "e2", "summary": "Trip", "colorId": "11",
					"start": map[string]string{"date": "2025-03-11"},
					"end":   map[string]string{"date": "2025-03-13"},
				},
				{
					"id": "e3", "summary": "Gone", "status": "cancelled",
					"start": map[string]string{"dateTime": "2025-03-10T12:00:00+09:00"},
				},
			},
		})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestSource(t *testing.T, ids ...string) (*Source, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return NewSourceWithService(svc, ids), api
}

func TestSource_Fetch(t *testing.T) {
	src, api := newTestSource(t, "family@example.com", "missing@example.com")

	kst := time.FixedZone("KST", 9*60*60)
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, kst)
	to := time.Date(2025, 3, 12, 0, 0, 0, 0, kst)
	res, err := src.Fetch(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, res.Calendars, 1)
	assert.Equal(t, "Family", res.Calendars[0].Name)
	assert.Equal(t, "#42d692", res.Calendars[0].Color)

	require.Len(t, res.Occurrences, 2)
	dentist := res.Occurrences[0]
	assert.Equal(t, "Dentist", dentist.Summary)
	assert.Equal(t, "bring card", dentist.Description)
	assert.Equal(t, "", dentist.Color, "calendar color applies later")
	assert.Equal(t, 90*time.Minute, dentist.End.Sub(dentist.Start))
	assert.False(t, dentist.AllDay)

	trip := res.Occurrences[1]
	assert.True(t, trip.AllDay)
	assert.Equal(t, "#dc2127", trip.Color)
	assert.Equal(t, "2025-03-11", trip.Start.Format(time.DateOnly))
	assert.Equal(t, "2025-03-13", trip.End.Format(time.DateOnly))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "true", api.queries["singleEvents"])
	assert.Equal(t, "startTime", api.queries["orderBy"])
	assert.Equal(t, "2500", api.queries["maxResults"])
	assert.Equal(t, from.AddDate(0, 0, -1).Format(time.RFC3339), api.queries["timeMin"])
	assert.Equal(t, to.AddDate(0, 0, 1).Format(time.RFC3339), api.queries["timeMax"])
}

func TestSource_AllCalendarsFail(t *testing.T) {
	src, _ := newTestSource(t, "missing@example.com")
	_, err := src.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrAllCalendarsBad)

	empty, _ := newTestSource(t)
	_, err = empty.Fetch(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNoCalendars)
}

func TestNewSource_Errors(t *testing.T) {
	_, err := NewSource(context.Background(), "sa.json", nil)
	assert.ErrorIs(t, err, ErrNoCalendars)

	_, err = NewSource(context.Background(), filepath.Join(t.TempDir(), "missing.json"), []string{"primary"})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type":"nope"}`), 0o600))
	_, err = NewSource(context.Background(), bad, []string{"primary"})
	assert.Error(t, err)
}

func TestToOccurrence_Skips(t *testing.T) {
	_, ok := toOccurrence(nil, cal(), nil)
	assert.False(t, ok)
	_, ok = toOccurrence(&calendar.Event{Id: "x", Start: &calendar.EventDateTime{}}, cal(), nil)
	assert.False(t, ok)
	_, ok = toOccurrence(&calendar.Event{Id: "x", Start: &calendar.EventDateTime{DateTime: "garbage"}}, cal(), nil)
	assert.False(t, ok)
}

func cal() model.Calendar {
	return model.Calendar{ID: "c", Name: "C", Color: DefaultColor}
}
