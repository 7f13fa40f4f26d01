package config

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/layout"
)

func TestLoad_WritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
timezone: Europe/Berlin
font_scale: large
chrome_timeout: 30s
ics:
  - id: work
    name: Work
    url: https://example.com/work.ics
    color: "#ff0000"
google:
  credentials_file: sa.json
  calendar_ids: [primary]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "large", cfg.FontScale)
	assert.Equal(t, 30*time.Second, cfg.ChromeTimeout)
	assert.Equal(t, 980.0, cfg.PageCapacity)
	assert.Equal(t, 30, cfg.MinEventMinutes)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "Work", cfg.ICS[0].Name)
	assert.True(t, cfg.Google.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "zero capacity", mutate: func(c *Config) { c.PageCapacity = 0 }, want: ErrInvalidCapacity},
		{name: "negative minutes", mutate: func(c *Config) { c.MinEventMinutes = -5 }, want: ErrNegativeMinDuration},
		{name: "negative split", mutate: func(c *Config) { c.MinSplitHeight = -1 }, want: ErrInvalidSplitHeight},
		{name: "font", mutate: func(c *Config) { c.FontScale = "huge" }, want: layout.ErrUnknownFontScale},
		{name: "refresh", mutate: func(c *Config) { c.RefreshCron = "every morning" }, want: ErrInvalidRefresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoad_RejectsInvalidLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_capacity: 0\n"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestLayoutOptions_ScalesSplitThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FontScale = "large"

	opts, err := cfg.LayoutOptions()
	require.NoError(t, err)
	assert.Equal(t, 30, opts.MinEventMinutes)
	assert.Equal(t, 980.0, opts.Alloc.Capacity)
	assert.InDelta(t, 44.0, opts.Alloc.MinSplitHeight, 1e-9)
	assert.Equal(t, layout.NewMetrics(layout.FontLarge), opts.Alloc.Metrics)

	cfg.PageCapacity = -1
	_, err = cfg.LayoutOptions()
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	var (
		mu  sync.Mutex
		got *Config
	)
	w, err := Watch(path, func(c *Config) {
		mu.Lock()
		got = c
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	cfg := DefaultConfig()
	cfg.FontScale = "small"
	require.NoError(t, cfg.Save(path))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.FontScale == "small"
	}, 5*time.Second, 20*time.Millisecond)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatch_MissingFileKeepsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.FontScale = "small"
	require.NoError(t, cfg.Save(path))

	var calls atomic.Int32
	var last atomic.Pointer[Config]
	w, err := Watch(path, func(c *Config) {
		calls.Add(1)
		last.Store(c)
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Rename(path, path+".bak"))

	assert.Never(t, func() bool { return calls.Load() > 0 }, 500*time.Millisecond, 20*time.Millisecond,
		"a vanished file must not reload defaults")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the watcher must not recreate the file")

	require.NoError(t, os.Rename(path+".bak", path))
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "small", last.Load().FontScale)
}
