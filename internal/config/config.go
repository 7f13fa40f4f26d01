package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"daybook/internal/layout"
)

// NOTE: Load creates the file with defaults on first run; Save writes
// atomically with 0600 permissions because the file may hold credentials.

var (
	ErrInvalidCapacity     = errors.New("config: page_capacity must be positive")
	ErrNegativeMinDuration = errors.New("config: min_event_minutes must not be negative")
	ErrInvalidSplitHeight  = errors.New("config: min_split_height must not be negative")
	ErrInvalidRefresh      = errors.New("config: invalid refresh schedule")
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the calendar label printed in legends and meta lines.
	Name string `yaml:"name" json:"name"`
	// Color is the display color for events without their own COLOR.
	Color string `yaml:"color" json:"color"`
}

// GoogleConfig selects calendars read through the Google Calendar API with
// a service account.
type GoogleConfig struct {
	// CredentialsFile is the service account JSON key.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// CalendarIDs lists calendars shared with the service account.
	CalendarIDs []string `yaml:"calendar_ids" json:"calendar_ids"`
}

// Enabled reports whether any Google calendar is configured.
func (g *GoogleConfig) Enabled() bool {
	return g != nil && g.CredentialsFile != "" && len(g.CalendarIDs) > 0
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address used by `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone all events are converted to.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule on which `serve` re-renders the book.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Days is how many days (starting today) the book covers.
	Days int `yaml:"days" json:"days"`

	// Backfill includes that many past days before today.
	Backfill int `yaml:"backfill" json:"backfill"`

	// FontScale is one of small, normal, large.
	FontScale string `yaml:"font_scale" json:"font_scale"`

	// PageCapacity is the height budget of one text page.
	PageCapacity float64 `yaml:"page_capacity" json:"page_capacity"`

	// MinSplitHeight is the smallest leftover page space (at font scale
	// 1.0) still worth splitting a block into.
	MinSplitHeight float64 `yaml:"min_split_height" json:"min_split_height"`

	// MinEventMinutes is the minimum visual height of a timeline box.
	MinEventMinutes int `yaml:"min_event_minutes" json:"min_event_minutes"`

	// Output is where `render` and `serve` write the PDF.
	Output string `yaml:"output" json:"output"`

	// ChromeTimeout bounds one headless Chromium print.
	ChromeTimeout time.Duration `yaml:"chrome_timeout" json:"chrome_timeout"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Google, if set, adds Google Calendar sources.
	Google *GoogleConfig `yaml:"google,omitempty" json:"google,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Asia/Seoul"
	defaultRefreshCron     = "0 5 * * *"
	defaultDays            = 1
	defaultPageCapacity    = 980
	defaultMinSplitHeight  = 40
	defaultMinEventMinutes = 30
	defaultOutput          = "daybook.pdf"
	defaultChromeTimeout   = 60 * time.Second
	defaultCacheDir        = "./cache/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		RefreshCron:     defaultRefreshCron,
		Days:            defaultDays,
		Backfill:        0,
		FontScale:       string(layout.FontNormal),
		PageCapacity:    defaultPageCapacity,
		MinSplitHeight:  defaultMinSplitHeight,
		MinEventMinutes: defaultMinEventMinutes,
		Output:          defaultOutput,
		ChromeTimeout:   defaultChromeTimeout,
		CacheDir:        defaultCacheDir,
		ICS:             []ICSConfig{},
	}
}

// Normalize fills in missing values so older or partial files still load.
// It never touches the layout numbers Validate is responsible for, except
// to default them when absent from the file.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Days <= 0 {
		c.Days = defaultDays
	}
	if c.Backfill < 0 {
		c.Backfill = 0
	}
	if c.FontScale == "" {
		c.FontScale = string(layout.FontNormal)
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.ChromeTimeout <= 0 {
		c.ChromeTimeout = defaultChromeTimeout
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate fails fast on settings the layout engine cannot work with.
func (c *Config) Validate() error {
	if c.PageCapacity <= 0 {
		return ErrInvalidCapacity
	}
	if c.MinEventMinutes < 0 {
		return ErrNegativeMinDuration
	}
	if c.MinSplitHeight < 0 {
		return ErrInvalidSplitHeight
	}
	if _, err := layout.ParseFontScale(c.FontScale); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := c.RefreshSchedule(); err != nil {
		return err
	}
	return nil
}

// RefreshSchedule parses RefreshCron as a standard five-field cron spec.
func (c *Config) RefreshSchedule() (cron.Schedule, error) {
	sched, err := cron.ParseStandard(c.RefreshCron)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidRefresh, c.RefreshCron, err)
	}
	return sched, nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LayoutOptions is the immutable per-pass view of the layout settings.
type LayoutOptions struct {
	MinEventMinutes int
	Alloc           layout.AllocOptions
}

// LayoutOptions builds the layout settings for one rendering pass. The
// split threshold scales with the font like every other text size.
func (c *Config) LayoutOptions() (LayoutOptions, error) {
	if err := c.Validate(); err != nil {
		return LayoutOptions{}, err
	}
	scale, _ := layout.ParseFontScale(c.FontScale)
	return LayoutOptions{
		MinEventMinutes: c.MinEventMinutes,
		Alloc: layout.AllocOptions{
			Capacity:       c.PageCapacity,
			MinSplitHeight: c.MinSplitHeight * scale.Multiplier(),
			Metrics:        layout.NewMetrics(scale),
		},
	}, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Read parses and validates the file at path without ever creating it. A
// missing file is reported as an error wrapping fs.ErrNotExist.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Start from defaults so keys absent from the file keep their default.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daybook-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
