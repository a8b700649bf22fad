package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/runtrace/runtrace/internal/session"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Feed kinds.
const (
	FeedSimulator = "simulator"
	FeedReplay    = "replay"
	FeedTail      = "tail"
	FeedPush      = "push"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Feed      FeedConfig      `yaml:"feed"`
	Export    ExportConfig    `yaml:"export"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	TUI       TUIConfig       `yaml:"tui"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type TrackerConfig struct {
	MaxAccuracyM    float64       `yaml:"max_accuracy_m"`
	MinStepM        float64       `yaml:"min_step_m"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	HealthThreshold int           `yaml:"health_threshold"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type FeedConfig struct {
	Kind      string          `yaml:"kind"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Replay    ReplayConfig    `yaml:"replay"`
	Tail      TailConfig      `yaml:"tail"`
}

type SimulatorConfig struct {
	OriginLat        float64       `yaml:"origin_lat"`
	OriginLon        float64       `yaml:"origin_lon"`
	LoopRadiusM      float64       `yaml:"loop_radius_m"`
	SpeedMPS         float64       `yaml:"speed_mps"`
	Interval         time.Duration `yaml:"interval"`
	JitterM          float64       `yaml:"jitter_m"`
	Pattern          string        `yaml:"pattern"`
	LowAccuracyEvery int           `yaml:"low_accuracy_every"`
	ErrorEvery       int           `yaml:"error_every"`
	Seed             int64         `yaml:"seed"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type TailConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FromStart    bool          `yaml:"from_start"`
}

// ExportConfig controls the run archive and exported images. Empty
// directories mean the XDG state defaults.
type ExportConfig struct {
	Archive     bool   `yaml:"archive"`
	ArchiveDir  string `yaml:"archive_dir"`
	RecordsDir  string `yaml:"records_dir"`
	RouteWidth  int    `yaml:"route_width"`
	RouteHeight int    `yaml:"route_height"`
}

// PrivacyConfig is applied to everything that leaves the daemon as a file:
// exports, route images and archived runs.
type PrivacyConfig struct {
	Zones       []session.Zone `yaml:"zones"`
	MaskRunIDs  bool           `yaml:"mask_run_ids"`
	HideLastFix bool           `yaml:"hide_last_fix"`
}

type TUIConfig struct {
	GoalMiles float64 `yaml:"goal_miles"`
}

// NewPrivacyFilter builds a session.PrivacyFilter from the config.
func (p PrivacyConfig) NewPrivacyFilter() *session.PrivacyFilter {
	zones := make([]session.Zone, len(p.Zones))
	copy(zones, p.Zones)
	return &session.PrivacyFilter{
		Zones:       zones,
		MaskRunIDs:  p.MaskRunIDs,
		HideLastFix: p.HideLastFix,
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Tracker: TrackerConfig{
			MaxAccuracyM:    50,
			MinStepM:        5,
			TickInterval:    time.Second,
			HealthThreshold: 3,
		},
		Broadcast: BroadcastConfig{
			Throttle:         100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
		},
		Feed: FeedConfig{
			Kind: FeedSimulator,
			Simulator: SimulatorConfig{
				OriginLat:        34.0,
				OriginLon:        -117.0,
				LoopRadiusM:      150,
				SpeedMPS:         3.0,
				Interval:         time.Second,
				JitterM:          2,
				Pattern:          "steady",
				LowAccuracyEvery: 25,
				ErrorEvery:       90,
				Seed:             1,
			},
			Replay: ReplayConfig{
				Speed: 1,
			},
			Tail: TailConfig{
				PollInterval: 500 * time.Millisecond,
			},
		},
		Export: ExportConfig{
			Archive:     true,
			RouteWidth:  640,
			RouteHeight: 480,
		},
		TUI: TUIConfig{
			GoalMiles: 3.1,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and feed settings. All problems are
// reported together; each wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		bad("server.max_connections must not be negative")
	}

	if c.Tracker.MaxAccuracyM <= 0 {
		bad("tracker.max_accuracy_m must be positive")
	}
	if c.Tracker.MinStepM < 0 {
		bad("tracker.min_step_m must not be negative")
	}
	if c.Tracker.TickInterval < 0 {
		bad("tracker.tick_interval must not be negative")
	}
	if c.Tracker.HealthThreshold < 1 {
		bad("tracker.health_threshold must be at least 1")
	}

	if c.Broadcast.Throttle < 0 {
		bad("broadcast.throttle must not be negative")
	}
	if c.Broadcast.SnapshotInterval <= 0 {
		bad("broadcast.snapshot_interval must be positive")
	}

	switch c.Feed.Kind {
	case FeedSimulator:
		s := c.Feed.Simulator
		if s.Interval <= 0 {
			bad("feed.simulator.interval must be positive")
		}
		if s.LoopRadiusM <= 0 {
			bad("feed.simulator.loop_radius_m must be positive")
		}
		if s.SpeedMPS < 0 {
			bad("feed.simulator.speed_mps must not be negative")
		}
		if !validLatLon(s.OriginLat, s.OriginLon) {
			bad("feed.simulator origin %v,%v out of range", s.OriginLat, s.OriginLon)
		}
	case FeedReplay:
		if c.Feed.Replay.Path == "" {
			bad("feed.replay.path is required")
		}
		if c.Feed.Replay.Speed < 0 {
			bad("feed.replay.speed must not be negative")
		}
	case FeedTail:
		if c.Feed.Tail.Path == "" {
			bad("feed.tail.path is required")
		}
	case FeedPush:
	default:
		bad("unknown feed.kind %q", c.Feed.Kind)
	}

	if c.Export.RouteWidth <= 0 || c.Export.RouteHeight <= 0 {
		bad("export route size %dx%d must be positive", c.Export.RouteWidth, c.Export.RouteHeight)
	}

	for i, z := range c.Privacy.Zones {
		if !validLatLon(z.Lat, z.Lon) {
			bad("privacy.zones[%d] center out of range", i)
		}
		if z.RadiusM <= 0 {
			bad("privacy.zones[%d].radius_m must be positive", i)
		}
	}

	if c.TUI.GoalMiles < 0 {
		bad("tui.goal_miles must not be negative")
	}

	return errors.Join(errs...)
}

func validLatLon(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// GenerateToken returns a random 32-character hex token for API auth.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
