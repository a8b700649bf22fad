package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runtrace/runtrace/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  auth_token: secret
  allowed_origins:
    - http://localhost:5173
tracker:
  max_accuracy_m: 30
  tick_interval: 250ms
feed:
  kind: replay
  replay:
    path: /tmp/run.gpx
    speed: 10
privacy:
  mask_run_ids: true
  zones:
    - lat: 34.05
      lon: -118.25
      radius_m: 200
tui:
  goal_miles: 6.2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.AuthToken != "secret" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Tracker.MaxAccuracyM != 30 {
		t.Errorf("Tracker.MaxAccuracyM = %v, want 30", cfg.Tracker.MaxAccuracyM)
	}
	if cfg.Tracker.MinStepM != 5 {
		t.Errorf("Tracker.MinStepM = %v, want default 5", cfg.Tracker.MinStepM)
	}
	if cfg.Tracker.TickInterval != 250*time.Millisecond {
		t.Errorf("Tracker.TickInterval = %v, want 250ms", cfg.Tracker.TickInterval)
	}
	if cfg.Feed.Kind != FeedReplay || cfg.Feed.Replay.Path != "/tmp/run.gpx" || cfg.Feed.Replay.Speed != 10 {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if len(cfg.Privacy.Zones) != 1 || cfg.Privacy.Zones[0].RadiusM != 200 {
		t.Errorf("Privacy.Zones = %+v", cfg.Privacy.Zones)
	}
	if cfg.TUI.GoalMiles != 6.2 {
		t.Errorf("TUI.GoalMiles = %v", cfg.TUI.GoalMiles)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Feed.Kind != FeedSimulator {
		t.Errorf("Feed.Kind = %q, want simulator", cfg.Feed.Kind)
	}
}

func TestLoadOrDefaultReportsInvalidFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 70000\n")
	if _, err := LoadOrDefault(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, ":::not valid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"negative max connections", func(c *Config) { c.Server.MaxConnections = -1 }},
		{"zero accuracy gate", func(c *Config) { c.Tracker.MaxAccuracyM = 0 }},
		{"negative min step", func(c *Config) { c.Tracker.MinStepM = -1 }},
		{"zero health threshold", func(c *Config) { c.Tracker.HealthThreshold = 0 }},
		{"zero snapshot interval", func(c *Config) { c.Broadcast.SnapshotInterval = 0 }},
		{"unknown feed", func(c *Config) { c.Feed.Kind = "carrier-pigeon" }},
		{"replay without path", func(c *Config) { c.Feed.Kind = FeedReplay }},
		{"tail without path", func(c *Config) { c.Feed.Kind = FeedTail }},
		{"simulator zero interval", func(c *Config) { c.Feed.Simulator.Interval = 0 }},
		{"simulator bad origin", func(c *Config) { c.Feed.Simulator.OriginLat = 91 }},
		{"route size", func(c *Config) { c.Export.RouteWidth = 0 }},
		{"zone radius", func(c *Config) { c.Privacy.Zones = []session.Zone{{Lat: 34, Lon: -117}} }},
		{"zone center", func(c *Config) { c.Privacy.Zones = []session.Zone{{Lat: 34, Lon: 190, RadiusM: 10}} }},
		{"negative goal", func(c *Config) { c.TUI.GoalMiles = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidatePushNeedsNothing(t *testing.T) {
	cfg := defaultConfig()
	cfg.Feed.Kind = FeedPush
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNewPrivacyFilter(t *testing.T) {
	pc := PrivacyConfig{
		Zones:       []session.Zone{{Lat: 34, Lon: -117, RadiusM: 150}},
		MaskRunIDs:  true,
		HideLastFix: false,
	}

	pf := pc.NewPrivacyFilter()
	if !pf.MaskRunIDs {
		t.Error("MaskRunIDs not copied")
	}
	if pf.HideLastFix {
		t.Error("HideLastFix should be false")
	}
	if len(pf.Zones) != 1 || pf.Zones[0].RadiusM != 150 {
		t.Errorf("Zones = %+v", pf.Zones)
	}

	// The filter owns its zones.
	pc.Zones[0].RadiusM = 1
	if pf.Zones[0].RadiusM != 150 {
		t.Error("filter shares zones with the config")
	}
}

func TestNewPrivacyFilterZeroValue(t *testing.T) {
	pc := PrivacyConfig{}
	pf := pc.NewPrivacyFilter()

	if !pf.IsNoop() {
		t.Error("zero-value PrivacyConfig should produce a noop filter")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if len(tok) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("token length = %d, want 32", len(tok))
	}

	tok2, _ := GenerateToken()
	if tok == tok2 {
		t.Error("two generated tokens should not be identical")
	}
}
