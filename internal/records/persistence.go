package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// statsVersion is bumped when the schema changes.
	statsVersion = 1

	statsFileName = "records.json"
	appDirName    = "runtrace"
)

// Stats is the persistent lifetime record of every finished run. It lives
// at ~/.local/state/runtrace/records.json (respecting XDG_STATE_HOME).
type Stats struct {
	Version int `json:"version"`

	TotalRuns      int     `json:"totalRuns"`
	TotalDistanceM float64 `json:"totalDistanceM"`
	TotalElapsedMs int64   `json:"totalElapsedMs"`

	// Personal bests
	LongestRunM      float64 `json:"longestRunM"`
	LongestElapsedMs int64   `json:"longestElapsedMs"`
	// BestPace is in minutes per mile over runs of at least a mile; 0 means
	// no qualifying run yet.
	BestPace float64 `json:"bestPace"`

	// Consecutive calendar days with a run
	CurrentStreakDays int    `json:"currentStreakDays"`
	LongestStreakDays int    `json:"longestStreakDays"`
	LastRunDay        string `json:"lastRunDay,omitempty"` // 2006-01-02
	LastRunID         string `json:"lastRunId,omitempty"`

	RunsPerFeed          map[string]int       `json:"runsPerFeed"`
	AchievementsUnlocked map[string]time.Time `json:"achievementsUnlocked"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// Store handles loading and saving Stats to disk.
type Store struct {
	dir string
}

// NewStore creates a Store in dir. Pass an empty string to use the default
// XDG state path.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStatsDir()
	}
	return &Store{dir: dir}
}

// Path returns the full path to the records file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, statsFileName)
}

// Load reads stats from disk. A missing file yields empty stats.
func (s *Store) Load() (*Stats, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return newStats(), nil
		}
		return nil, fmt.Errorf("reading records: %w", err)
	}

	var st Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	st.initMaps()

	return &st, nil
}

// Save writes stats to disk using an atomic temp-file-then-rename pattern.
func (s *Store) Save(st *Stats) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating records dir: %w", err)
	}

	st.Version = statsVersion
	st.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".records-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming records file: %w", err)
	}
	committed = true

	return nil
}

func newStats() *Stats {
	return &Stats{
		Version:              statsVersion,
		RunsPerFeed:          make(map[string]int),
		AchievementsUnlocked: make(map[string]time.Time),
	}
}

func (st *Stats) initMaps() {
	if st.RunsPerFeed == nil {
		st.RunsPerFeed = make(map[string]int)
	}
	if st.AchievementsUnlocked == nil {
		st.AchievementsUnlocked = make(map[string]time.Time)
	}
}

// clone returns a deep copy of Stats.
func (st *Stats) clone() *Stats {
	cp := *st
	cp.RunsPerFeed = make(map[string]int, len(st.RunsPerFeed))
	for k, v := range st.RunsPerFeed {
		cp.RunsPerFeed[k] = v
	}
	cp.AchievementsUnlocked = make(map[string]time.Time, len(st.AchievementsUnlocked))
	for k, v := range st.AchievementsUnlocked {
		cp.AchievementsUnlocked[k] = v
	}
	return &cp
}

// defaultStatsDir returns ~/.local/state/runtrace, respecting
// XDG_STATE_HOME if set.
func defaultStatsDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
