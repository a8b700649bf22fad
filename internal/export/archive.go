package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/runtrace/runtrace/internal/session"
)

const (
	// archiveVersion is bumped when the record schema changes.
	archiveVersion = 1

	appDirName  = "runtrace"
	runsDirName = "runs"
)

// ErrNotFound is returned for a run id with no archived record.
var ErrNotFound = errors.New("run not found")

// Record is one archived run as stored on disk.
type Record struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"savedAt"`
	Summary session.Summary  `json:"summary"`
	Run     session.Snapshot `json:"run"`
}

// Entry is the listing form of a Record.
type Entry struct {
	ID         string     `json:"id"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	SavedAt    time.Time  `json:"savedAt"`
	ElapsedMs  int64      `json:"elapsedMs"`
	DistanceM  float64    `json:"distanceM"`
	Pace       string     `json:"pace"`
	PointCount int        `json:"pointCount"`
}

// Archive stores finished runs as JSON files, one per run, under
// ~/.local/state/runtrace/runs (respecting XDG_STATE_HOME).
type Archive struct {
	dir     string
	privacy session.PrivacyFilter
}

// NewArchive creates an archive in dir. The directory is created on the
// first Save. Pass an empty string for the default XDG state path.
func NewArchive(dir string) *Archive {
	if dir == "" {
		dir = DefaultArchiveDir()
	}
	return &Archive{dir: dir}
}

// SetPrivacy applies f to every run before it is written.
func (a *Archive) SetPrivacy(f session.PrivacyFilter) {
	a.privacy = f
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

func (a *Archive) path(id string) string {
	return filepath.Join(a.dir, id+".json")
}

// Save writes the run using an atomic temp-file-then-rename pattern. Runs
// without an id (never started) are rejected.
func (a *Archive) Save(snap session.Snapshot) error {
	if err := validID(snap.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(a.dir, 0o700); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	// The file name keeps the real id so the run can be found again.
	id := snap.ID
	if !a.privacy.IsNoop() {
		snap = a.privacy.Apply(snap)
	}
	rec := Record{
		Version: archiveVersion,
		SavedAt: time.Now().UTC(),
		Summary: session.Summarize(snap),
		Run:     snap,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(a.dir, ".run-*.tmp")
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
	if err := os.Rename(tmpPath, a.path(id)); err != nil {
		return fmt.Errorf("renaming run file: %w", err)
	}
	committed = true

	return nil
}

// Load reads one archived run.
func (a *Archive) Load(id string) (*Record, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading run: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing run %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes an archived run.
func (a *Archive) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(a.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("deleting run: %w", err)
	}
	return nil
}

// List returns every archived run, newest first. Unreadable files are
// skipped. A missing archive directory is an empty list.
func (a *Archive) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("reading archive dir: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := a.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:         strings.TrimSuffix(name, ".json"),
			StartedAt:  rec.Run.StartedAt,
			SavedAt:    rec.SavedAt,
			ElapsedMs:  rec.Summary.ElapsedMs,
			DistanceM:  rec.Summary.DistanceM,
			Pace:       rec.Summary.Pace,
			PointCount: rec.Summary.PointCount,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entryTime(entries[i]).After(entryTime(entries[j]))
	})
	return entries, nil
}

func entryTime(e Entry) time.Time {
	if e.StartedAt != nil {
		return *e.StartedAt
	}
	return e.SavedAt
}

// validID rejects anything that is not a run uuid, which also keeps ids
// from escaping the archive directory.
func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid run id %q", ErrNotFound, id)
	}
	return nil
}

// DefaultArchiveDir returns ~/.local/state/runtrace/runs, respecting
// XDG_STATE_HOME if set.
func DefaultArchiveDir() string {
	return filepath.Join(StateDir(), runsDirName)
}

// StateDir returns ~/.local/state/runtrace, respecting XDG_STATE_HOME.
func StateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
