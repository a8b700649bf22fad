// Package records keeps lifetime running statistics and personal bests
// across runs and unlocks milestone achievements.
package records

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
)

const dayLayout = "2006-01-02"

// AchievementCallback is invoked for each newly unlocked achievement.
type AchievementCallback func(Achievement)

// Unlocked pairs an achievement with the time it was earned.
type Unlocked struct {
	Achievement
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Book records finished runs into the lifetime stats. It satisfies the
// tracker's archiver so every stopped run is counted once.
type Book struct {
	persist *Store
	engine  *AchievementEngine
	loc     *time.Location
	clock   func() time.Time

	mu            sync.Mutex
	stats         *Stats
	onAchievement AchievementCallback
}

// NewBook loads existing stats from the store.
func NewBook(persist *Store) (*Book, error) {
	stats, err := persist.Load()
	if err != nil {
		return nil, err
	}
	return &Book{
		persist: persist,
		engine:  NewAchievementEngine(),
		loc:     time.Local,
		clock:   time.Now,
		stats:   stats,
	}, nil
}

// SetLocation sets the time zone used to assign runs to calendar days.
func (b *Book) SetLocation(loc *time.Location) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loc = loc
}

// OnAchievement registers a callback invoked whenever an achievement
// unlocks.
func (b *Book) OnAchievement(cb AchievementCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onAchievement = cb
}

// Stats returns a deep copy of the current stats.
func (b *Book) Stats() *Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats.clone()
}

// Achievements lists every registered achievement in registry order with
// its unlock time, if earned.
func (b *Book) Achievements() []Unlocked {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg := b.engine.Registry()
	out := make([]Unlocked, 0, len(reg))
	for _, a := range reg {
		u := Unlocked{Achievement: a}
		if at, ok := b.stats.AchievementsUnlocked[a.ID]; ok {
			u.UnlockedAt = at
		}
		out = append(out, u)
	}
	return out
}

// Save counts a stopped run and persists the stats. Runs that covered no
// distance, or that were already counted, are ignored.
func (b *Book) Save(snap session.Snapshot) error {
	b.mu.Lock()
	counted := b.recordLocked(snap)
	if !counted {
		b.mu.Unlock()
		return nil
	}
	unlocked := b.engine.Evaluate(b.stats, b.clock())
	stats := b.stats.clone()
	cb := b.onAchievement
	b.mu.Unlock()

	for _, a := range unlocked {
		log.Printf("Achievement unlocked: %s", a.Name)
		if cb != nil {
			cb(a)
		}
	}
	return b.persist.Save(stats)
}

func (b *Book) recordLocked(snap session.Snapshot) bool {
	st := b.stats
	if snap.ID == "" || snap.DistanceM <= 0 || snap.ID == st.LastRunID {
		return false
	}
	st.LastRunID = snap.ID

	st.TotalRuns++
	st.TotalDistanceM += snap.DistanceM
	st.TotalElapsedMs += snap.ElapsedMs

	feedName := snap.Feed.Name
	if feedName == "" {
		feedName = "unknown"
	}
	st.RunsPerFeed[feedName]++

	if snap.DistanceM > st.LongestRunM {
		st.LongestRunM = snap.DistanceM
	}
	if snap.ElapsedMs > st.LongestElapsedMs {
		st.LongestElapsedMs = snap.ElapsedMs
	}
	if snap.DistanceM >= metersPerMile {
		pace := geo.PaceMinPerMile(snap.DistanceM, snap.Elapsed())
		if pace > 0 && !math.IsInf(pace, 0) && (st.BestPace == 0 || pace < st.BestPace) {
			st.BestPace = pace
		}
	}

	started := b.clock()
	if snap.StartedAt != nil {
		started = *snap.StartedAt
	}
	b.advanceStreakLocked(started.In(b.loc))
	return true
}

// advanceStreakLocked extends, restarts or keeps the day streak for a run
// on day. Runs dated before the last counted day leave it alone.
func (b *Book) advanceStreakLocked(day time.Time) {
	st := b.stats
	today := day.Format(dayLayout)

	switch {
	case st.LastRunDay == "":
		st.CurrentStreakDays = 1
	case today == st.LastRunDay:
		return
	default:
		last, err := time.ParseInLocation(dayLayout, st.LastRunDay, b.loc)
		if err != nil {
			st.CurrentStreakDays = 1
			break
		}
		next := last.AddDate(0, 0, 1).Format(dayLayout)
		switch {
		case today == next:
			st.CurrentStreakDays++
		case today < st.LastRunDay:
			return
		default:
			st.CurrentStreakDays = 1
		}
	}

	st.LastRunDay = today
	if st.CurrentStreakDays > st.LongestStreakDays {
		st.LongestStreakDays = st.CurrentStreakDays
	}
}
