package records

import (
	"time"
)

// Tier represents an achievement's difficulty level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Category groups related achievements.
type Category string

const (
	CategoryMilestones  Category = "Milestones"
	CategoryDistance    Category = "Distance"
	CategoryLifetime    Category = "Lifetime"
	CategorySpeed       Category = "Speed"
	CategoryConsistency Category = "Consistency"
)

// Race distances in meters.
const (
	Meters5K           = 5000.0
	Meters10K          = 10000.0
	MetersHalf         = 21097.5
	MetersMarathon     = 42195.0
	metersPerMile      = 1609.344
	metersPerKilometer = 1000.0
)

// Achievement describes a single unlockable goal.
type Achievement struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tier        Tier     `json:"tier"`
	Category    Category `json:"category"`
	// Condition reports whether the achievement is earned given the stats.
	Condition func(*Stats) bool `json:"-"`
}

// AchievementEngine evaluates which achievements become newly unlocked.
type AchievementEngine struct {
	registry []Achievement
}

// NewAchievementEngine creates an engine with the full achievement set.
func NewAchievementEngine() *AchievementEngine {
	return &AchievementEngine{registry: buildRegistry()}
}

// Registry returns a copy of all registered achievements.
func (e *AchievementEngine) Registry() []Achievement {
	out := make([]Achievement, len(e.registry))
	copy(out, e.registry)
	return out
}

// Evaluate checks every locked achievement against stats and records the
// newly passing ones in stats.AchievementsUnlocked at now. The caller
// persists stats.
func (e *AchievementEngine) Evaluate(stats *Stats, now time.Time) []Achievement {
	var unlocked []Achievement
	for _, a := range e.registry {
		if _, already := stats.AchievementsUnlocked[a.ID]; already {
			continue
		}
		if a.Condition(stats) {
			stats.AchievementsUnlocked[a.ID] = now.UTC()
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

func paceUnder(s *Stats, minPerMile float64) bool {
	return s.BestPace > 0 && s.BestPace < minPerMile
}

func buildRegistry() []Achievement {
	return []Achievement{

		// ── Milestones ─────────────────────────────────────────────────────

		{
			ID: "first_steps", Name: "First Steps",
			Description: "Finish your first run",
			Tier:        TierBronze, Category: CategoryMilestones,
			Condition: func(s *Stats) bool { return s.TotalRuns >= 1 },
		},
		{
			ID: "regular", Name: "Regular",
			Description: "Finish 10 runs",
			Tier:        TierBronze, Category: CategoryMilestones,
			Condition: func(s *Stats) bool { return s.TotalRuns >= 10 },
		},
		{
			ID: "dedicated", Name: "Dedicated",
			Description: "Finish 50 runs",
			Tier:        TierSilver, Category: CategoryMilestones,
			Condition: func(s *Stats) bool { return s.TotalRuns >= 50 },
		},
		{
			ID: "centurion", Name: "Centurion",
			Description: "Finish 100 runs",
			Tier:        TierGold, Category: CategoryMilestones,
			Condition: func(s *Stats) bool { return s.TotalRuns >= 100 },
		},
		{
			ID: "signal_hunter", Name: "Signal Hunter",
			Description: "Record runs from 3 different location feeds",
			Tier:        TierBronze, Category: CategoryMilestones,
			Condition: func(s *Stats) bool { return len(s.RunsPerFeed) >= 3 },
		},

		// ── Distance ───────────────────────────────────────────────────────

		{
			ID: "five_k", Name: "5K",
			Description: "Cover 5 km in a single run",
			Tier:        TierBronze, Category: CategoryDistance,
			Condition: func(s *Stats) bool { return s.LongestRunM >= Meters5K },
		},
		{
			ID: "ten_k", Name: "10K",
			Description: "Cover 10 km in a single run",
			Tier:        TierSilver, Category: CategoryDistance,
			Condition: func(s *Stats) bool { return s.LongestRunM >= Meters10K },
		},
		{
			ID: "half_marathon", Name: "Half Marathon",
			Description: "Cover 21.1 km in a single run",
			Tier:        TierGold, Category: CategoryDistance,
			Condition: func(s *Stats) bool { return s.LongestRunM >= MetersHalf },
		},
		{
			ID: "marathon", Name: "Marathon",
			Description: "Cover 42.2 km in a single run",
			Tier:        TierPlatinum, Category: CategoryDistance,
			Condition: func(s *Stats) bool { return s.LongestRunM >= MetersMarathon },
		},
		{
			ID: "hour_of_power", Name: "Hour of Power",
			Description: "Keep a single run going for an hour",
			Tier:        TierSilver, Category: CategoryDistance,
			Condition: func(s *Stats) bool { return s.LongestElapsedMs >= time.Hour.Milliseconds() },
		},

		// ── Lifetime ───────────────────────────────────────────────────────

		{
			ID: "century_km", Name: "Century",
			Description: "Run 100 km in total",
			Tier:        TierBronze, Category: CategoryLifetime,
			Condition: func(s *Stats) bool { return s.TotalDistanceM >= 100*metersPerKilometer },
		},
		{
			ID: "five_hundred_km", Name: "Long Haul",
			Description: "Run 500 km in total",
			Tier:        TierSilver, Category: CategoryLifetime,
			Condition: func(s *Stats) bool { return s.TotalDistanceM >= 500*metersPerKilometer },
		},
		{
			ID: "thousand_miles", Name: "Thousand Miles",
			Description: "Run 1,000 miles in total",
			Tier:        TierGold, Category: CategoryLifetime,
			Condition: func(s *Stats) bool { return s.TotalDistanceM >= 1000*metersPerMile },
		},

		// ── Speed ──────────────────────────────────────────────────────────

		{
			ID: "sub_ten", Name: "Double Digits No More",
			Description: "Hold a pace under 10:00 per mile over a mile or more",
			Tier:        TierBronze, Category: CategorySpeed,
			Condition: func(s *Stats) bool { return paceUnder(s, 10) },
		},
		{
			ID: "sub_eight", Name: "Quick Feet",
			Description: "Hold a pace under 8:00 per mile over a mile or more",
			Tier:        TierSilver, Category: CategorySpeed,
			Condition: func(s *Stats) bool { return paceUnder(s, 8) },
		},
		{
			ID: "sub_six", Name: "Jet Stream",
			Description: "Hold a pace under 6:00 per mile over a mile or more",
			Tier:        TierGold, Category: CategorySpeed,
			Condition: func(s *Stats) bool { return paceUnder(s, 6) },
		},

		// ── Consistency ────────────────────────────────────────────────────

		{
			ID: "three_day_streak", Name: "Warming Up",
			Description: "Run on 3 consecutive days",
			Tier:        TierBronze, Category: CategoryConsistency,
			Condition: func(s *Stats) bool { return s.LongestStreakDays >= 3 },
		},
		{
			ID: "week_streak", Name: "Full Week",
			Description: "Run on 7 consecutive days",
			Tier:        TierSilver, Category: CategoryConsistency,
			Condition: func(s *Stats) bool { return s.LongestStreakDays >= 7 },
		},
		{
			ID: "month_streak", Name: "Unbroken",
			Description: "Run on 30 consecutive days",
			Tier:        TierGold, Category: CategoryConsistency,
			Condition: func(s *Stats) bool { return s.LongestStreakDays >= 30 },
		},
	}
}
