package gamification

import "time"

// Perk is unlocked once a profile reaches Level and stays unlocked.
type Perk struct {
	Level int
	Name  string
}

// Achievement is a one-time badge with an XP bonus. Earned decides whether
// the profile qualifies given its state after the current progress update.
type Achievement struct {
	ID          string
	Description string
	XP          int
	Icon        string
	Earned      Predicate
}

// Config holds the reward constants. An Engine copies it on construction and
// never mutates it.
type Config struct {
	ProgressXP         int
	CompletionXP       int
	StreakXP           int
	HealthMilestoneXP  int
	FinanceMilestoneXP int

	// LevelMultiplier is the XP needed per level: level N ends at N*LevelMultiplier.
	LevelMultiplier int

	// StreakWindow is the longest gap between activities that keeps a streak.
	StreakWindow time.Duration

	Perks []Perk
	// Achievements are checked in slice order, which is also reward order.
	Achievements []Achievement

	AuditTTL time.Duration

	// Now is the engine clock and Location is used for time-of-day checks.
	Now      func() time.Time
	Location *time.Location
}

// DefaultConfig returns the standard LifeSync reward table.
func DefaultConfig() Config {
	return Config{
		ProgressXP:         10,
		CompletionXP:       100,
		StreakXP:           50,
		HealthMilestoneXP:  75,
		FinanceMilestoneXP: 75,
		LevelMultiplier:    1000,
		StreakWindow:       24 * time.Hour,
		Perks: []Perk{
			{Level: 5, Name: "Custom theme unlocked"},
			{Level: 10, Name: "Advanced analytics unlocked"},
			{Level: 15, Name: "Priority notifications"},
			{Level: 20, Name: "Extended history access"},
		},
		// early_bird and night_owl are listed but never awarded by default.
		// ProgressLoggedBefore and ProgressLoggedFrom can switch them on.
		Achievements: []Achievement{
			{
				ID:          "early_bird",
				Description: "Complete 5 tasks before 9 AM",
				XP:          200,
				Icon:        "sunrise",
				Earned:      Never,
			},
			{
				ID:          "night_owl",
				Description: "Maintain productivity after 9 PM",
				XP:          200,
				Icon:        "moon",
				Earned:      Never,
			},
			{
				ID:          "consistency_king",
				Description: "Maintain a 7-day streak",
				XP:          300,
				Icon:        "crown",
				Earned:      StreakAtLeast(7),
			},
			{
				ID:          "health_master",
				Description: "Meet all health goals for a week",
				XP:          400,
				Icon:        "heart",
				Earned:      AllGoalsCompleted("health", 7*24*time.Hour),
			},
			{
				ID:          "savings_expert",
				Description: "Stay under budget for 3 months",
				XP:          500,
				Icon:        "piggy-bank",
				Earned:      AllGoalsCompleted("finance", 90*24*time.Hour),
			},
		},
		AuditTTL: 24 * time.Hour,
		Now:      time.Now,
		Location: time.Local,
	}
}

// PerksAt returns every perk unlocked at or below level, in table order.
func (c Config) PerksAt(level int) []string {
	var perks []string
	for _, p := range c.Perks {
		if level >= p.Level {
			perks = append(perks, p.Name)
		}
	}
	return perks
}
