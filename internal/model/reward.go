package model

// RewardType enumerates the grants the reward ledger can emit.
type RewardType string

const (
	RewardXP               RewardType = "xp"
	RewardStreak           RewardType = "streak"
	RewardCompletion       RewardType = "completion"
	RewardHealthMilestone  RewardType = "health_milestone"
	RewardFinanceMilestone RewardType = "finance_milestone"
	RewardLevelUp          RewardType = "level_up"
	RewardAchievement      RewardType = "achievement"
)

// Reward is one XP or achievement grant produced while processing progress.
// Only the fields relevant to Type are set.
type Reward struct {
	Type        RewardType `json:"type"`
	Amount      int        `json:"amount,omitempty"`
	XP          int        `json:"xp,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Count       int        `json:"count,omitempty"`
	GoalTitle   string     `json:"goal_title,omitempty"`
	NewLevel    int        `json:"new_level,omitempty"`
	Perks       []string   `json:"perks,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
}

// ProfileSnapshot is the profile summary returned alongside rewards.
type ProfileSnapshot struct {
	Level  int `json:"level"`
	XP     int `json:"xp"`
	Streak int `json:"streak"`
}
