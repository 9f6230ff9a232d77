package model

import "time"

// Goal categories recognized by the goal endpoints and the reward ledger.
const (
	CategoryHealth   = "health"
	CategoryFinance  = "finance"
	CategoryPersonal = "personal"
	CategoryCareer   = "career"
	CategorySocial   = "social"
)

// ValidCategory reports whether c is one of the known goal categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryHealth, CategoryFinance, CategoryPersonal, CategoryCareer, CategorySocial:
		return true
	}
	return false
}

type Goal struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	TargetValue  float64   `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProgressLog struct {
	ID       int64     `json:"id"`
	GoalID   int64     `json:"goal_id"`
	UserID   int64     `json:"user_id"`
	Value    float64   `json:"value"`
	Notes    string    `json:"notes"`
	LoggedAt time.Time `json:"logged_at"`
}
