package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

// ProfileStore persists gamification profiles and earned badges.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileCols = `id, user_id, level, xp, streak_count, last_activity`

func scanProfile(scanner interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var p model.UserProfile
	var last sql.NullTime
	if err := scanner.Scan(&p.ID, &p.UserID, &p.Level, &p.XP, &p.StreakCount, &last); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		p.LastActivity = &t
	}
	return &p, nil
}

// GetByUserID returns the profile for userID, or nil if none exists yet.
func (s *ProfileStore) GetByUserID(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the profile for userID, creating one at level 1 with
// no XP and no streak if needed.
func (s *ProfileStore) GetOrCreate(ctx context.Context, userID int64) (*model.UserProfile, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, level, xp, streak_count) VALUES (?, 1, 0, 0)
		 ON CONFLICT(user_id) DO NOTHING`, userID,
	); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	p, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile for user %d missing after create", userID)
	}
	return p, nil
}

// HasBadge reports whether the profile already earned the named badge.
func (s *ProfileStore) HasBadge(ctx context.Context, profileID int64, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.user_profile_id = ? AND b.name = ?`,
		profileID, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check badge: %w", err)
	}
	return n > 0, nil
}

// SaveProgress writes the profile and records every newly earned badge in a
// single transaction. Badge definitions are created on first award.
func (s *ProfileStore) SaveProgress(ctx context.Context, p *model.UserProfile, earned []model.Badge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullTime
	if p.LastActivity != nil {
		last = sql.NullTime{Time: p.LastActivity.UTC(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_profiles SET level = ?, xp = ?, streak_count = ?, last_activity = ? WHERE id = ?`,
		p.Level, p.XP, p.StreakCount, last, p.ID,
	); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	now := time.Now().UTC()
	for _, b := range earned {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO badges (name, description, criteria, icon_url) VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO NOTHING`,
			b.Name, b.Description, b.Criteria, b.IconURL,
		); err != nil {
			return fmt.Errorf("insert badge %s: %w", b.Name, err)
		}
		var badgeID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM badges WHERE name = ?`, b.Name).Scan(&badgeID); err != nil {
			return fmt.Errorf("get badge %s: %w", b.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_badges (user_profile_id, badge_id, earned_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_profile_id, badge_id) DO NOTHING`,
			p.ID, badgeID, now,
		); err != nil {
			return fmt.Errorf("insert user badge %s: %w", b.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListBadges returns the badges earned by userID, oldest first.
func (s *ProfileStore) ListBadges(ctx context.Context, userID int64) ([]model.EarnedBadge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.description, b.criteria, b.icon_url, ub.earned_at
		 FROM user_badges ub
		 JOIN badges b ON b.id = ub.badge_id
		 JOIN user_profiles p ON p.id = ub.user_profile_id
		 WHERE p.user_id = ?
		 ORDER BY ub.earned_at ASC, b.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.EarnedBadge
	for rows.Next() {
		var b model.EarnedBadge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Criteria, &b.IconURL, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
