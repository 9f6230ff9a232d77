package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/model"
)

const rulePrefix = "automation_rule"

var (
	ErrInvalidRule = errors.New("invalid automation rule")
	ErrInvalidID   = errors.New("invalid rule id")
)

func ruleKey(userID int64, id string) string {
	return fmt.Sprintf("%s:%d:%s", rulePrefix, userID, id)
}

// RuleStore persists automation rules in the KV store. A rule's id is its
// creation time in unix nanoseconds. Rules never expire.
type RuleStore struct {
	kv  kv.Store
	now func() time.Time

	mu     sync.Mutex
	lastID int64
}

func NewRuleStore(store kv.Store) *RuleStore {
	return &RuleStore{kv: store, now: time.Now}
}

// Validate checks the fields every rule needs.
func Validate(rule model.AutomationRule) error {
	switch rule.Trigger.Type {
	case "":
		return fmt.Errorf("%w: trigger type is required", ErrInvalidRule)
	case model.TriggerDeviceState:
		if rule.Trigger.DeviceID <= 0 {
			return fmt.Errorf("%w: trigger device_id is required", ErrInvalidRule)
		}
		if rule.Trigger.Property == "" {
			return fmt.Errorf("%w: trigger property is required", ErrInvalidRule)
		}
	case model.TriggerSchedule:
		v, _ := rule.Trigger.Value.(string)
		if _, ok := parseClock(v); !ok {
			return fmt.Errorf("%w: schedule value must be HH:MM or HH:MM:SS", ErrInvalidRule)
		}
	}
	if rule.Action.DeviceID <= 0 {
		return fmt.Errorf("%w: action device_id is required", ErrInvalidRule)
	}
	if rule.Action.Command == nil {
		return fmt.Errorf("%w: action command is required", ErrInvalidRule)
	}
	for _, c := range rule.Conditions {
		if c.Type == "" {
			return fmt.Errorf("%w: condition type is required", ErrInvalidRule)
		}
	}
	return nil
}

// nextID returns a creation timestamp that is unique within this process.
func (s *RuleStore) nextID(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := now.UnixNano()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Create stores a new rule for userID.
func (s *RuleStore) Create(ctx context.Context, userID int64, trigger model.Trigger, action model.Action, conditions []model.Condition) (*model.AutomationRule, error) {
	if conditions == nil {
		conditions = []model.Condition{}
	}
	rule := model.AutomationRule{
		UserID:     userID,
		Trigger:    trigger,
		Action:     action,
		Conditions: conditions,
	}
	if err := Validate(rule); err != nil {
		return nil, err
	}

	nano := s.nextID(s.now())
	rule.ID = strconv.FormatInt(nano, 10)
	rule.CreatedAt = time.Unix(0, nano).UTC()

	if err := kv.SetJSON(ctx, s.kv, ruleKey(userID, rule.ID), rule, 0); err != nil {
		return nil, fmt.Errorf("store rule: %w", err)
	}
	return &rule, nil
}

// Get returns the rule, or nil if it does not exist.
func (s *RuleStore) Get(ctx context.Context, userID int64, id string) (*model.AutomationRule, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, ErrInvalidID
	}
	var rule model.AutomationRule
	err := kv.GetJSON(ctx, s.kv, ruleKey(userID, id), &rule)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &rule, nil
}

// List returns every rule of userID, oldest first.
func (s *RuleStore) List(ctx context.Context, userID int64) ([]model.AutomationRule, error) {
	keys, err := s.kv.Scan(ctx, fmt.Sprintf("%s:%d:*", rulePrefix, userID))
	if err != nil {
		return nil, fmt.Errorf("scan rules: %w", err)
	}

	rules := make([]model.AutomationRule, 0, len(keys))
	for _, k := range keys {
		var rule model.AutomationRule
		if err := kv.GetJSON(ctx, s.kv, k, &rule); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load rule %s: %w", k, err)
		}
		rules = append(rules, rule)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })
	return rules, nil
}

// Delete removes a rule and reports whether it existed.
func (s *RuleStore) Delete(ctx context.Context, userID int64, id string) (bool, error) {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if rule == nil {
		return false, nil
	}
	if err := s.kv.Delete(ctx, ruleKey(userID, id)); err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	return true, nil
}

// ListUsers returns the ids of every user with at least one rule.
func (s *RuleStore) ListUsers(ctx context.Context) ([]int64, error) {
	keys, err := s.kv.Scan(ctx, rulePrefix+":*")
	if err != nil {
		return nil, fmt.Errorf("scan rules: %w", err)
	}
	seen := make(map[int64]struct{})
	var users []int64
	for _, k := range keys {
		parts := strings.Split(k, ":")
		if len(parts) != 3 {
			continue
		}
		uid, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		users = append(users, uid)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

// PruneBefore deletes the user's rules created before t and returns how
// many were removed.
func (s *RuleStore) PruneBefore(ctx context.Context, userID int64, t time.Time) (int, error) {
	rules, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	var keys []string
	for _, r := range rules {
		if r.CreatedAt.Before(t) {
			keys = append(keys, ruleKey(userID, r.ID))
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("prune rules: %w", err)
	}
	return len(keys), nil
}
