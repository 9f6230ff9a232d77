package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifesync/lifesync/internal/model"
)

type userList struct {
	users []int64
	err   error
}

func (u userList) ListUsers(context.Context) ([]int64, error) { return u.users, u.err }

type perUserRules map[int64][]model.AutomationRule

func (p perUserRules) List(_ context.Context, userID int64) ([]model.AutomationRule, error) {
	return p[userID], nil
}

type countingSender struct {
	calls []string
}

func (c *countingSender) Send(_ context.Context, url, _ string, _ any) ([]byte, error) {
	c.calls = append(c.calls, url)
	return nil, nil
}

func TestSchedulerTick(t *testing.T) {
	rules := perUserRules{
		1: {{ID: "1", UserID: 1, Trigger: model.Trigger{Type: model.TriggerSchedule, Value: "07:30"}, Action: model.Action{DeviceID: 10, Command: map[string]any{}}}},
		2: {{ID: "2", UserID: 2, Trigger: model.Trigger{Type: model.TriggerSchedule, Value: "07:30"}, Action: model.Action{DeviceID: 20, Command: map[string]any{}}}},
	}
	devices := deviceMap{
		10: {ID: 10, UserID: 1, WebhookURL: "http://one"},
		20: {ID: 20, UserID: 2, WebhookURL: "http://two"},
	}
	sender := &countingSender{}
	e := NewEvaluator(rules, devices, sender, nil, 1, time.UTC, nil, nil)
	e.now = func() time.Time { return at("07:30:00") }

	s := NewScheduler(userList{users: []int64{1, 2}}, e, nil)
	s.Tick(context.Background())
	assert.Equal(t, []string{"http://one", "http://two"}, sender.calls)

	// A cancelled tick stops before visiting users.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Tick(ctx)
	assert.Len(t, sender.calls, 2)
}

func TestSchedulerTickListError(t *testing.T) {
	sender := &countingSender{}
	e := NewEvaluator(perUserRules{}, deviceMap{}, sender, nil, 1, time.UTC, nil, nil)
	s := NewScheduler(userList{err: errors.New("kv down")}, e, nil)
	s.Tick(context.Background())
	assert.Empty(t, sender.calls)
}

func TestSchedulerStartStop(t *testing.T) {
	e := NewEvaluator(perUserRules{}, deviceMap{}, &countingSender{}, nil, 1, time.UTC, nil, nil)
	s := NewScheduler(userList{}, e, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	s.Stop()
	s.Stop()
}
