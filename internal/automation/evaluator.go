// Package automation stores smart-home automation rules and runs them
// against device events.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lifesync/lifesync/internal/metrics"
	"github.com/lifesync/lifesync/internal/model"
)

// RuleLister returns the rules to evaluate for a user.
type RuleLister interface {
	List(ctx context.Context, userID int64) ([]model.AutomationRule, error)
}

// DeviceLookup finds a device owned by a user; nil means not found.
type DeviceLookup interface {
	GetByID(ctx context.Context, id, userID int64) (*model.SmartDevice, error)
}

// CommandSender delivers a command to a device webhook.
type CommandSender interface {
	Send(ctx context.Context, url, secret string, command any) ([]byte, error)
}

// Notifier records that a rule fired.
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, message, priority string, data map[string]any) (*model.Notification, error)
}

// Firing statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Firing is the outcome of one matched rule.
type Firing struct {
	RuleID         string `json:"rule_id"`
	ActionDeviceID int64  `json:"action_device_id"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

type Evaluator struct {
	rules       RuleLister
	devices     DeviceLookup
	sender      CommandSender
	notifier    Notifier
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewEvaluator creates an evaluator that processes up to concurrency rules of
// one event at a time. Schedule triggers and time ranges are read as wall
// clock times in loc, time.Local when nil. notifier and m may be nil.
func NewEvaluator(rules RuleLister, devices DeviceLookup, sender CommandSender, notifier Notifier, concurrency int, loc *time.Location, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		rules:       rules,
		devices:     devices,
		sender:      sender,
		notifier:    notifier,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger.With("component", "automation"),
		loc:         loc,
		now:         time.Now,
	}
}

func (e *Evaluator) clock() time.Time {
	return e.now().In(e.loc)
}

// Evaluate reports whether rule fires for event at the evaluator's current time.
func (e *Evaluator) Evaluate(rule model.AutomationRule, event model.DeviceEvent) bool {
	return Matches(rule, event, e.clock())
}

// ProcessRules evaluates every rule of userID against a state change of
// triggerDevice and runs the actions of the rules that match. A failing rule
// never affects the others; only a failure to load the rules is returned.
// Firings are reported in rule order.
func (e *Evaluator) ProcessRules(ctx context.Context, userID int64, triggerDevice *model.SmartDevice, state map[string]any) ([]Firing, error) {
	rules, err := e.rules.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	now := e.clock()
	event := model.DeviceEvent{DeviceID: triggerDevice.ID, State: state, Timestamp: now}
	return e.run(ctx, userID, triggerDevice, rules, event, now), nil
}

func (e *Evaluator) run(ctx context.Context, userID int64, triggerDevice *model.SmartDevice, rules []model.AutomationRule, event model.DeviceEvent, now time.Time) []Firing {
	results := make([]*Firing, len(rules))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range rules {
		rule := rules[i]
		matched := Matches(rule, event, now)
		e.metrics.ObserveRule(matched)
		if !matched {
			continue
		}
		g.Go(func() error {
			f := e.fire(ctx, userID, triggerDevice, rule)
			results[i] = &f
			return nil
		})
	}
	g.Wait()

	firings := make([]Firing, 0, len(rules))
	for _, f := range results {
		if f != nil {
			firings = append(firings, *f)
		}
	}
	return firings
}

func (e *Evaluator) fire(ctx context.Context, userID int64, triggerDevice *model.SmartDevice, rule model.AutomationRule) (f Firing) {
	f = Firing{RuleID: rule.ID, ActionDeviceID: rule.Action.DeviceID}
	log := e.logger.With("user_id", userID, "rule_id", rule.ID, "action_device_id", rule.Action.DeviceID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("rule panicked", "panic", r)
			f.Status = StatusFailed
			f.Error = fmt.Sprint(r)
		}
	}()

	device, err := e.devices.GetByID(ctx, rule.Action.DeviceID, userID)
	if err != nil {
		log.Warn("look up action device", "error", err)
		f.Status = StatusSkipped
		f.Error = err.Error()
		return f
	}
	if device == nil {
		log.Warn("action device not found")
		f.Status = StatusSkipped
		f.Error = "action device not found"
		return f
	}

	f.Status = StatusDelivered
	if _, err := e.sender.Send(ctx, device.WebhookURL, device.WebhookSecret, rule.Action.Command); err != nil {
		log.Warn("send device command", "error", err)
		f.Status = StatusFailed
		f.Error = err.Error()
	}
	e.metrics.ObserveFiring()

	if e.notifier != nil {
		msg := fmt.Sprintf("Automation rule triggered: %s changed, %s received a command", triggerDevice.Name, device.Name)
		data := map[string]any{
			"rule_id":        rule.ID,
			"trigger_device": triggerDevice.Name,
			"action_device":  device.Name,
			"action":         rule.Action,
		}
		if _, err := e.notifier.Notify(ctx, userID, model.NotifTypeAutomationTriggered, msg, model.PriorityNormal, data); err != nil {
			log.Warn("notify rule firing", "error", err)
		}
	}

	log.Info("rule fired", "status", f.Status)
	return f
}

// ProcessSchedule evaluates only the schedule rules of userID at the current
// time, as if a clock tick were a device event.
func (e *Evaluator) ProcessSchedule(ctx context.Context, userID int64) ([]Firing, error) {
	rules, err := e.rules.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	var scheduled []model.AutomationRule
	for _, r := range rules {
		if r.Trigger.Type == model.TriggerSchedule {
			scheduled = append(scheduled, r)
		}
	}

	now := e.clock()
	clock := &model.SmartDevice{Name: "schedule"}
	return e.run(ctx, userID, clock, scheduled, model.DeviceEvent{Timestamp: now}, now), nil
}
