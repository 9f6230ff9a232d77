package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lifesync/lifesync/internal/model"
)

func at(clock string) time.Time {
	t, _ := time.Parse("15:04:05", clock)
	return time.Date(2024, 3, 15, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func scheduleRule(value any, conditions ...model.Condition) model.AutomationRule {
	return model.AutomationRule{
		ID:         "1",
		Trigger:    model.Trigger{Type: model.TriggerSchedule, Value: value},
		Action:     model.Action{DeviceID: 1, Command: map[string]any{"power": "on", "brightness": 100}},
		Conditions: conditions,
	}
}

func TestScheduleTriggerExactMinute(t *testing.T) {
	rule := scheduleRule("08:00:00")
	event := model.DeviceEvent{}

	assert.True(t, Matches(rule, event, at("08:00:00")))
	assert.True(t, Matches(rule, event, at("08:00:59")), "seconds are ignored")
	assert.False(t, Matches(rule, event, at("08:01:00")))
	assert.False(t, Matches(rule, event, at("07:59:00")))
	assert.False(t, Matches(rule, event, at("20:00:00")))

	assert.True(t, Matches(scheduleRule("08:00"), event, at("08:00:30")), "HH:MM accepted")
	assert.False(t, Matches(scheduleRule("8 o'clock"), event, at("08:00:00")))
	assert.False(t, Matches(scheduleRule(800), event, at("08:00:00")))
}

func TestTimeRangeCondition(t *testing.T) {
	daytime := model.Condition{Type: model.ConditionTimeRange, Start: "06:00:00", End: "22:00:00"}
	rule := scheduleRule("23:00:00", daytime)

	// Trigger matches at 23:00 but the condition does not.
	assert.False(t, Matches(rule, model.DeviceEvent{}, at("23:00:00")))

	assert.True(t, checkCondition(daytime, at("10:00:00")))
	assert.False(t, checkCondition(daytime, at("23:00:00")))
	assert.True(t, checkCondition(daytime, at("06:00:00")), "start is inclusive")
	assert.True(t, checkCondition(daytime, at("22:00:00")), "end is inclusive")
	assert.False(t, checkCondition(daytime, at("22:00:01")))
	assert.False(t, checkCondition(daytime, at("05:59:59")))
}

func TestTimeRangeNoWraparound(t *testing.T) {
	overnight := model.Condition{Type: model.ConditionTimeRange, Start: "22:00:00", End: "06:00:00"}
	for _, clock := range []string{"23:00:00", "02:00:00", "12:00:00", "22:00:00", "06:00:00"} {
		assert.False(t, checkCondition(overnight, at(clock)), clock)
	}
}

func TestTimeRangeUnparsable(t *testing.T) {
	assert.False(t, checkCondition(model.Condition{Type: model.ConditionTimeRange, Start: "morning", End: "22:00"}, at("10:00:00")))
	assert.False(t, checkCondition(model.Condition{Type: model.ConditionTimeRange, Start: "06:00"}, at("10:00:00")))
}

func TestUnknownConditionPasses(t *testing.T) {
	rule := scheduleRule("10:00:00", model.Condition{Type: "weather", Start: "sunny"})
	assert.True(t, Matches(rule, model.DeviceEvent{}, at("10:00:00")))
}

func TestConditionConjunction(t *testing.T) {
	rule := scheduleRule("10:00:00",
		model.Condition{Type: model.ConditionTimeRange, Start: "06:00:00", End: "22:00:00"},
		model.Condition{Type: model.ConditionTimeRange, Start: "11:00:00", End: "12:00:00"},
	)
	assert.False(t, Matches(rule, model.DeviceEvent{}, at("10:00:00")))
}

func TestDeviceStateTrigger(t *testing.T) {
	rule := model.AutomationRule{
		Trigger: model.Trigger{Type: model.TriggerDeviceState, DeviceID: 1, Property: "power", Value: "on"},
		Action:  model.Action{DeviceID: 2, Command: map[string]any{"power": "on"}},
	}
	now := at("12:00:00")

	assert.True(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"power": "on"}}, now))
	assert.False(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"power": "off"}}, now))
	assert.False(t, Matches(rule, model.DeviceEvent{DeviceID: 3, State: map[string]any{"power": "on"}}, now))
	assert.False(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{}}, now))
}

func TestDeviceStateTriggerNumericValues(t *testing.T) {
	rule := model.AutomationRule{
		Trigger: model.Trigger{Type: model.TriggerDeviceState, DeviceID: 1, Property: "brightness", Value: 75},
	}
	now := at("12:00:00")

	assert.True(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"brightness": float64(75)}}, now))
	assert.True(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"brightness": 75}}, now))
	assert.False(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"brightness": "75"}}, now))
}

func TestUnknownTriggerNeverMatches(t *testing.T) {
	rule := model.AutomationRule{Trigger: model.Trigger{Type: "geofence", Value: "home"}}
	assert.False(t, Matches(rule, model.DeviceEvent{DeviceID: 1, State: map[string]any{"location": "home"}}, at("12:00:00")))
}

func TestEvaluateUsesEvaluatorClock(t *testing.T) {
	e := NewEvaluator(nil, nil, nil, nil, 1, time.UTC, nil, nil)
	e.now = func() time.Time { return at("08:00:00") }
	assert.True(t, e.Evaluate(scheduleRule("08:00:00"), model.DeviceEvent{}))
	e.now = func() time.Time { return at("08:01:00") }
	assert.False(t, e.Evaluate(scheduleRule("08:00:00"), model.DeviceEvent{}))
}

func TestEvaluateUsesEvaluatorLocation(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	e := NewEvaluator(nil, nil, nil, nil, 1, plus2, nil, nil)
	// 06:00 UTC is 08:00 in plus2.
	e.now = func() time.Time { return at("06:00:00") }

	assert.True(t, e.Evaluate(scheduleRule("08:00"), model.DeviceEvent{}))
	assert.False(t, e.Evaluate(scheduleRule("06:00"), model.DeviceEvent{}))

	ranged := scheduleRule("08:00", model.Condition{Type: model.ConditionTimeRange, Start: "07:30", End: "08:30"})
	assert.True(t, e.Evaluate(ranged, model.DeviceEvent{}))
}
