package automation

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

// Matches reports whether rule fires for event at now: the trigger must match
// and every condition must pass.
func Matches(rule model.AutomationRule, event model.DeviceEvent, now time.Time) bool {
	if !matchTrigger(rule.Trigger, event, now) {
		return false
	}
	for _, c := range rule.Conditions {
		if !checkCondition(c, now) {
			return false
		}
	}
	return true
}

func matchTrigger(t model.Trigger, event model.DeviceEvent, now time.Time) bool {
	switch t.Type {
	case model.TriggerSchedule:
		s, ok := t.Value.(string)
		if !ok {
			return false
		}
		at, ok := parseClock(s)
		if !ok {
			return false
		}
		return now.Hour() == at.Hour() && now.Minute() == at.Minute()
	case model.TriggerDeviceState:
		if event.DeviceID != t.DeviceID {
			return false
		}
		return jsonEqual(event.State[t.Property], t.Value)
	}
	return false
}

func checkCondition(c model.Condition, now time.Time) bool {
	switch c.Type {
	case model.ConditionTimeRange:
		start, ok := parseClock(c.Start)
		if !ok {
			return false
		}
		end, ok := parseClock(c.End)
		if !ok {
			return false
		}
		// No wraparound: a range with start after end never passes.
		cur := secondsOfDay(now)
		return secondsOfDay(start) <= cur && cur <= secondsOfDay(end)
	}
	return true
}

// parseClock accepts "HH:MM:SS" or "HH:MM".
func parseClock(s string) (time.Time, bool) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// jsonEqual compares two decoded JSON values, treating numbers of any Go
// type as equal when their JSON forms are.
func jsonEqual(a, b any) bool {
	na, okA := normalize(a)
	nb, okB := normalize(b)
	if !okA || !okB {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
