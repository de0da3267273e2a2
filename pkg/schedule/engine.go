package schedule

import (
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/types"
)

// Input is everything the schedule engine consults. It is assembled by
// the caller from the game's top schedule item and slot states; the
// engine itself touches no shared state and is fully deterministic.
type Input struct {
	// Item is the game's top schedule item; nil when the stack is empty
	Item *types.ScheduleItem

	// Turn is the game's current turn number
	Turn int

	// Now is the current time in scaled minutes
	Now int64

	// PreviousTime is the time of the previous scheduled run (master or
	// host), 0 before the first
	PreviousTime int64

	MasterHasRun bool

	// AllTurnsIn is true when every occupied, non-temporary slot has
	// submitted a green or yellow turn
	AllTurnsIn bool
}

// Result classifies the engine's decision
type Result int

const (
	// ResultNone means no automatic event (stop/manual schedule, empty
	// stack, or asap waiting for turns)
	ResultNone Result = iota

	// ResultEvent carries a next action and time
	ResultEvent

	// ResultExpired means the item's end condition is fulfilled; the
	// caller pops the stack and re-evaluates
	ResultExpired
)

// NextEvent computes the next engine run for one game. It returns the
// action (master or host) with its absolute scaled-minute time.
func NextEvent(in Input) (types.Action, int64, Result) {
	item := in.Item
	if item == nil {
		return types.ActionNone, 0, ResultNone
	}

	switch item.Type {
	case types.ScheduleStop, types.ScheduleManual:
		return types.ActionNone, 0, ResultNone
	case types.ScheduleWeekly, types.ScheduleDaily, types.ScheduleASAP:
	default:
		return types.ActionNone, 0, ResultNone
	}

	// Turn-based end condition fires regardless of the next time
	if item.Condition == types.EndTurn && in.Turn >= item.ConditionTurn {
		return types.ActionNone, 0, ResultExpired
	}

	t, ok := nextTime(item, in)
	if !ok {
		return types.ActionNone, 0, ResultNone
	}

	action := types.ActionHost
	if !in.MasterHasRun {
		action = types.ActionMaster
	}

	if item.Condition == types.EndTime && t > item.ConditionTime {
		return types.ActionNone, 0, ResultExpired
	}
	return action, t, ResultEvent
}

// nextTime computes the policy time for the next run
func nextTime(item *types.ScheduleItem, in Input) (int64, bool) {
	var t int64
	switch item.Type {
	case types.ScheduleWeekly:
		after := in.Now
		if in.PreviousTime > after {
			after = in.PreviousTime
		}
		var ok bool
		t, ok = nextWeekly(after, item.WeekDays, item.Daytime)
		if !ok {
			return 0, false
		}

	case types.ScheduleDaily:
		if item.Interval <= 0 {
			return 0, false
		}
		prev := in.PreviousTime
		if prev == 0 {
			// First run: anchor the sequence at the schedule's daytime.
			// The master fires at the anchor itself, hosts at anchor +
			// k*interval.
			return alignDaytime(in.Now, item.Daytime), true
		}
		step := int64(item.Interval) * clock.MinutesPerDay
		t = prev + step
		for t <= in.Now {
			t += step
		}

	case types.ScheduleASAP:
		if !in.AllTurnsIn && in.MasterHasRun {
			return 0, false
		}
		t = in.Now + int64(item.HostDelay)
		return t, true

	default:
		return 0, false
	}

	// Host early: when every live turn is in, run after the configured
	// delay instead of waiting for the scheduled time. Only applies once
	// the master has run.
	if item.HostEarly && in.AllTurnsIn && in.MasterHasRun {
		early := in.Now + int64(item.HostDelay)
		if early < t {
			t = early
		}
	}
	return t, true
}

// nextWeekly returns the first time strictly after `after` that falls on
// an enabled weekday at the given daytime. Bit 0 of mask is Sunday.
func nextWeekly(after int64, mask uint8, daytime int) (int64, bool) {
	if mask == 0 {
		return 0, false
	}
	day := clock.StartOfDay(after)
	for d := 0; d < 8; d++ {
		cand := day + int64(d)*clock.MinutesPerDay + int64(daytime)
		if cand <= after {
			continue
		}
		if mask&(1<<uint(clock.Weekday(cand))) != 0 {
			return cand, true
		}
	}
	return 0, false
}

// alignDaytime returns the first time strictly after `now` with the
// given daytime
func alignDaytime(now int64, daytime int) int64 {
	cand := clock.StartOfDay(now) + int64(daytime)
	if cand <= now {
		cand += clock.MinutesPerDay
	}
	return cand
}

// SimState carries the evolving state of a schedule simulation
type SimState struct {
	Turn         int
	Time         int64
	PreviousTime int64
	MasterHasRun bool
}

// Simulate runs the engine forward over a schedule stack, returning up to
// maxEvents absolute times (a leading master time first when the master
// has not run). timeLimit of 0 means unlimited time. The stack is not
// modified; expired items are skipped in the simulation only.
func Simulate(stack []*types.ScheduleItem, st SimState, timeLimit int64, maxEvents int) []int64 {
	var out []int64
	idx := 0
	for len(out) < maxEvents && idx < len(stack) {
		action, t, res := NextEvent(Input{
			Item:         stack[idx],
			Turn:         st.Turn,
			Now:          st.Time,
			PreviousTime: st.PreviousTime,
			MasterHasRun: st.MasterHasRun,
		})
		switch res {
		case ResultExpired:
			idx++
			continue
		case ResultNone:
			return out
		}
		if timeLimit > 0 && t > timeLimit {
			return out
		}
		out = append(out, t)
		st.PreviousTime = t
		st.Time = t
		if action == types.ActionMaster {
			st.MasterHasRun = true
		} else {
			st.Turn++
		}
	}
	return out
}
