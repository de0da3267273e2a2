package schedule

import (
	"testing"

	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = clock.MinutesPerDay

func TestNoEventSchedules(t *testing.T) {
	tests := []struct {
		name string
		item *types.ScheduleItem
	}{
		{"empty stack", nil},
		{"stop", &types.ScheduleItem{Type: types.ScheduleStop}},
		{"manual", &types.ScheduleItem{Type: types.ScheduleManual}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, res := NextEvent(Input{Item: tt.item, Now: 1000, MasterHasRun: true})
			assert.Equal(t, ResultNone, res)
		})
	}
}

func TestMasterBeforeFirstHost(t *testing.T) {
	item := &types.ScheduleItem{Type: types.ScheduleDaily, Interval: 3, Daytime: 600}

	action, tm, res := NextEvent(Input{Item: item, Now: 10 * day, MasterHasRun: false})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, types.ActionMaster, action)
	assert.Equal(t, int64(10*day+600), tm)
}

func TestDailyAdvancesFromPrevious(t *testing.T) {
	item := &types.ScheduleItem{Type: types.ScheduleDaily, Interval: 3, Daytime: 600}
	prev := int64(10*day + 600)

	action, tm, res := NextEvent(Input{
		Item: item, Now: prev, PreviousTime: prev, MasterHasRun: true,
	})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, types.ActionHost, action)
	assert.Equal(t, prev+3*day, tm)

	// Missed runs are skipped past "now"
	_, tm, res = NextEvent(Input{
		Item: item, Now: prev + 7*day, PreviousTime: prev, MasterHasRun: true,
	})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, prev+9*day, tm)
}

func TestWeekly(t *testing.T) {
	// Epoch day 0 is Thursday (weekday 4). Enable Sunday (bit 0) at 12:00.
	item := &types.ScheduleItem{
		Type:     types.ScheduleWeekly,
		WeekDays: 1 << 0,
		Daytime:  720,
	}

	// From Thursday 00:00, next Sunday is 3 days out
	_, tm, res := NextEvent(Input{Item: item, Now: 0, MasterHasRun: true})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, int64(3*day+720), tm)
	assert.Equal(t, 0, clock.Weekday(tm))

	// From just after that Sunday's time, jump a full week
	_, tm2, res := NextEvent(Input{Item: item, Now: tm, PreviousTime: tm, MasterHasRun: true})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, tm+7*day, tm2)
}

func TestWeeklyMultipleDays(t *testing.T) {
	// Sunday and Monday enabled
	item := &types.ScheduleItem{
		Type:     types.ScheduleWeekly,
		WeekDays: 1<<0 | 1<<1,
		Daytime:  0,
	}
	_, tm, res := NextEvent(Input{Item: item, Now: 3 * day, MasterHasRun: true}) // Sunday 00:00
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, int64(4*day), tm) // Monday
}

func TestWeeklyNoDaysEnabled(t *testing.T) {
	item := &types.ScheduleItem{Type: types.ScheduleWeekly, WeekDays: 0}
	_, _, res := NextEvent(Input{Item: item, Now: 0, MasterHasRun: true})
	assert.Equal(t, ResultNone, res)
}

func TestASAP(t *testing.T) {
	item := &types.ScheduleItem{Type: types.ScheduleASAP, HostDelay: 30}

	// Waiting for turns
	_, _, res := NextEvent(Input{Item: item, Now: 500, MasterHasRun: true, AllTurnsIn: false})
	assert.Equal(t, ResultNone, res)

	// All turns in: host after the delay
	action, tm, res := NextEvent(Input{Item: item, Now: 500, MasterHasRun: true, AllTurnsIn: true})
	require.Equal(t, ResultEvent, res)
	assert.Equal(t, types.ActionHost, action)
	assert.Equal(t, int64(530), tm)
}

func TestHostEarly(t *testing.T) {
	item := &types.ScheduleItem{
		Type: types.ScheduleDaily, Interval: 3, Daytime: 600,
		HostEarly: true, HostDelay: 30,
	}
	prev := int64(10*day + 600)

	// Not all turns in: regular schedule
	_, tm, _ := NextEvent(Input{Item: item, Now: prev + 60, PreviousTime: prev, MasterHasRun: true})
	assert.Equal(t, prev+3*day, tm)

	// All turns in: advanced to now + delay
	_, tm, _ = NextEvent(Input{
		Item: item, Now: prev + 60, PreviousTime: prev,
		MasterHasRun: true, AllTurnsIn: true,
	})
	assert.Equal(t, prev+90, tm)

	// Never before the master has run
	action, tm, _ := NextEvent(Input{Item: item, Now: 10 * day, AllTurnsIn: true})
	assert.Equal(t, types.ActionMaster, action)
	assert.Equal(t, int64(10*day+600), tm)
}

func TestEndConditionTurn(t *testing.T) {
	item := &types.ScheduleItem{
		Type: types.ScheduleDaily, Interval: 1, Daytime: 0,
		Condition: types.EndTurn, ConditionTurn: 10,
	}

	_, _, res := NextEvent(Input{Item: item, Turn: 9, Now: day, MasterHasRun: true, PreviousTime: day})
	assert.Equal(t, ResultEvent, res)

	_, _, res = NextEvent(Input{Item: item, Turn: 10, Now: day, MasterHasRun: true, PreviousTime: day})
	assert.Equal(t, ResultExpired, res)
}

func TestEndConditionTime(t *testing.T) {
	item := &types.ScheduleItem{
		Type: types.ScheduleDaily, Interval: 1, Daytime: 0,
		Condition: types.EndTime, ConditionTime: 5 * day,
	}

	_, _, res := NextEvent(Input{Item: item, Now: 3 * day, PreviousTime: 3 * day, MasterHasRun: true})
	assert.Equal(t, ResultEvent, res)

	_, _, res = NextEvent(Input{Item: item, Now: 5 * day, PreviousTime: 5 * day, MasterHasRun: true})
	assert.Equal(t, ResultExpired, res)
}

func TestEndConditionForever(t *testing.T) {
	item := &types.ScheduleItem{
		Type: types.ScheduleDaily, Interval: 1, Daytime: 0,
		Condition: types.EndForever,
	}
	_, _, res := NextEvent(Input{Item: item, Turn: 10000, Now: day, PreviousTime: day, MasterHasRun: true})
	assert.Equal(t, ResultEvent, res)
}

func TestDeterminism(t *testing.T) {
	in := Input{
		Item: &types.ScheduleItem{Type: types.ScheduleDaily, Interval: 2, Daytime: 300},
		Turn: 5, Now: 20*day + 100, PreviousTime: 18*day + 300, MasterHasRun: true,
	}
	a1, t1, r1 := NextEvent(in)
	a2, t2, r2 := NextEvent(in)
	assert.Equal(t, a1, a2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, r1, r2)
}

func TestSimulateDailyWithTurnEnd(t *testing.T) {
	// Daily every 3 days ending at turn 10: master plus turns 1..10
	stack := []*types.ScheduleItem{{
		Type: types.ScheduleDaily, Interval: 3, Daytime: 360,
		Condition: types.EndTurn, ConditionTurn: 10,
	}}

	times := Simulate(stack, SimState{Turn: 0, Time: 100 * day}, 0, 101)
	require.Len(t, times, 11)
	for i := 1; i < len(times); i++ {
		assert.Equal(t, int64(3*day), times[i]-times[i-1],
			"spacing between event %d and %d", i-1, i)
	}
}

func TestSimulateTimeLimit(t *testing.T) {
	stack := []*types.ScheduleItem{{Type: types.ScheduleDaily, Interval: 1, Daytime: 0}}

	st := SimState{Turn: 0, Time: 0}
	times := Simulate(stack, st, 3*day, 100)
	assert.LessOrEqual(t, len(times), 3)
	for _, tm := range times {
		assert.LessOrEqual(t, tm, int64(3*day))
	}
}

func TestSimulateFallsThroughExpiredItems(t *testing.T) {
	stack := []*types.ScheduleItem{
		{Type: types.ScheduleDaily, Interval: 1, Daytime: 0, Condition: types.EndTurn, ConditionTurn: 1},
		{Type: types.ScheduleDaily, Interval: 5, Daytime: 0},
	}

	times := Simulate(stack, SimState{Turn: 3, Time: 10 * day, PreviousTime: 10 * day, MasterHasRun: true}, 0, 2)
	require.Len(t, times, 2)
	assert.Equal(t, int64(5*day), times[1]-times[0])
}
