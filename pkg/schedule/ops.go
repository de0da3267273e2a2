package schedule

import (
	"context"

	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// Service defaults for new schedule items
const (
	DefaultHostDelay = 30
	DefaultHostEarly = true
)

// Notifier receives change notifications for rescheduling
type Notifier interface {
	HandleGameChange(gameID int)
}

// Spec is a partial schedule item: nil fields are "not given" and default
// to the current top item's value or the service defaults.
type Spec struct {
	Type          *types.ScheduleType
	Interval      *int
	WeekDays      *uint8
	Daytime       *int
	HostDelay     *int
	HostEarly     *bool
	Condition     *types.EndCondition
	ConditionTurn *int
	ConditionTime *int64
}

// Ops implements the per-game schedule operations
type Ops struct {
	store    store.Store
	arb      *arbiter.Arbiter
	random   *clock.Random
	notifier Notifier
}

// NewOps creates the schedule operations service
func NewOps(st store.Store, arb *arbiter.Arbiter, random *clock.Random, notifier Notifier) *Ops {
	return &Ops{store: st, arb: arb, random: random, notifier: notifier}
}

// mutate runs a stack mutation holding the game's arbiter in simple
// mode, so it cannot race an engine run's write-back
func (o *Ops) mutate(gameID int, fn func(game *types.Game) error) error {
	handle, err := o.arb.Acquire(context.Background(), gameID, arbiter.Simple)
	if err != nil {
		return err
	}
	defer handle.Release()

	game, err := o.store.GetGame(gameID)
	if err != nil {
		return protocol.ErrNotFound("game not found: %d", gameID)
	}
	if err := fn(game); err != nil {
		return err
	}
	return o.save(game)
}

// Add pushes a new item onto the game's schedule stack
func (o *Ops) Add(gameID int, spec Spec) error {
	return o.mutate(gameID, func(game *types.Game) error {
		item, err := o.build(game, spec)
		if err != nil {
			return err
		}
		game.Schedule = append([]*types.ScheduleItem{item}, game.Schedule...)
		return nil
	})
}

// Replace discards the stack and pushes a single new item
func (o *Ops) Replace(gameID int, spec Spec) error {
	return o.mutate(gameID, func(game *types.Game) error {
		item, err := o.build(game, spec)
		if err != nil {
			return err
		}
		game.Schedule = []*types.ScheduleItem{item}
		return nil
	})
}

// Modify overlays the populated fields of spec onto the top item
func (o *Ops) Modify(gameID int, spec Spec) error {
	return o.mutate(gameID, func(game *types.Game) error {
		if len(game.Schedule) == 0 {
			return protocol.ErrWrongState("game %d has no schedule", gameID)
		}
		overlay(game.Schedule[0], spec)
		return nil
	})
}

// Drop pops the top item. Idempotent on an empty stack.
func (o *Ops) Drop(gameID int) error {
	return o.mutate(gameID, func(game *types.Game) error {
		if len(game.Schedule) > 0 {
			game.Schedule = game.Schedule[1:]
		}
		return nil
	})
}

// GetAll returns the stack, top item first
func (o *Ops) GetAll(gameID int) ([]*types.ScheduleItem, error) {
	game, err := o.store.GetGame(gameID)
	if err != nil {
		return nil, protocol.ErrNotFound("game not found: %d", gameID)
	}
	items := make([]*types.ScheduleItem, len(game.Schedule))
	for i, s := range game.Schedule {
		items[i] = s.Clone()
	}
	return items, nil
}

// Preview simulates the schedule forward from the game's current state.
// It produces absolute times for up to turnLimit turns, plus a leading
// master time if the master has not run. An unlimited preview
// (turnLimit <= 0) is refused and returns no times.
func (o *Ops) Preview(gameID int, now, timeLimit int64, turnLimit int) ([]int64, error) {
	game, err := o.store.GetGame(gameID)
	if err != nil {
		return nil, protocol.ErrNotFound("game not found: %d", gameID)
	}
	if turnLimit <= 0 {
		return nil, nil
	}
	maxEvents := turnLimit
	if !game.MasterHasRun {
		maxEvents++
	}
	return Simulate(game.Schedule, SimState{
		Turn:         game.Turn,
		Time:         now,
		PreviousTime: game.LastHostTime,
		MasterHasRun: game.MasterHasRun,
	}, timeLimit, maxEvents), nil
}

func (o *Ops) save(game *types.Game) error {
	if err := o.store.UpdateGame(game); err != nil {
		return err
	}
	if o.notifier != nil {
		o.notifier.HandleGameChange(game.ID)
	}
	return nil
}

// build creates a complete item from a partial spec, defaulting omitted
// fields from the current top item or the service defaults
func (o *Ops) build(game *types.Game, spec Spec) (*types.ScheduleItem, error) {
	var item *types.ScheduleItem
	if len(game.Schedule) > 0 {
		item = game.Schedule[0].Clone()
	} else {
		item = &types.ScheduleItem{
			Type:      types.ScheduleManual,
			HostDelay: DefaultHostDelay,
			HostEarly: DefaultHostEarly,
			Daytime:   -1, // auto-assign below
			Condition: types.EndNone,
		}
	}
	overlay(item, spec)
	if item.Daytime < 0 {
		dt, err := o.pickDaytime(game.ID)
		if err != nil {
			return nil, err
		}
		item.Daytime = dt
	}
	switch item.Type {
	case types.ScheduleStop, types.ScheduleWeekly, types.ScheduleDaily,
		types.ScheduleASAP, types.ScheduleManual:
	default:
		return nil, protocol.ErrBadRequest("bad schedule type %q", item.Type)
	}
	if item.Type == types.ScheduleDaily && item.Interval <= 0 {
		return nil, protocol.ErrBadRequest("daily schedule needs an interval")
	}
	if item.Type == types.ScheduleWeekly && item.WeekDays == 0 {
		return nil, protocol.ErrBadRequest("weekly schedule needs weekdays")
	}
	return item, nil
}

func overlay(item *types.ScheduleItem, spec Spec) {
	if spec.Type != nil {
		item.Type = *spec.Type
	}
	if spec.Interval != nil {
		item.Interval = *spec.Interval
	}
	if spec.WeekDays != nil {
		item.WeekDays = *spec.WeekDays
	}
	if spec.Daytime != nil {
		item.Daytime = *spec.Daytime
	}
	if spec.HostDelay != nil {
		item.HostDelay = *spec.HostDelay
	}
	if spec.HostEarly != nil {
		item.HostEarly = *spec.HostEarly
	}
	if spec.Condition != nil {
		item.Condition = *spec.Condition
	}
	if spec.ConditionTurn != nil {
		item.ConditionTurn = *spec.ConditionTurn
	}
	if spec.ConditionTime != nil {
		item.ConditionTime = *spec.ConditionTime
	}
}

// pickDaytime selects a daytime minimizing collisions with other games'
// current daytimes. Candidates are hourly marks; ties break randomly.
func (o *Ops) pickDaytime(gameID int) (int, error) {
	games, err := o.store.ListGames()
	if err != nil {
		return 0, err
	}
	const slots = 24
	used := make([]int, slots)
	for _, g := range games {
		if g.ID == gameID || len(g.Schedule) == 0 || g.State == types.GameStateDeleted {
			continue
		}
		dt := g.Schedule[0].Daytime
		if dt >= 0 {
			used[(dt/60)%slots]++
		}
	}
	min := used[0]
	for _, n := range used {
		if n < min {
			min = n
		}
	}
	var tied []int
	for h, n := range used {
		if n == min {
			tied = append(tied, h*60)
		}
	}
	if o.random == nil || len(tied) == 1 {
		return tied[0], nil
	}
	return o.random.Pick(tied), nil
}

// InputForGame assembles the engine input from a game's persistent state
func InputForGame(game *types.Game, now int64) Input {
	var item *types.ScheduleItem
	if len(game.Schedule) > 0 {
		item = game.Schedule[0]
	}
	return Input{
		Item:         item,
		Turn:         game.Turn,
		Now:          now,
		PreviousTime: game.LastHostTime,
		MasterHasRun: game.MasterHasRun,
		AllTurnsIn:   AllTurnsIn(game),
	}
}

// AllTurnsIn reports whether every occupied, non-temporary slot has
// submitted a green or yellow turn
func AllTurnsIn(game *types.Game) bool {
	any := false
	for _, s := range game.Slots {
		if s == nil || !s.Occupied() || s.Temporary() {
			continue
		}
		any = true
		st := s.TurnState()
		if st != types.TurnGreen && st != types.TurnYellow && st != types.TurnNeedless {
			return false
		}
	}
	return any
}
