package game

import (
	"context"
	"testing"
	"time"

	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningGame(t *testing.T, fx *fixture) int {
	t.Helper()
	id, err := fx.svc.Create()
	require.NoError(t, err)
	game, _ := fx.svc.Get(id)
	game.State = types.GameStateRunning
	require.NoError(t, fx.store.UpdateGame(game))
	return id
}

func TestRunMaster(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)

	require.NoError(t, fx.svc.RunMaster(context.Background(), id))

	game, _ := fx.svc.Get(id)
	assert.True(t, game.MasterHasRun)
	assert.Len(t, game.Timestamp, 18)
	require.Len(t, fx.engine.calls, 1)
	assert.Contains(t, fx.engine.calls[0], "pmaster")
}

func TestRunHost(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "alice"}))
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "bob"}))

	game, _ := fx.svc.Get(id)
	game.MasterHasRun = true
	game.Slots[0].Chain = []string{"alice"}
	game.Slots[0].State = types.TurnGreen
	game.Slots[1].Chain = []string{"bob"}
	game.Slots[1].State = types.TurnMissing
	require.NoError(t, fx.store.UpdateGame(game))
	require.NoError(t, fx.files.Put("games/0001/in/player1.trn", []byte("turn")))

	require.NoError(t, fx.svc.RunHost(context.Background(), id))

	game, _ = fx.svc.Get(id)
	assert.Equal(t, 1, game.Turn)
	assert.Equal(t, fx.clock.Now(), game.LastHostTime)
	assert.Len(t, game.Timestamp, 18)

	// Turn credits and state reset
	assert.Equal(t, 1, game.Slots[0].TurnsByUser["alice"])
	assert.Equal(t, types.TurnMissing, game.Slots[0].State)
	assert.Equal(t, 1, game.Slots[1].MissedTurns)

	alice, _ := fx.store.GetUser("alice")
	assert.Equal(t, 1, alice.TurnsPlayed)
	assert.Equal(t, 1000, alice.Reliability)
	bob, _ := fx.store.GetUser("bob")
	assert.Equal(t, 1, bob.TurnsMissed)
	assert.Equal(t, 0, bob.Reliability)

	// Inbox archived
	assert.False(t, fx.files.Exists("games/0001/in/player1.trn"))
	assert.True(t, fx.files.Exists("games/0001/backup/turn-000/player1.trn"))
}

func TestRunHostKickAfterMissed(t *testing.T) {
	fx := newFixture(t)
	fx.svc.opts.KickAfterMissed = 2
	id := runningGame(t, fx)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "ghost"}))

	game, _ := fx.svc.Get(id)
	game.MasterHasRun = true
	game.Slots[0].Chain = []string{"ghost"}
	game.Slots[0].MissedTurns = 1
	require.NoError(t, fx.store.UpdateGame(game))

	require.NoError(t, fx.svc.RunHost(context.Background(), id))

	game, _ = fx.svc.Get(id)
	assert.False(t, game.Slots[0].Occupied(), "slot resigned after second miss")
}

func TestRunHostVictoryFinishesGame(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "alice"}))

	game, _ := fx.svc.Get(id)
	game.MasterHasRun = true
	game.Turn = 79
	game.Slots[0].Chain = []string{"alice"}
	game.Config["endCondition"] = "turn"
	game.Config["endTurn"] = "80"
	require.NoError(t, fx.store.UpdateGame(game))

	require.NoError(t, fx.svc.RunHost(context.Background(), id))

	game, _ = fx.svc.Get(id)
	assert.Equal(t, types.GameStateFinished, game.State)
	assert.NotZero(t, game.Slots[0].RankPoints)
}

func TestRunHostPreservesConcurrentEdits(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "alice"}))
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "bob"}))

	game, _ := fx.svc.Get(id)
	game.MasterHasRun = true
	game.Slots[0].Chain = []string{"alice"}
	game.Slots[0].State = types.TurnGreen
	game.Slots[1].Chain = []string{"bob"}
	game.Slots[1].State = types.TurnGreen
	require.NoError(t, fx.store.UpdateGame(game))

	fx.engine.gate = make(chan struct{})
	fx.engine.running = make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- fx.svc.RunHost(context.Background(), id) }()
	<-fx.engine.running

	// Metadata written while the engine runs must survive the result
	// write-back
	require.NoError(t, fx.svc.SetName(id, "Renamed"))
	game, _ = fx.svc.Get(id)
	game.Slots[1].Chain = nil
	require.NoError(t, fx.store.UpdateGame(game))

	close(fx.engine.gate)
	require.NoError(t, <-errCh)

	game, _ = fx.svc.Get(id)
	assert.Equal(t, "Renamed", game.Name)
	assert.False(t, game.Slots[1].Occupied(), "mid-run resignation lost")
	assert.Equal(t, 1, game.Turn)
	assert.Equal(t, 1, game.Slots[0].TurnsByUser["alice"])
}

func TestUpdateWaitsForHostLock(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)

	h, err := fx.arb.Acquire(context.Background(), id, arbiter.Host)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- fx.svc.SetName(id, "Later") }()

	select {
	case <-done:
		t.Fatal("rename went through while the game was host-locked")
	case <-time.After(20 * time.Millisecond):
	}

	h.Release()
	require.NoError(t, <-done)
	game, _ := fx.svc.Get(id)
	assert.Equal(t, "Later", game.Name)
}

func TestFailuresMarkGameBroken(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)
	fx.engine.exit = 1

	for i := 0; i < maxFailures; i++ {
		require.Error(t, fx.svc.RunHost(context.Background(), id))
	}
	game, _ := fx.svc.Get(id)
	assert.True(t, game.Broken)

	// Broken games are excluded from scheduling
	_, ok, err := fx.svc.NextEvent(id, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unbreak clears the flag once
	was, err := fx.svc.Unbreak(id)
	require.NoError(t, err)
	assert.True(t, was)
	was, err = fx.svc.Unbreak(id)
	require.NoError(t, err)
	assert.False(t, was)

	game, _ = fx.svc.Get(id)
	assert.Equal(t, 0, game.Failures)
}

func TestNextEventPopsExpiredItems(t *testing.T) {
	fx := newFixture(t)
	id := runningGame(t, fx)

	game, _ := fx.svc.Get(id)
	game.MasterHasRun = true
	game.Turn = 5
	game.LastHostTime = 100 * 1440
	game.Schedule = []*types.ScheduleItem{
		{Type: types.ScheduleDaily, Interval: 1, Daytime: 0,
			Condition: types.EndTurn, ConditionTurn: 5},
		{Type: types.ScheduleDaily, Interval: 4, Daytime: 0},
	}
	require.NoError(t, fx.store.UpdateGame(game))

	ev, ok, err := fx.svc.NextEvent(id, 100*1440)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ActionHost, ev.Action)
	assert.Equal(t, int64(104*1440), ev.Time)

	// The expired top item was removed persistently
	game, _ = fx.svc.Get(id)
	require.Len(t, game.Schedule, 1)
	assert.Equal(t, 4, game.Schedule[0].Interval)
}

func TestNextEventGatesOnState(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create() // preparing

	_, ok, err := fx.svc.NextEvent(id, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListGameIDsSkipsDeletedAndBroken(t *testing.T) {
	fx := newFixture(t)
	a := runningGame(t, fx)
	b := runningGame(t, fx)
	c := runningGame(t, fx)

	game, _ := fx.svc.Get(b)
	game.Broken = true
	require.NoError(t, fx.store.UpdateGame(game))
	require.NoError(t, fx.svc.SetState(c, types.GameStateDeleted))

	ids, err := fx.svc.ListGameIDs()
	require.NoError(t, err)
	assert.Equal(t, []int{a}, ids)
}
