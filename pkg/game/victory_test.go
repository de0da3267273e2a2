package game

import (
	"strconv"
	"testing"

	"github.com/starhost/starhost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Default 60-turn game, no scores: all slots tie at rank 1 and get
// 2000 scaled by 59/60 turn progress.
func TestRankPointsDefaultGame(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)
	for i, slot := range game.Slots {
		user := userName(i)
		require.NoError(t, fx.store.CreateUser(&types.User{ID: user}))
		slot.Chain = []string{user}
	}
	game.Turn = 60
	require.NoError(t, fx.store.UpdateGame(game))

	require.NoError(t, fx.svc.EvaluateVictory(game))

	for _, slot := range game.Slots {
		assert.Equal(t, 1, slot.Rank)
		assert.Equal(t, 1967, slot.RankPoints, "slot %d", slot.Number)
	}
	u, err := fx.store.GetUser("player0")
	require.NoError(t, err)
	assert.Equal(t, 1967, u.RankPoints)
}

func userName(i int) string {
	return "player" + strconv.Itoa(i)
}

func TestRanksByScore(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)

	scores := map[int]string{0: "500", 1: "300", 2: "500", 3: "100"}
	for i, score := range scores {
		user := "u" + string(rune('a'+i))
		require.NoError(t, fx.store.CreateUser(&types.User{ID: user}))
		game.Slots[i].Chain = []string{user}
		game.Slots[i].Settings = map[string]string{"score": score}
	}
	game.Turn = 60
	require.NoError(t, fx.store.UpdateGame(game))
	require.NoError(t, fx.svc.EvaluateVictory(game))

	// Two slots tie at rank 1; the next distinct score ranks 3rd
	assert.Equal(t, 1, game.Slots[0].Rank)
	assert.Equal(t, 1, game.Slots[2].Rank)
	assert.Equal(t, 3, game.Slots[1].Rank)
	assert.Equal(t, 4, game.Slots[3].Rank)
	assert.Greater(t, game.Slots[0].RankPoints, game.Slots[1].RankPoints)
	assert.Greater(t, game.Slots[1].RankPoints, game.Slots[3].RankPoints)
}

func TestPresetRanksKept(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "winner"}))
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "loser"}))
	game.Slots[0].Chain = []string{"winner"}
	game.Slots[0].Rank = 1
	game.Slots[1].Chain = []string{"loser"}
	game.Slots[1].Rank = 2
	game.Turn = 60
	require.NoError(t, fx.store.UpdateGame(game))

	assert.True(t, fx.svc.VictoryDue(game), "preset ranks end the game")
	require.NoError(t, fx.svc.EvaluateVictory(game))
	assert.Equal(t, 1967, game.Slots[0].RankPoints)
	assert.Equal(t, 984, game.Slots[1].RankPoints)
}

func TestReplacementSplit(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "first"}))
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "second"}))
	game.Slots[0].Chain = []string{"first", "second"}
	game.Slots[0].TurnsByUser = map[string]int{"first": 45, "second": 15}
	game.Turn = 60
	require.NoError(t, fx.store.UpdateGame(game))
	require.NoError(t, fx.svc.EvaluateVictory(game))

	first, _ := fx.store.GetUser("first")
	second, _ := fx.store.GetUser("second")
	assert.Equal(t, 1967*45/60, first.RankPoints)
	assert.Equal(t, 1967*15/60, second.RankPoints)
}

func TestReliabilityScalesUserShare(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "flaky", Reliability: 500}))
	game.Slots[0].Chain = []string{"flaky"}
	game.Turn = 60
	require.NoError(t, fx.store.UpdateGame(game))
	require.NoError(t, fx.svc.EvaluateVictory(game))

	// Slot points are unscaled; the user's credited share is halved
	assert.Equal(t, 1967, game.Slots[0].RankPoints)
	u, _ := fx.store.GetUser("flaky")
	assert.Equal(t, 1967/2, u.RankPoints)
}

func TestVictoryDueConditions(t *testing.T) {
	fx := newFixture(t)
	id, _ := fx.svc.Create()
	game, _ := fx.svc.Get(id)
	game.Slots[0].Chain = []string{"someone"}

	assert.False(t, fx.svc.VictoryDue(game))

	game.Config["endCondition"] = "turn"
	game.Config["endTurn"] = "80"
	game.Turn = 79
	assert.False(t, fx.svc.VictoryDue(game))
	game.Turn = 80
	assert.True(t, fx.svc.VictoryDue(game))

	game.Config["endCondition"] = "score"
	game.Config["endScore"] = "5000"
	game.Turn = 10
	game.Slots[0].Settings = map[string]string{"score": "4999"}
	assert.False(t, fx.svc.VictoryDue(game))
	game.Slots[0].Settings["score"] = "5000"
	assert.True(t, fx.svc.VictoryDue(game))
}
