package game

import (
	"sort"
	"strconv"

	"github.com/starhost/starhost/pkg/types"
)

// Rank point scoring constants
const (
	// BasePoints is the pool awarded to the first rank; rank n
	// receives BasePoints/n
	BasePoints = 2000

	// DefaultScheduledTurns is assumed when no end-turn is configured
	DefaultScheduledTurns = 60
)

// VictoryCondition is the end-condition view of a game's config
type VictoryCondition struct {
	Condition   string
	Turn        int
	Score       int
	Probability int
}

// GetVictoryCondition extracts the configured end condition
func (s *Service) GetVictoryCondition(gameID int) (VictoryCondition, error) {
	game, err := s.Get(gameID)
	if err != nil {
		return VictoryCondition{}, err
	}
	return victoryCondition(game), nil
}

func victoryCondition(game *types.Game) VictoryCondition {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(game.Config[key])
		return n
	}
	return VictoryCondition{
		Condition:   game.Config["endCondition"],
		Turn:        atoi("endTurn"),
		Score:       atoi("endScore"),
		Probability: atoi("endProbability"),
	}
}

// VictoryDue reports whether the game's end condition is met: all
// occupied slots carry a precomputed rank, or the configured condition
// holds
func (s *Service) VictoryDue(game *types.Game) bool {
	if ranksPreset(game) {
		return true
	}
	vc := victoryCondition(game)
	switch vc.Condition {
	case "turn":
		return vc.Turn > 0 && game.Turn >= vc.Turn
	case "score":
		if vc.Score <= 0 {
			return false
		}
		for _, slot := range game.Slots {
			if slot != nil && slot.Occupied() && slotScore(slot) >= vc.Score {
				return true
			}
		}
	}
	return false
}

func ranksPreset(game *types.Game) bool {
	any := false
	for _, slot := range game.Slots {
		if slot == nil || !slot.Occupied() {
			continue
		}
		any = true
		if slot.Rank == 0 {
			return false
		}
	}
	return any
}

func slotScore(slot *types.Slot) int {
	n, _ := strconv.Atoi(slot.Settings["score"])
	return n
}

// EvaluateVictory assigns ranks and rank points to the occupied slots
// and credits each participant's profile. Ranks are taken as-is when
// precomputed, otherwise assigned by descending score with ties sharing
// a rank. The per-slot points are scaled by turn progress and the
// game's difficulty; each user's share is additionally scaled by their
// reliability.
func (s *Service) EvaluateVictory(game *types.Game) error {
	var occupied []*types.Slot
	for _, slot := range game.Slots {
		if slot != nil && slot.Occupied() {
			occupied = append(occupied, slot)
		}
	}
	if len(occupied) == 0 {
		return nil
	}

	if !ranksPreset(game) {
		assignRanksByScore(occupied)
	}

	vc := victoryCondition(game)
	scheduled := vc.Turn
	if scheduled <= 0 {
		scheduled = DefaultScheduledTurns
	}
	played := game.Turn - 1
	if played < 0 {
		played = 0
	}
	if played > scheduled {
		played = scheduled
	}
	difficulty := game.Difficulty
	if difficulty <= 0 {
		difficulty = 100
	}

	for _, slot := range occupied {
		pts := BasePoints / slot.Rank
		pts -= pts * (scheduled - played) / scheduled
		pts = pts * difficulty / 100
		slot.RankPoints = pts
		if err := s.creditSlot(slot, pts); err != nil {
			return err
		}
	}
	return s.store.UpdateGame(game)
}

// assignRanksByScore gives rank 1 to the highest score; ties share the
// rank, and the next distinct score continues at the following position
func assignRanksByScore(slots []*types.Slot) {
	sorted := append([]*types.Slot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return slotScore(sorted[i]) > slotScore(sorted[j])
	})
	rank := 0
	prevScore := 0
	for i, slot := range sorted {
		if i == 0 || slotScore(slot) != prevScore {
			rank = i + 1
		}
		slot.Rank = rank
		prevScore = slotScore(slot)
	}
}

// creditSlot splits a slot's points among its participants in
// proportion to the turns each played, then applies their reliability
func (s *Service) creditSlot(slot *types.Slot, pts int) error {
	total := 0
	for _, n := range slot.TurnsByUser {
		total += n
	}
	shares := make(map[string]int)
	if total == 0 {
		shares[slot.Primary()] = pts
	} else {
		for user, n := range slot.TurnsByUser {
			shares[user] = pts * n / total
		}
	}
	for userID, share := range shares {
		user, err := s.store.GetUser(userID)
		if err != nil {
			continue
		}
		reliability := user.Reliability
		if reliability <= 0 {
			reliability = 1000
		}
		user.RankPoints += share * reliability / 1000
		if user.RankPoints > 0 && slot.Rank > 0 && (user.Rank == 0 || slot.Rank < user.Rank) {
			user.Rank = slot.Rank
		}
		if err := s.store.UpdateUser(user); err != nil {
			return err
		}
	}
	return nil
}
