package game

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// maxFailures marks a game broken after this many consecutive failed
// engine runs
const maxFailures = 3

// RunMaster executes the master tool to initialize the universe. The
// scheduler calls it holding the game's host lock; the result is
// applied to a fresh snapshot, so metadata written while the engine ran
// survives.
func (s *Service) RunMaster(ctx context.Context, gameID int) error {
	game, err := s.Get(gameID)
	if err != nil {
		return err
	}
	exe, err := s.toolExe(store.CatalogMaster, game.Master)
	if err != nil {
		return s.recordFailure(gameID, err)
	}
	res, err := s.runner.Run(ctx, exe, []string{strconv.Itoa(gameID)}, s.osPath(game.Dir))
	if err != nil {
		return s.recordFailure(gameID, err)
	}
	if res.ExitCode != 0 {
		return s.recordFailure(gameID,
			fmt.Errorf("master exited with %d: %s", res.ExitCode, res.Output))
	}

	if _, err := s.applyUpdate(gameID, func(game *types.Game) error {
		game.MasterHasRun = true
		game.Timestamp = s.newTimestamp()
		game.Failures = 0
		return nil
	}); err != nil {
		return err
	}
	glog := log.WithGameID(gameID)
	glog.Info().Msg("master run complete")
	s.notify(gameID)
	return nil
}

// RunHost executes the host tool to compute one turn, then credits
// players, archives turn files, kicks chronic no-shows and checks the
// victory condition. Like RunMaster it expects the caller to hold the
// host lock and folds its results into a fresh snapshot.
func (s *Service) RunHost(ctx context.Context, gameID int) error {
	game, err := s.Get(gameID)
	if err != nil {
		return err
	}
	exe, err := s.toolExe(store.CatalogHost, game.Host)
	if err != nil {
		return s.recordFailure(gameID, err)
	}
	res, err := s.runner.Run(ctx, exe, []string{strconv.Itoa(gameID)}, s.osPath(game.Dir))
	if err != nil {
		return s.recordFailure(gameID, err)
	}
	if res.ExitCode != 0 {
		return s.recordFailure(gameID,
			fmt.Errorf("host exited with %d: %s", res.ExitCode, res.Output))
	}

	game, err = s.applyUpdate(gameID, func(game *types.Game) error {
		s.creditTurn(game)
		s.archiveTurns(game)
		s.kickMissing(game)
		game.Turn++
		game.Timestamp = s.newTimestamp()
		game.LastHostTime = s.clock.Now()
		game.Failures = 0
		return nil
	})
	if err != nil {
		return err
	}
	glog := log.WithGameID(gameID)
	glog.Info().Int("turn", game.Turn).Msg("host run complete")

	s.mailResults(game)

	if s.VictoryDue(game) {
		if err := s.EvaluateVictory(game); err != nil {
			return err
		}
		if err := s.finishGame(game); err != nil {
			return err
		}
	}
	s.notify(gameID)
	return nil
}

// finishGame marks the game finished without touching the arbiter; the
// caller already holds the game and a fresh snapshot
func (s *Service) finishGame(game *types.Game) error {
	game.State = types.GameStateFinished
	if err := s.store.UpdateGame(game); err != nil {
		return err
	}
	return s.stateChanged(game.ID, game.State)
}

// creditTurn updates per-slot and per-user turn statistics before the
// slot states reset for the next turn
func (s *Service) creditTurn(game *types.Game) {
	for _, slot := range game.Slots {
		if slot == nil || !slot.Occupied() {
			continue
		}
		current := slot.Chain[len(slot.Chain)-1]
		st := slot.TurnState()
		submitted := st == types.TurnGreen || st == types.TurnYellow || st == types.TurnNeedless
		if submitted {
			slot.MissedTurns = 0
			if slot.TurnsByUser == nil {
				slot.TurnsByUser = make(map[string]int)
			}
			slot.TurnsByUser[current]++
		} else {
			slot.MissedTurns++
		}
		if user, err := s.store.GetUser(current); err == nil {
			if submitted {
				user.TurnsPlayed++
			} else {
				user.TurnsMissed++
			}
			user.Reliability = reliability(user)
			if err := s.store.UpdateUser(user); err != nil {
				s.log.Error().Err(err).Str("user", current).Msg("turn credit failed")
			}
		}
		slot.State = types.TurnMissing
	}
}

// reliability is per-mille turns played of turns seen
func reliability(user *types.User) int {
	seen := user.TurnsPlayed + user.TurnsMissed
	if seen == 0 {
		return 1000
	}
	return user.TurnsPlayed * 1000 / seen
}

// archiveTurns moves the inbox into a per-turn backup directory, or
// clears it when backups are disabled
func (s *Service) archiveTurns(game *types.Game) {
	in := game.Dir + "/in"
	entries, err := s.files.List(in)
	if err != nil {
		return
	}
	backupDir := fmt.Sprintf("%s/backup/turn-%03d", game.Dir, game.Turn)
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		src := path.Join(in, e.Name)
		if s.opts.Backups == "keep" {
			data, err := s.files.Get(src)
			if err != nil {
				continue
			}
			if err := s.files.Put(path.Join(backupDir, e.Name), data); err != nil {
				s.log.Error().Err(err).Str("file", e.Name).Msg("turn backup failed")
				continue
			}
		}
		if err := s.files.Remove(src); err != nil {
			s.log.Error().Err(err).Str("file", e.Name).Msg("inbox cleanup failed")
		}
	}
}

// kickMissing resigns slots whose players missed too many turns in a
// row
func (s *Service) kickMissing(game *types.Game) {
	if s.opts.KickAfterMissed <= 0 {
		return
	}
	for _, slot := range game.Slots {
		if slot == nil || !slot.Occupied() || slot.MissedTurns < s.opts.KickAfterMissed {
			continue
		}
		receivers := append([]string(nil), slot.Chain...)
		slot.Chain = nil
		slot.MissedTurns = 0
		s.log.Info().
			Int("game_id", game.ID).
			Int("slot", slot.Number).
			Msg("slot resigned after missed turns")
		if err := s.mail.Queue("kick-missed", map[string]string{
			"game": game.Name,
			"slot": strconv.Itoa(slot.Number),
		}, receivers); err != nil {
			s.log.Error().Err(err).Msg("kick mail failed")
		}
	}
}

// mailResults notifies subscribed players that a new result is out
func (s *Service) mailResults(game *types.Game) {
	var receivers []string
	for _, slot := range game.Slots {
		if slot == nil || !slot.Occupied() {
			continue
		}
		current := slot.Chain[len(slot.Chain)-1]
		user, err := s.store.GetUser(current)
		if err != nil {
			continue
		}
		if sub, ok := user.Subscriptions[game.ID]; !ok || sub {
			receivers = append(receivers, current)
		}
	}
	if len(receivers) == 0 {
		return
	}
	if err := s.mail.Queue("turn-ready", map[string]string{
		"game": game.Name,
		"turn": strconv.Itoa(game.Turn),
	}, receivers); err != nil {
		s.log.Error().Err(err).Int("game_id", game.ID).Msg("result mail failed")
	}
}

func (s *Service) recordFailure(gameID int, cause error) error {
	game, err := s.applyUpdate(gameID, func(game *types.Game) error {
		game.Failures++
		if game.Failures >= maxFailures {
			game.Broken = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if game.Broken {
		s.log.Error().
			Int("game_id", gameID).
			Int("failures", game.Failures).
			Msg("game marked broken")
	}
	s.notify(gameID)
	return cause
}

// toolExe resolves a catalog tool to the OS path of its executable
func (s *Service) toolExe(catalog, id string) (string, error) {
	if id == "" {
		return "", protocol.ErrWrongState("no %s tool attached", catalog)
	}
	tool, err := s.tools.Get(catalog, id)
	if err != nil {
		return "", err
	}
	if tool.Path == "" || tool.Exe == "" {
		return "", protocol.ErrWrongState("%s tool %s has no executable", catalog, id)
	}
	return s.osPath(path.Join(tool.Path, tool.Exe)), nil
}

func (s *Service) osPath(rel string) string {
	return filepath.Join(s.opts.WorkDir, filepath.FromSlash(rel))
}

// newTimestamp produces the 18-character engine timestamp for the
// current scaled time
func (s *Service) newTimestamp() string {
	return s.clock.Wall(s.clock.Now()).UTC().Format("01-02-200615:04:05")
}

// ListGameIDs returns the ids of all games that can be scheduled
func (s *Service) ListGameIDs() ([]int, error) {
	games, err := s.store.ListGames()
	if err != nil {
		return nil, err
	}
	byState := make(map[types.GameState]int)
	var ids []int
	for _, g := range games {
		byState[g.State]++
		if g.State == types.GameStateDeleted || g.Broken {
			continue
		}
		ids = append(ids, g.ID)
	}
	for state, n := range byState {
		metrics.GamesTotal.WithLabelValues(string(state)).Set(float64(n))
	}
	return ids, nil
}

// NextEvent computes a game's next scheduler event, popping schedule
// items whose end condition has expired
func (s *Service) NextEvent(gameID int, now int64) (types.Event, bool, error) {
	none := types.Event{GameID: gameID, Action: types.ActionNone}
	game, err := s.store.GetGame(gameID)
	if err != nil {
		return none, false, err
	}
	if game.Broken || game.State != types.GameStateRunning {
		return none, false, nil
	}
	for {
		action, t, res := schedule.NextEvent(schedule.InputForGame(game, now))
		switch res {
		case schedule.ResultEvent:
			return types.Event{GameID: gameID, Action: action, Time: t}, true, nil
		case schedule.ResultExpired:
			game.Schedule = game.Schedule[1:]
			if err := s.store.UpdateGame(game); err != nil {
				return none, false, err
			}
		default:
			return none, false, nil
		}
	}
}

// Unbreak clears the broken flag; reports whether it was set
func (s *Service) Unbreak(gameID int) (bool, error) {
	was := false
	if err := s.Update(gameID, func(game *types.Game) error {
		was = game.Broken
		game.Broken = false
		game.Failures = 0
		return nil
	}); err != nil {
		return false, err
	}
	if was {
		s.log.Info().Int("game_id", gameID).Msg("broken flag cleared")
	}
	return was, nil
}
