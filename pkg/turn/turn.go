package turn

import (
	"context"
	"encoding/binary"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// Turn file layout: slot number as uint16 LE at offset 0, the engine
// timestamp as 18 bytes at offset 6. Anything shorter than the header
// plus trailer is rejected outright.
const (
	minTurnSize     = 28
	timestampOffset = 6
	timestampLen    = 18
)

// CheckerName is the turn checker binary, looked up under BinDir
const CheckerName = "checkturn"

// Options are the service-level settings of the turn domain
type Options struct {
	WorkDir string
	BinDir  string

	// UsersSeeTemporaryTurns exposes the temporary flag to other
	// players
	UsersSeeTemporaryTurns bool
}

// Service implements turn submission and the temporary-turn flag
type Service struct {
	store  store.Store
	games  *game.Service
	files  *files.Service // host-side files
	runner game.EngineRunner
	arb    *arbiter.Arbiter
	opts   Options
	log    zerolog.Logger

	notifier schedule.Notifier
}

// New creates the turn service
func New(st store.Store, games *game.Service, hostFiles *files.Service,
	run game.EngineRunner, arb *arbiter.Arbiter, opts Options) *Service {
	return &Service{
		store:  st,
		games:  games,
		files:  hostFiles,
		runner: run,
		arb:    arb,
		opts:   opts,
		log:    log.WithComponent("turn"),
	}
}

// SetNotifier attaches the scheduler
func (s *Service) SetNotifier(n schedule.Notifier) {
	s.notifier = n
}

// SubmitRequest is one turn submission. Zero GameID/Slot mean "not
// given"; an empty User is the admin session.
type SubmitRequest struct {
	Blob   []byte
	GameID int
	Slot   int
	Mail   string
	Info   string
	User   string
}

// SubmitResult mirrors the wire response of a submission. State and
// Previous are numeric turn states.
type SubmitResult struct {
	State     int
	Output    string
	GameID    int
	Slot      int
	Previous  int
	User      string
	Turn      int
	Name      string
	AllowTemp bool
}

// Submit runs the submission pipeline: parse the blob header, find the
// game by timestamp, authorize the submitter, run the external checker
// and persist the resulting turn state. Submissions wait on the game
// arbiter, so they never interleave with a host run.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	var res SubmitResult

	if len(req.Blob) < minTurnSize {
		return res, protocol.ErrBadRequest("turn file too short (%d bytes)", len(req.Blob))
	}
	slotNumber := int(binary.LittleEndian.Uint16(req.Blob[0:2]))
	if slotNumber < 1 || slotNumber > types.MaxSlots {
		return res, protocol.ErrBadRequest("bad slot number %d in turn file", slotNumber)
	}
	if req.Slot != 0 && req.Slot != slotNumber {
		return res, protocol.ErrBadRequest("turn file is for slot %d, not %d", slotNumber, req.Slot)
	}
	timestamp := string(req.Blob[timestampOffset : timestampOffset+timestampLen])

	var g *types.Game
	var err error
	if req.GameID != 0 {
		// Explicit game id: the checker classifies staleness
		g, err = s.games.Get(req.GameID)
		if err != nil {
			return res, err
		}
	} else {
		g, err = s.store.GetGameByTimestamp(timestamp)
		if err != nil {
			res.State = types.TurnStale
			res.Slot = slotNumber
			return res, nil
		}
	}
	res.GameID = g.ID
	res.Name = g.Name
	res.Slot = slotNumber
	res.Turn = g.Turn + 1

	slot := g.Slots[slotNumber-1]
	userID, err := s.identify(req, slot)
	if err != nil {
		return res, err
	}
	res.User = userID
	res.AllowTemp = req.User == "" || userID == slot.Primary()

	handle, err := s.arb.Acquire(ctx, g.ID, arbiter.Simple)
	if err != nil {
		return res, err
	}
	defer handle.Release()

	// The game may have hosted while we waited
	g, err = s.games.Get(g.ID)
	if err != nil {
		return res, err
	}
	slot = g.Slots[slotNumber-1]
	res.Turn = g.Turn + 1

	final := path.Join(g.Dir, "in", fmt.Sprintf("player%d.trn", slotNumber))
	staging := final + ".new"
	if err := s.files.Put(staging, req.Blob); err != nil {
		return res, err
	}

	checker := filepath.Join(s.opts.BinDir, CheckerName)
	out, err := s.runner.Run(ctx,
		checker,
		[]string{s.osPath(staging), strconv.Itoa(g.ID), strconv.Itoa(slotNumber)},
		s.osPath(g.Dir))
	if err != nil {
		_ = s.files.Remove(staging)
		return res, err
	}

	newState := exitState(out.ExitCode)
	prev := slot.TurnState()
	res.Previous = prev
	res.State = newState
	res.Output = out.Output

	// A bad or stale submission never clobbers a good turn file
	keepOld := (newState == types.TurnBad || newState == types.TurnStale) &&
		(prev == types.TurnGreen || prev == types.TurnYellow)
	if keepOld {
		_ = s.files.Remove(staging)
	} else {
		if err := s.files.Put(final, req.Blob); err != nil {
			return res, err
		}
		_ = s.files.Remove(staging)
	}

	if newState != prev {
		slot.State = newState
		if err := s.store.UpdateGame(g); err != nil {
			return res, err
		}
		if s.notifier != nil {
			s.notifier.HandleGameChange(g.ID)
		}
	}
	metrics.TurnSubmissionsTotal.WithLabelValues(stateName(newState)).Inc()
	ulog := log.WithUser(userID)
	ulog.Info().
		Int("game_id", g.ID).
		Int("slot", slotNumber).
		Str("status", stateName(newState)).
		Msg("turn submitted")
	return res, nil
}

// identify resolves the submitting user per the session rules
func (s *Service) identify(req SubmitRequest, slot *types.Slot) (string, error) {
	if req.User == "" {
		if req.Mail == "" {
			return "", nil
		}
		user, err := s.store.GetUserByEmail(req.Mail)
		if err != nil {
			return "", protocol.ErrMailMismatch("no player with address %s", req.Mail)
		}
		return user.ID, nil
	}
	for _, u := range slot.Chain {
		if u == req.User {
			return req.User, nil
		}
	}
	return "", protocol.ErrForbidden("user %s does not play slot %d", req.User, slot.Number)
}

// SetTemporary toggles the temporary flag of a submitted turn. Only the
// admin or the slot's primary player may do this.
func (s *Service) SetTemporary(gameID, slotNumber int, flag bool, caller string) error {
	if err := s.games.Update(gameID, func(g *types.Game) error {
		if slotNumber < 1 || slotNumber > len(g.Slots) {
			return protocol.ErrBadRequest("bad slot number %d", slotNumber)
		}
		slot := g.Slots[slotNumber-1]
		if caller != "" && caller != slot.Primary() {
			return protocol.ErrForbidden("only the primary player may mark turns temporary")
		}
		if slot.TurnState() == types.TurnMissing {
			return protocol.ErrWrongState("slot %d has no turn", slotNumber)
		}
		if flag {
			slot.State |= types.TurnTemporary
		} else {
			slot.State &^= types.TurnTemporary
		}
		return nil
	}); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.HandleGameChange(gameID)
	}
	return nil
}

// TemporaryVisible reports whether the temporary flag may be shown to
// the given session
func (s *Service) TemporaryVisible(viewer string) bool {
	return viewer == "" || s.opts.UsersSeeTemporaryTurns
}

func (s *Service) osPath(rel string) string {
	return filepath.Join(s.opts.WorkDir, filepath.FromSlash(rel))
}

// exitState maps the checker's exit code to a turn state
func exitState(code int) int {
	switch code {
	case 0:
		return types.TurnGreen
	case 1:
		return types.TurnYellow
	case 2:
		return types.TurnRed
	case 3:
		return types.TurnBad
	case 4:
		return types.TurnStale
	case 5:
		return types.TurnNeedless
	}
	return types.TurnBad
}

func stateName(state int) string {
	switch state {
	case types.TurnMissing:
		return "missing"
	case types.TurnGreen:
		return "green"
	case types.TurnYellow:
		return "yellow"
	case types.TurnRed:
		return "red"
	case types.TurnBad:
		return "bad"
	case types.TurnStale:
		return "stale"
	case types.TurnNeedless:
		return "needless"
	}
	return "unknown"
}

// StateName is the wire name of a turn state
func StateName(state int) string {
	return stateName(state &^ types.TurnTemporary)
}
