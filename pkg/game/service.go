package game

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/runner"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/tools"
	"github.com/starhost/starhost/pkg/types"
)

// EngineRunner executes external engine binaries. Satisfied by
// runner.Runner; tests substitute a fake.
type EngineRunner interface {
	Run(ctx context.Context, name string, args []string, dir string) (runner.Result, error)
}

// Options are the service-level settings of the game domain
type Options struct {
	// WorkDir is the OS root under which host files live; game and
	// tool paths are relative to it
	WorkDir string

	// KickAfterMissed resigns a slot after this many consecutive
	// missed turns; 0 disables auto-kick
	KickAfterMissed int

	// Backups is "keep" (archive turn files after each host run) or
	// "unpack" (discard them)
	Backups string
}

// Service implements the game domain: lifecycle, configuration,
// permissions, victory evaluation and engine runs. It doubles as the
// scheduler's event source and runner.
type Service struct {
	store  store.Store
	files  *files.Service
	tools  *tools.Registry
	runner EngineRunner
	arb    *arbiter.Arbiter
	clock  clock.Clock
	mail   collab.MailQueue
	forum  collab.Forum
	router collab.Router
	opts   Options
	log    zerolog.Logger

	notifier schedule.Notifier
}

// New creates the game service. The notifier is attached later via
// SetNotifier because the scheduler needs the service first.
func New(st store.Store, hostFiles *files.Service, reg *tools.Registry,
	run EngineRunner, arb *arbiter.Arbiter, clk clock.Clock,
	mail collab.MailQueue, forum collab.Forum, router collab.Router,
	opts Options) *Service {
	return &Service{
		store:  st,
		files:  hostFiles,
		tools:  reg,
		runner: run,
		arb:    arb,
		clock:  clk,
		mail:   mail,
		forum:  forum,
		router: router,
		opts:   opts,
		log:    log.WithComponent("game"),
	}
}

// SetNotifier attaches the scheduler
func (s *Service) SetNotifier(n schedule.Notifier) {
	s.notifier = n
}

func (s *Service) notify(gameID int) {
	if s.notifier != nil {
		s.notifier.HandleGameChange(gameID)
	}
}

// Create allocates a new game with default tools attached
func (s *Service) Create() (int, error) {
	id, err := s.store.AllocGameID()
	if err != nil {
		return 0, err
	}
	game := &types.Game{
		ID:        id,
		Name:      "New Game",
		State:     types.GameStatePreparing,
		Type:      types.GameTypePrivate,
		Dir:       fmt.Sprintf("games/%04d", id),
		Config:    make(map[string]string),
		Slots:     emptySlots(),
		CreatedAt: time.Now(),
	}
	for _, catalog := range store.Catalogs {
		def, err := s.tools.Default(catalog)
		if err != nil {
			return 0, err
		}
		if def == "" {
			continue
		}
		switch catalog {
		case store.CatalogHost:
			game.Host = def
		case store.CatalogMaster:
			game.Master = def
		case store.CatalogShiplist:
			game.Shiplist = def
		case store.CatalogTool:
			game.ExtraTools = append(game.ExtraTools, def)
		}
	}
	if err := s.files.MkdirAll(game.Dir + "/in"); err != nil {
		return 0, err
	}
	if err := s.files.MkdirAll(game.Dir + "/out"); err != nil {
		return 0, err
	}
	if err := s.store.CreateGame(game); err != nil {
		return 0, err
	}
	if err := s.forum.CreateGroup(id, game.Name); err != nil {
		return 0, err
	}
	s.log.Info().Int("game_id", id).Msg("game created")
	s.notify(id)
	return id, nil
}

// Clone copies a game's metadata and schedule into a new game. The
// source must not be mid-host. Slots and turn progress start fresh.
func (s *Service) Clone(srcID int, state types.GameState) (int, error) {
	if s.arb.IsHostLocked(srcID) {
		return 0, protocol.ErrWrongState("game %d is being hosted", srcID)
	}
	src, err := s.store.GetGame(srcID)
	if err != nil {
		return 0, protocol.ErrNotFound("game not found: %d", srcID)
	}
	if state == "" {
		state = types.GameStateJoining
	}
	if !validState(state) {
		return 0, protocol.ErrBadRequest("bad game state %q", state)
	}
	id, err := s.store.AllocGameID()
	if err != nil {
		return 0, err
	}
	game := &types.Game{
		ID:         id,
		Name:       incrementName(src.Name),
		State:      state,
		Type:       src.Type,
		Owner:      src.Owner,
		Dir:        fmt.Sprintf("games/%04d", id),
		Difficulty: src.Difficulty,
		CopyOf:     srcID,
		Host:       src.Host,
		Master:     src.Master,
		Shiplist:   src.Shiplist,
		ExtraTools: append([]string(nil), src.ExtraTools...),
		Config:     make(map[string]string),
		Slots:      emptySlots(),
		CreatedAt:  time.Now(),
	}
	for k, v := range src.Config {
		game.Config[k] = v
	}
	for _, item := range src.Schedule {
		game.Schedule = append(game.Schedule, item.Clone())
	}
	if err := s.files.MkdirAll(game.Dir + "/in"); err != nil {
		return 0, err
	}
	if err := s.files.MkdirAll(game.Dir + "/out"); err != nil {
		return 0, err
	}
	if err := s.store.CreateGame(game); err != nil {
		return 0, err
	}
	if err := s.forum.CreateGroup(id, game.Name); err != nil {
		return 0, err
	}
	s.log.Info().Int("game_id", id).Int("copy_of", srcID).Msg("game cloned")
	s.notify(id)
	return id, nil
}

// Get returns one game
func (s *Service) Get(gameID int) (*types.Game, error) {
	game, err := s.store.GetGame(gameID)
	if err != nil {
		return nil, protocol.ErrNotFound("game not found: %d", gameID)
	}
	return game, nil
}

// Update runs a serialized read-modify-write of one game. It holds the
// game's arbiter in simple mode, so the mutation waits out any engine
// run instead of interleaving with it, then applies fn to a fresh
// snapshot and writes it back. An error from fn aborts the write.
func (s *Service) Update(gameID int, fn func(game *types.Game) error) error {
	handle, err := s.arb.Acquire(context.Background(), gameID, arbiter.Simple)
	if err != nil {
		return err
	}
	defer handle.Release()
	_, err = s.applyUpdate(gameID, fn)
	return err
}

// applyUpdate is Update without the arbiter, for callers that already
// hold the game. Returns the written snapshot.
func (s *Service) applyUpdate(gameID int, fn func(game *types.Game) error) (*types.Game, error) {
	game, err := s.Get(gameID)
	if err != nil {
		return nil, err
	}
	if err := fn(game); err != nil {
		return nil, err
	}
	if err := s.store.UpdateGame(game); err != nil {
		return nil, err
	}
	return game, nil
}

// Filter restricts List. Nil/empty fields are "no restriction".
type Filter struct {
	State    types.GameState
	Type     types.GameType
	User     string // games this user plays
	Host     string
	Master   string
	Shiplist string
	Tool     string
}

// List returns the ids of matching games visible to the viewer. An
// empty viewer is the admin and sees everything.
func (s *Service) List(f Filter, viewer string) ([]int, error) {
	games, err := s.store.ListGames()
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, g := range games {
		if g.State == types.GameStateDeleted && f.State != types.GameStateDeleted {
			continue
		}
		if !matches(g, f) {
			continue
		}
		if viewer != "" && !readAllowed(g, viewer, s.Permissions(g, viewer)) {
			continue
		}
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func matches(g *types.Game, f Filter) bool {
	if f.State != "" && g.State != f.State {
		return false
	}
	if f.Type != "" && g.Type != f.Type {
		return false
	}
	if f.User != "" && !playsIn(g, f.User) {
		return false
	}
	if f.Host != "" && g.Host != f.Host {
		return false
	}
	if f.Master != "" && g.Master != f.Master {
		return false
	}
	if f.Shiplist != "" && g.Shiplist != f.Shiplist {
		return false
	}
	if f.Tool != "" {
		found := false
		for _, t := range g.ExtraTools {
			if t == f.Tool {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func playsIn(g *types.Game, userID string) bool {
	for _, slot := range g.Slots {
		if slot == nil {
			continue
		}
		for _, u := range slot.Chain {
			if u == userID {
				return true
			}
		}
	}
	return false
}

// SetState changes the lifecycle state, mirroring it into the forum and
// closing stale web sessions
func (s *Service) SetState(gameID int, state types.GameState) error {
	if !validState(state) {
		return protocol.ErrBadRequest("bad game state %q", state)
	}
	changed := false
	if err := s.Update(gameID, func(game *types.Game) error {
		changed = game.State != state
		game.State = state
		return nil
	}); err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.stateChanged(gameID, state)
}

// stateChanged propagates a committed state transition to the
// collaborators
func (s *Service) stateChanged(gameID int, state types.GameState) error {
	if err := s.forum.SyncState(gameID, state); err != nil {
		return err
	}
	if err := s.router.CloseSessions(gameID); err != nil {
		return err
	}
	s.log.Info().Int("game_id", gameID).Str("state", string(state)).Msg("game state changed")
	s.notify(gameID)
	return nil
}

// SetType changes the visibility type
func (s *Service) SetType(gameID int, typ types.GameType) error {
	switch typ {
	case types.GameTypePublic, types.GameTypeUnlisted, types.GameTypePrivate:
	default:
		return protocol.ErrBadRequest("bad game type %q", typ)
	}
	if err := s.Update(gameID, func(game *types.Game) error {
		game.Type = typ
		return nil
	}); err != nil {
		return err
	}
	return s.router.CloseSessions(gameID)
}

// SetName renames the game
func (s *Service) SetName(gameID int, name string) error {
	if name == "" {
		return protocol.ErrBadRequest("empty game name")
	}
	return s.Update(gameID, func(game *types.Game) error {
		game.Name = name
		return nil
	})
}

// SetOwner transfers ownership; an empty owner makes the game unowned
func (s *Service) SetOwner(gameID int, owner string) error {
	if owner != "" {
		if _, err := s.store.GetUser(owner); err != nil {
			return protocol.ErrNotFound("user not found: %s", owner)
		}
	}
	if err := s.Update(gameID, func(game *types.Game) error {
		game.Owner = owner
		return nil
	}); err != nil {
		return err
	}
	return s.router.CloseSessions(gameID)
}

func validState(state types.GameState) bool {
	switch state {
	case types.GameStatePreparing, types.GameStateJoining,
		types.GameStateRunning, types.GameStateFinished, types.GameStateDeleted:
		return true
	}
	return false
}

func emptySlots() []*types.Slot {
	slots := make([]*types.Slot, types.MaxSlots)
	for i := range slots {
		slots[i] = &types.Slot{Number: i + 1}
	}
	return slots
}

// incrementName derives a clone's name: a trailing integer is bumped,
// otherwise " 1" is appended
func incrementName(name string) string {
	if i := strings.LastIndexByte(name, ' '); i > 0 {
		if n, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i+1] + strconv.Itoa(n+1)
		}
	}
	return name + " 1"
}
