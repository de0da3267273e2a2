package player

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// Service implements the player domain: slot membership, managed
// directories and upload checks
type Service struct {
	store store.Store
	games *game.Service
	files *files.Service // user-side files
	mail  collab.MailQueue
	log   zerolog.Logger

	notifier schedule.Notifier
}

// New creates the player service
func New(st store.Store, games *game.Service, userFiles *files.Service, mail collab.MailQueue) *Service {
	return &Service{
		store: st,
		games: games,
		files: userFiles,
		mail:  mail,
		log:   log.WithComponent("player"),
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

func (s *Service) slot(g *types.Game, number int) (*types.Slot, error) {
	if number < 1 || number > len(g.Slots) {
		return nil, protocol.ErrBadRequest("bad slot number %d", number)
	}
	return g.Slots[number-1], nil
}

// Join puts a user onto an empty slot. The caller may be the admin
// (empty caller) or the user themselves; self-join requires a public or
// unlisted game, or an explicit access grant.
func (s *Service) Join(gameID, slotNumber int, userID, caller string) error {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return protocol.ErrNotFound("user not found: %s", userID)
	}
	if !user.AllowJoin {
		return protocol.ErrForbidden("user %s may not join games", userID)
	}

	var joined *types.Game
	if err := s.games.Update(gameID, func(g *types.Game) error {
		if g.State != types.GameStateJoining && g.State != types.GameStateRunning {
			return protocol.ErrWrongState("game %d is not open for joining", gameID)
		}
		slot, err := s.slot(g, slotNumber)
		if err != nil {
			return err
		}
		if slot.Occupied() {
			return protocol.ErrConflict("slot %d is taken", slotNumber)
		}
		if caller != "" {
			if caller != userID {
				return protocol.ErrForbidden("cannot join other users")
			}
			if !joinable(g, userID) {
				return protocol.ErrForbidden("permission denied for game %d", gameID)
			}
			if playsIn(g, userID) {
				return protocol.ErrConflict("user %s already plays in game %d", userID, gameID)
			}
		}
		slot.Chain = []string{userID}
		joined = g
		return nil
	}); err != nil {
		return err
	}
	s.log.Info().Int("game_id", gameID).Int("slot", slotNumber).Str("user", userID).Msg("player joined")
	if full(joined) {
		s.mailFull(joined)
	}
	s.notify(gameID)
	return nil
}

func joinable(g *types.Game, userID string) bool {
	switch g.Type {
	case types.GameTypePublic, types.GameTypeUnlisted:
		return true
	}
	for _, u := range g.AllowedUsers {
		if u == userID {
			return true
		}
	}
	return g.Owner == userID
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

func full(g *types.Game) bool {
	for _, slot := range g.Slots {
		if slot != nil && !slot.Occupied() {
			return false
		}
	}
	return true
}

func (s *Service) mailFull(g *types.Game) {
	receivers := make([]string, 0, types.MaxSlots+1)
	if g.Owner != "" {
		receivers = append(receivers, g.Owner)
	}
	for _, slot := range g.Slots {
		if slot != nil && slot.Occupied() {
			receivers = append(receivers, slot.Primary())
		}
	}
	if err := s.mail.Queue("game-full", map[string]string{
		"game": g.Name,
		"id":   strconv.Itoa(g.ID),
	}, receivers); err != nil {
		s.log.Error().Err(err).Int("game_id", g.ID).Msg("full-game mail failed")
	}
}

// Substitute appends a replacement to a slot's chain. A regular caller
// must be on the chain; the chain is truncated at their position before
// the new user is appended.
func (s *Service) Substitute(gameID, slotNumber int, userID, caller string) error {
	if _, err := s.store.GetUser(userID); err != nil {
		return protocol.ErrNotFound("user not found: %s", userID)
	}
	if err := s.games.Update(gameID, func(g *types.Game) error {
		slot, err := s.slot(g, slotNumber)
		if err != nil {
			return err
		}
		if !slot.Occupied() {
			return protocol.ErrWrongState("slot %d is not in use", slotNumber)
		}
		cut := len(slot.Chain)
		if caller != "" && caller != g.Owner {
			pos := indexOf(slot.Chain, caller)
			if pos < 0 {
				return protocol.ErrForbidden("user %s is not on slot %d", caller, slotNumber)
			}
			cut = pos + 1
		}
		kept := slot.Chain[:cut]
		if indexOf(kept, userID) >= 0 {
			return protocol.ErrConflict("user %s is already on slot %d", userID, slotNumber)
		}
		slot.Chain = append(append([]string(nil), kept...), userID)
		return nil
	}); err != nil {
		return err
	}
	s.log.Info().Int("game_id", gameID).Int("slot", slotNumber).Str("user", userID).Msg("player substituted")
	s.notify(gameID)
	return nil
}

// Resign removes a user and everyone after them from a slot's chain.
// Resigning the primary empties the slot. Regular callers may resign
// themselves or their own replacements.
func (s *Service) Resign(gameID, slotNumber int, userID, caller string) error {
	if err := s.games.Update(gameID, func(g *types.Game) error {
		slot, err := s.slot(g, slotNumber)
		if err != nil {
			return err
		}
		pos := indexOf(slot.Chain, userID)
		if pos < 0 {
			return protocol.ErrWrongState("user %s is not on slot %d", userID, slotNumber)
		}
		if caller != "" && caller != g.Owner {
			callerPos := indexOf(slot.Chain, caller)
			if callerPos < 0 || callerPos > pos {
				return protocol.ErrForbidden("cannot resign user %s", userID)
			}
		}
		slot.Chain = slot.Chain[:pos]
		return nil
	}); err != nil {
		return err
	}
	s.log.Info().Int("game_id", gameID).Int("slot", slotNumber).Str("user", userID).Msg("player resigned")
	s.notify(gameID)
	return nil
}

// Add grants a user read access to a private game without putting them
// on a slot. Admin only; the handler enforces the session.
func (s *Service) Add(gameID int, userID string) error {
	if _, err := s.store.GetUser(userID); err != nil {
		return protocol.ErrNotFound("user not found: %s", userID)
	}
	return s.games.Update(gameID, func(g *types.Game) error {
		for _, u := range g.AllowedUsers {
			if u == userID {
				return nil
			}
		}
		g.AllowedUsers = append(g.AllowedUsers, userID)
		return nil
	})
}

// List returns the game's slots. With all=false only occupied slots are
// returned.
func (s *Service) List(gameID int, all bool) ([]*types.Slot, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	var out []*types.Slot
	for _, slot := range g.Slots {
		if slot == nil {
			continue
		}
		if all || slot.Occupied() {
			out = append(out, slot)
		}
	}
	return out, nil
}

func indexOf(chain []string, userID string) int {
	for i, u := range chain {
		if u == userID {
			return i
		}
	}
	return -1
}

// dirGameProperty is the directory property stamping a managed dir
const dirGameProperty = "game"

// SetDir binds a user-side directory to a game. The directory must
// exist under the user's home and must not be managed by another game.
// The previous directory, if any, loses its stamp.
func (s *Service) SetDir(gameID int, userID, dir string) error {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return protocol.ErrNotFound("user not found: %s", userID)
	}
	if _, err := s.games.Get(gameID); err != nil {
		return err
	}
	if dir != userID && !strings.HasPrefix(dir, userID+"/") {
		return protocol.ErrForbidden("directory %s is not owned by %s", dir, userID)
	}
	if !s.files.Exists(dir) {
		return protocol.ErrNotFound("no such directory: %s", dir)
	}
	current, err := s.files.GetProperty(dir, dirGameProperty)
	if err != nil {
		return err
	}
	if current != "" && current != strconv.Itoa(gameID) {
		return protocol.ErrDirInUse("directory %s is used by game %s", dir, current)
	}
	if err := s.files.SetProperty(dir, dirGameProperty, strconv.Itoa(gameID)); err != nil {
		return err
	}
	if old := user.GameDirs[gameID]; old != "" && old != dir {
		if err := s.files.SetProperty(old, dirGameProperty, ""); err != nil {
			s.log.Warn().Err(err).Str("dir", old).Msg("old directory unstamp failed")
		}
	}
	if user.GameDirs == nil {
		user.GameDirs = make(map[int]string)
	}
	user.GameDirs[gameID] = dir
	return s.store.UpdateUser(user)
}

// GetDir returns the user's managed directory for the game, "" if none
func (s *Service) GetDir(gameID int, userID string) (string, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return "", protocol.ErrNotFound("user not found: %s", userID)
	}
	return user.GameDirs[gameID], nil
}

// CheckFile outcomes
const (
	FileAllow  = "allow"
	FileRefuse = "refuse"
	FileStale  = "stale"
	FileTurn   = "turn"
)

// refusedSuffixes are game-controlled files the service manages itself;
// direct uploads of these are refused
var refusedSuffixes = []string{".rst", ".hst"}

var refusedNames = map[string]bool{
	"race.nm":      true,
	"xyplan.dat":   true,
	"hullspec.dat": true,
	"truehull.dat": true,
}

// CheckFile classifies an upload of name into dir for the given game:
// turn files for a slot the user plays go through the turn pipeline,
// game-controlled files are refused, files aimed at a directory not
// managed for this game are stale, everything else passes
func (s *Service) CheckFile(gameID int, userID, name, dir string) (string, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return "", protocol.ErrNotFound("user not found: %s", userID)
	}
	if dir != "" && dir != user.GameDirs[gameID] {
		return FileStale, nil
	}
	lower := strings.ToLower(name)
	if n, ok := turnFileSlot(lower); ok {
		g, err := s.games.Get(gameID)
		if err != nil {
			return "", err
		}
		slot, err := s.slot(g, n)
		if err == nil && indexOf(slot.Chain, userID) >= 0 {
			return FileTurn, nil
		}
		return FileRefuse, nil
	}
	if refusedNames[lower] {
		return FileRefuse, nil
	}
	for _, suffix := range refusedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return FileRefuse, nil
		}
	}
	return FileAllow, nil
}

// turnFileSlot parses "playerN.trn"
func turnFileSlot(name string) (int, bool) {
	if !strings.HasPrefix(name, "player") || !strings.HasSuffix(name, ".trn") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "player"), ".trn"))
	if err != nil {
		return 0, false
	}
	return n, true
}
