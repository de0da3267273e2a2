package game

import (
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/types"
)

// Permissions computes the user's permission bits for a game. Inactive
// means the user played the slot in the past (turn credits) but is no
// longer on any chain.
func (s *Service) Permissions(game *types.Game, userID string) types.Permission {
	var p types.Permission
	if game.Type == types.GameTypePublic {
		p |= types.GameIsPublic
	}
	if userID == "" {
		return p
	}
	if game.Owner == userID {
		p |= types.UserIsOwner
	}
	active := false
	past := false
	for _, slot := range game.Slots {
		if slot == nil {
			continue
		}
		for _, u := range slot.Chain {
			if u == userID {
				active = true
				if u == slot.Primary() {
					p |= types.UserIsPrimary
				}
			}
		}
		if _, ok := slot.TurnsByUser[userID]; ok {
			past = true
		}
	}
	if active {
		p |= types.UserIsActive
	} else if past {
		p |= types.UserIsInactive
	}
	return p
}

// CheckPermission fails with a uniform permission error unless the user
// holds at least one of the requested bits. The empty user is the admin
// and always passes.
func (s *Service) CheckPermission(gameID int, userID string, level types.Permission) error {
	if userID == "" {
		return nil
	}
	game, err := s.Get(gameID)
	if err != nil {
		return err
	}
	if s.Permissions(game, userID)&level == 0 {
		return protocol.ErrForbidden("permission denied for game %d", gameID)
	}
	return nil
}

// CheckRead fails unless the user may read the game
func (s *Service) CheckRead(gameID int, userID string) error {
	if userID == "" {
		return nil
	}
	game, err := s.Get(gameID)
	if err != nil {
		return err
	}
	if !readAllowed(game, userID, s.Permissions(game, userID)) {
		return protocol.ErrForbidden("permission denied for game %d", gameID)
	}
	return nil
}

// readAllowed: public games, joinable unlisted games, explicitly
// allowed users, and games where the user is owner or active
func readAllowed(game *types.Game, userID string, p types.Permission) bool {
	if p.Has(types.GameIsPublic) {
		return true
	}
	if game.Type == types.GameTypeUnlisted && game.State == types.GameStateJoining {
		return true
	}
	for _, u := range game.AllowedUsers {
		if u == userID {
			return true
		}
	}
	return p&(types.UserIsOwner|types.UserIsActive) != 0
}
