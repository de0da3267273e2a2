package server

import (
	"strings"

	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/types"
)

// handlePlayer covers the PLAYER* verbs
func handlePlayer(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	players := d.svc.Players
	switch verb {
	case "PLAYERJOIN":
		// <gid> <slot> <uid>
		gid, slot, err := gidSlot(args)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, players.Join(gid, slot, args[2], sess.User)

	case "PLAYERSUBST":
		gid, slot, err := gidSlot(args)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, players.Substitute(gid, slot, args[2], sess.User)

	case "PLAYERRESIGN":
		gid, slot, err := gidSlot(args)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, players.Resign(gid, slot, args[2], sess.User)

	case "PLAYERADD":
		// <gid> <uid>
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, players.Add(gid, args[1])

	case "PLAYERLS":
		// <gid> [ALL]
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := d.svc.Games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		all := len(args) > 1 && strings.EqualFold(args[1], "ALL")
		slots, err := players.List(gid, all)
		if err != nil {
			return protocol.Null(), true, err
		}
		// Flat array of (slot number, info map) pairs
		var vs []protocol.Value
		for _, slot := range slots {
			vs = append(vs, protocol.NewInt(int64(slot.Number)), d.slotValue(slot, sess))
		}
		return protocol.NewArray(vs...), true, nil

	case "PLAYERSETDIR":
		// <gid> <uid> <dir>
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := requireSelf(sess, args[1]); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, players.SetDir(gid, args[1], args[2])

	case "PLAYERGETDIR":
		// <gid> <uid>
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := requireSelf(sess, args[1]); err != nil {
			return protocol.Null(), true, err
		}
		dir, err := players.GetDir(gid, args[1])
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewString(dir), true, nil

	case "PLAYERCHECKFILE":
		// <gid> <uid> <name> [<dir>]
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := requireSelf(sess, args[1]); err != nil {
			return protocol.Null(), true, err
		}
		dir := ""
		if len(args) > 3 {
			dir = args[3]
		}
		outcome, err := players.CheckFile(gid, args[1], args[2], dir)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewString(outcome), true, nil
	}
	return protocol.Null(), false, nil
}

func gidSlot(args []string) (int, int, error) {
	if err := needArgs(args, 2); err != nil {
		return 0, 0, err
	}
	gid, err := argInt(args, 0)
	if err != nil {
		return 0, 0, err
	}
	slot, err := argInt(args, 1)
	if err != nil {
		return 0, 0, err
	}
	return gid, slot, nil
}

// requireSelf admits the admin and the named user themselves
func requireSelf(sess *Session, uid string) error {
	if sess.IsAdmin() || sess.User == uid {
		return nil
	}
	return protocol.ErrForbidden("cannot act for user %s", uid)
}

func (d *Dispatcher) slotValue(slot *types.Slot, sess *Session) protocol.Value {
	state := d.visibleState(slot, sess)
	return protocol.NewMap(
		protocol.MapEntry{Key: "users", Value: protocol.NewStringArray(slot.Chain...)},
		protocol.MapEntry{Key: "primary", Value: protocol.NewString(slot.Primary())},
		protocol.MapEntry{Key: "state", Value: protocol.NewInt(int64(state))},
		protocol.MapEntry{Key: "missed", Value: protocol.NewInt(int64(slot.MissedTurns))},
		protocol.MapEntry{Key: "rank", Value: protocol.NewInt(int64(slot.Rank))},
		protocol.MapEntry{Key: "points", Value: protocol.NewInt(int64(slot.RankPoints))},
	)
}

// visibleState masks the temporary flag from users who may not see it.
// A slot's own players always see their flag.
func (d *Dispatcher) visibleState(slot *types.Slot, sess *Session) int {
	if d.svc.Turns.TemporaryVisible(sess.User) {
		return slot.State
	}
	for _, u := range slot.Chain {
		if u == sess.User {
			return slot.State
		}
	}
	return slot.TurnState()
}
