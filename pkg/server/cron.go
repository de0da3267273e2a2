package server

import (
	"strings"

	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/types"
)

// handleCron covers the CRON* verbs. With the scheduler disabled the
// query verbs answer empty and the mutation verbs are refused.
func handleCron(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	switch verb {
	case "CRONGET":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		ev := types.Event{GameID: gid, Action: types.ActionNone}
		if d.svc.Cron != nil {
			ev = d.svc.Cron.GetGameEvent(gid)
		}
		return eventValue(ev), true, nil

	case "CRONLIST":
		// [LIMIT n]
		limit := 0
		if len(args) >= 2 && strings.EqualFold(args[0], "LIMIT") {
			n, err := argInt(args, 1)
			if err != nil {
				return protocol.Null(), true, err
			}
			limit = n
		}
		var events []types.Event
		if d.svc.Cron != nil {
			events = d.svc.Cron.ListGameEvents()
		}
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}
		vs := make([]protocol.Value, len(events))
		for i, ev := range events {
			vs[i] = eventValue(ev)
		}
		return protocol.NewArray(vs...), true, nil

	case "CRONKICK":
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if d.svc.Cron == nil {
			return protocol.Null(), true, protocol.ErrWrongState("scheduler is disabled")
		}
		was, err := d.svc.Cron.Kick(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		return boolValue(was), true, nil

	case "CRONSUSPEND":
		// <minutes> relative to now
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		n, err := argInt64(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if d.svc.Cron == nil {
			return protocol.Null(), true, protocol.ErrWrongState("scheduler is disabled")
		}
		d.svc.Cron.Suspend(d.svc.Clock.Now() + n)
		return protocol.OK(), true, nil
	}
	return protocol.Null(), false, nil
}

func eventValue(ev types.Event) protocol.Value {
	return protocol.NewMap(
		protocol.MapEntry{Key: "game", Value: protocol.NewInt(int64(ev.GameID))},
		protocol.MapEntry{Key: "action", Value: protocol.NewString(string(ev.Action))},
		protocol.MapEntry{Key: "time", Value: protocol.NewInt(ev.Time)},
	)
}
