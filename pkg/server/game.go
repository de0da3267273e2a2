package server

import (
	"sort"
	"strings"

	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/types"
)

// handleGame covers the NEWGAME/CLONEGAME/GAME* verbs
func handleGame(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	games := d.svc.Games
	switch verb {
	case "NEWGAME":
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		id, err := games.Create()
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewInt(int64(id)), true, nil

	case "CLONEGAME":
		// <gid> [state]
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
		state := types.GameState("")
		if len(args) > 1 {
			state = types.GameState(strings.ToLower(args[1]))
		}
		id, err := games.Clone(gid, state)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewInt(int64(id)), true, nil

	case "GAMELIST":
		f, err := parseGameFilter(args)
		if err != nil {
			return protocol.Null(), true, err
		}
		ids, err := games.List(f, sess.User)
		if err != nil {
			return protocol.Null(), true, err
		}
		vs := make([]protocol.Value, len(ids))
		for i, id := range ids {
			vs[i] = protocol.NewInt(int64(id))
		}
		return protocol.NewArray(vs...), true, nil

	case "GAMESTAT":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		g, err := games.Get(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		return d.gameStat(g, sess), true, nil

	case "GAMESETSTATE":
		return gameMutation(sess, games, args, func(gid int) error {
			return games.SetState(gid, types.GameState(strings.ToLower(args[1])))
		})

	case "GAMESETTYPE":
		return gameMutation(sess, games, args, func(gid int) error {
			return games.SetType(gid, types.GameType(strings.ToLower(args[1])))
		})

	case "GAMESETNAME":
		return gameMutation(sess, games, args, func(gid int) error {
			return games.SetName(gid, strings.Join(args[1:], " "))
		})

	case "GAMESETOWNER":
		return gameMutation(sess, games, args, func(gid int) error {
			return games.SetOwner(gid, args[1])
		})

	case "GAMEGET":
		// <gid> <key>
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		cfg, err := games.GetConfig(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		v, ok := cfg[args[1]]
		if !ok {
			return protocol.Null(), true, nil
		}
		return protocol.NewString(v), true, nil

	case "GAMESET":
		// <gid> <key> <value> [<key> <value>...]
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := checkOwner(sess, games, gid); err != nil {
			return protocol.Null(), true, err
		}
		rest := args[1:]
		if len(rest)%2 != 0 {
			return protocol.Null(), true, protocol.ErrBadRequest("key without value")
		}
		kvs := make([]game.KV, 0, len(rest)/2)
		for i := 0; i < len(rest); i += 2 {
			kvs = append(kvs, game.KV{Key: rest[i], Value: rest[i+1]})
		}
		return protocol.OK(), true, games.SetConfig(gid, kvs)

	case "GAMEADDTOOL":
		return gameMutation(sess, games, args, func(gid int) error {
			return games.AddTool(gid, args[1])
		})

	case "GAMERMTOOL":
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := checkOwner(sess, games, gid); err != nil {
			return protocol.Null(), true, err
		}
		removed, err := games.RemoveTool(gid, args[1])
		if err != nil {
			return protocol.Null(), true, err
		}
		return boolValue(removed), true, nil

	case "GAMELSTOOLS":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		list, err := games.ListTools(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		def, _ := d.svc.Tools.Default("tool")
		vs := make([]protocol.Value, len(list))
		for i, t := range list {
			vs[i] = toolValue(t, def)
		}
		return protocol.NewArray(vs...), true, nil

	case "GAMEGETVC":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		vc, err := games.GetVictoryCondition(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewMap(
			protocol.MapEntry{Key: "condition", Value: protocol.NewString(vc.Condition)},
			protocol.MapEntry{Key: "turn", Value: protocol.NewInt(int64(vc.Turn))},
			protocol.MapEntry{Key: "score", Value: protocol.NewInt(int64(vc.Score))},
			protocol.MapEntry{Key: "probability", Value: protocol.NewInt(int64(vc.Probability))},
		), true, nil

	case "GAMECHECKVC":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		g, err := games.Get(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		return boolValue(games.VictoryDue(g)), true, nil
	}
	return protocol.Null(), false, nil
}

// gameMutation factors the common <gid> <arg...> owner-checked pattern
func gameMutation(sess *Session, games *game.Service, args []string, op func(gid int) error) (protocol.Value, bool, error) {
	if err := needArgs(args, 2); err != nil {
		return protocol.Null(), true, err
	}
	gid, err := argInt(args, 0)
	if err != nil {
		return protocol.Null(), true, err
	}
	if err := checkOwner(sess, games, gid); err != nil {
		return protocol.Null(), true, err
	}
	return protocol.OK(), true, op(gid)
}

// checkOwner admits the admin and the game owner
func checkOwner(sess *Session, games *game.Service, gid int) error {
	if sess.IsAdmin() {
		return nil
	}
	return games.CheckPermission(gid, sess.User, types.UserIsOwner)
}

func parseGameFilter(args []string) (game.Filter, error) {
	var f game.Filter
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return f, protocol.ErrBadRequest("filter %s without value", args[i])
		}
		value := args[i+1]
		switch strings.ToUpper(args[i]) {
		case "STATE":
			f.State = types.GameState(strings.ToLower(value))
		case "TYPE":
			f.Type = types.GameType(strings.ToLower(value))
		case "USER":
			f.User = value
		case "HOST":
			f.Host = value
		case "MASTER":
			f.Master = value
		case "SHIPLIST":
			f.Shiplist = value
		case "TOOL":
			f.Tool = value
		default:
			return f, protocol.ErrBadRequest("bad filter %q", args[i])
		}
	}
	return f, nil
}

// gameStat builds the GAMESTAT info map
func (d *Dispatcher) gameStat(g *types.Game, sess *Session) protocol.Value {
	var item *types.ScheduleItem
	if len(g.Schedule) > 0 {
		item = g.Schedule[0]
	}
	occupied := 0
	var slots []protocol.Value
	for _, slot := range g.Slots {
		if slot == nil || !slot.Occupied() {
			continue
		}
		occupied++
		state := d.visibleState(slot, sess)
		slots = append(slots, protocol.NewMap(
			protocol.MapEntry{Key: "slot", Value: protocol.NewInt(int64(slot.Number))},
			protocol.MapEntry{Key: "user", Value: protocol.NewString(strings.Join(slot.Chain, ","))},
			protocol.MapEntry{Key: "state", Value: protocol.NewInt(int64(state))},
			protocol.MapEntry{Key: "rank", Value: protocol.NewInt(int64(slot.Rank))},
			protocol.MapEntry{Key: "points", Value: protocol.NewInt(int64(slot.RankPoints))},
		))
	}

	entries := []protocol.MapEntry{
		{Key: "id", Value: protocol.NewInt(int64(g.ID))},
		{Key: "name", Value: protocol.NewString(g.Name)},
		{Key: "state", Value: protocol.NewString(string(g.State))},
		{Key: "type", Value: protocol.NewString(string(g.Type))},
		{Key: "owner", Value: protocol.NewString(g.Owner)},
		{Key: "dir", Value: protocol.NewString(g.Dir)},
		{Key: "turn", Value: protocol.NewInt(int64(g.Turn))},
		{Key: "timestamp", Value: protocol.NewString(g.Timestamp)},
		{Key: "difficulty", Value: protocol.NewInt(int64(g.Difficulty))},
		{Key: "masterhasrun", Value: boolValue(g.MasterHasRun)},
		{Key: "host", Value: protocol.NewString(g.Host)},
		{Key: "master", Value: protocol.NewString(g.Master)},
		{Key: "shiplist", Value: protocol.NewString(g.Shiplist)},
		{Key: "tools", Value: protocol.NewString(strings.Join(sortedCopy(g.ExtraTools), " "))},
		{Key: "schedule", Value: protocol.NewString(schedule.Describe(item))},
		{Key: "slots", Value: protocol.NewInt(int64(occupied))},
		{Key: "players", Value: protocol.NewArray(slots...)},
	}
	if g.CopyOf != 0 {
		entries = append(entries, protocol.MapEntry{
			Key: "copyof", Value: protocol.NewInt(int64(g.CopyOf)),
		})
	}
	if d.svc.Cron != nil {
		ev := d.svc.Cron.GetGameEvent(g.ID)
		entries = append(entries,
			protocol.MapEntry{Key: "nextaction", Value: protocol.NewString(string(ev.Action))},
			protocol.MapEntry{Key: "nexttime", Value: protocol.NewInt(ev.Time)},
		)
	}
	return protocol.NewMap(entries...)
}

func boolValue(b bool) protocol.Value {
	if b {
		return protocol.NewInt(1)
	}
	return protocol.NewInt(0)
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
