package server

import (
	"strings"

	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// handleCatalog serves the four parallel tool catalogs through one
// prefix scheme: HOSTADD, MASTERADD, SHIPLISTADD and TOOLADD all land
// here, parameterized by catalog.
func handleCatalog(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	var catalog, op string
	for _, c := range store.Catalogs {
		prefix := strings.ToUpper(c)
		if strings.HasPrefix(verb, prefix) {
			catalog, op = c, verb[len(prefix):]
			break
		}
	}
	if catalog == "" {
		return protocol.Null(), false, nil
	}

	reg := d.svc.Tools
	switch op {
	case "ADD":
		// <id> <path> <exe> <kind>
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 4); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.Add(catalog, args[0], args[1], args[2], args[3])

	case "RM":
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.Remove(catalog, args[0])

	case "LS":
		list, err := reg.List(catalog)
		if err != nil {
			return protocol.Null(), true, err
		}
		ids := make([]string, len(list))
		for i, t := range list {
			ids[i] = t.ID
		}
		return protocol.NewStringArray(ids...), true, nil

	case "GET":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		tool, err := reg.Get(catalog, args[0])
		if err != nil {
			return protocol.Null(), true, err
		}
		def, _ := reg.Default(catalog)
		return toolValue(tool, def), true, nil

	case "SET":
		// <id> <description...>
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.SetDescription(catalog, args[0], strings.Join(args[1:], " "))

	case "DEFAULT":
		if len(args) == 0 {
			def, err := reg.Default(catalog)
			return protocol.NewString(def), true, err
		}
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.SetDefault(catalog, args[0])

	case "RATING":
		return handleRating(d, sess, catalog, args)

	case "CP":
		if err := sess.RequireAdmin(); err != nil {
			return protocol.Null(), true, err
		}
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.Copy(catalog, args[0], args[1])
	}
	return protocol.Null(), false, nil
}

// handleRating: RATING <id> reads, RATING <id> <n>|AUTO|CLEAR writes
func handleRating(d *Dispatcher, sess *Session, catalog string, args []string) (protocol.Value, bool, error) {
	if err := needArgs(args, 1); err != nil {
		return protocol.Null(), true, err
	}
	reg := d.svc.Tools
	if len(args) == 1 {
		tool, err := reg.Get(catalog, args[0])
		if err != nil {
			return protocol.Null(), true, err
		}
		if !tool.DifficultySet {
			return protocol.Null(), true, nil
		}
		return protocol.NewInt(int64(tool.Difficulty)), true, nil
	}
	if err := sess.RequireAdmin(); err != nil {
		return protocol.Null(), true, err
	}
	switch strings.ToUpper(args[1]) {
	case "AUTO":
		diff, err := reg.ComputeDifficulty(catalog, args[0])
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.NewInt(int64(diff)), true, nil
	case "CLEAR":
		return protocol.OK(), true, reg.ClearDifficulty(catalog, args[0])
	default:
		n, err := argInt(args, 1)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, reg.SetDifficulty(catalog, args[0], n)
	}
}

func toolValue(tool *types.Tool, defaultID string) protocol.Value {
	isDefault := int64(0)
	if tool.ID == defaultID {
		isDefault = 1
	}
	entries := []protocol.MapEntry{
		{Key: "id", Value: protocol.NewString(tool.ID)},
		{Key: "kind", Value: protocol.NewString(tool.Kind)},
		{Key: "path", Value: protocol.NewString(tool.Path)},
		{Key: "exe", Value: protocol.NewString(tool.Exe)},
		{Key: "description", Value: protocol.NewString(tool.Description)},
		{Key: "default", Value: protocol.NewInt(isDefault)},
	}
	if tool.DifficultySet {
		entries = append(entries, protocol.MapEntry{
			Key: "difficulty", Value: protocol.NewInt(int64(tool.Difficulty)),
		})
	}
	return protocol.NewMap(entries...)
}
