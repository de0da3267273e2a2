package server

import (
	"context"
	"strings"

	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/turn"
)

// handleTurn covers TRN and TRNMARKTEMP
func handleTurn(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	switch verb {
	case "TRN":
		// <blob> [GAME gid] [SLOT n] [MAIL addr] [INFO s]
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		req := turn.SubmitRequest{
			Blob: []byte(args[0]),
			User: sess.User,
		}
		opts := args[1:]
		for i := 0; i < len(opts); i += 2 {
			if i+1 >= len(opts) {
				return protocol.Null(), true, protocol.ErrBadRequest("option %s without value", opts[i])
			}
			switch strings.ToUpper(opts[i]) {
			case "GAME":
				gid, err := argInt(opts, i+1)
				if err != nil {
					return protocol.Null(), true, err
				}
				req.GameID = gid
			case "SLOT":
				n, err := argInt(opts, i+1)
				if err != nil {
					return protocol.Null(), true, err
				}
				req.Slot = n
			case "MAIL":
				if !sess.IsAdmin() {
					return protocol.Null(), true, protocol.ErrForbidden("MAIL is admin only")
				}
				req.Mail = opts[i+1]
			case "INFO":
				req.Info = opts[i+1]
			default:
				return protocol.Null(), true, protocol.ErrBadRequest("bad option %q", opts[i])
			}
		}
		res, err := d.svc.Turns.Submit(context.Background(), req)
		if err != nil {
			return protocol.Null(), true, err
		}
		return submitValue(res), true, nil

	case "TRNMARKTEMP":
		// <gid> <slot> <0/1>
		if err := needArgs(args, 3); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		slot, err := argInt(args, 1)
		if err != nil {
			return protocol.Null(), true, err
		}
		flag, err := argBool(args, 2)
		if err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, d.svc.Turns.SetTemporary(gid, slot, flag, sess.User)
	}
	return protocol.Null(), false, nil
}

// submitValue builds the wire map shared by TRN and turn-classified PUT
func submitValue(res turn.SubmitResult) protocol.Value {
	return protocol.NewMap(
		protocol.MapEntry{Key: "status", Value: protocol.NewInt(int64(res.State))},
		protocol.MapEntry{Key: "output", Value: protocol.NewString(res.Output)},
		protocol.MapEntry{Key: "game", Value: protocol.NewInt(int64(res.GameID))},
		protocol.MapEntry{Key: "slot", Value: protocol.NewInt(int64(res.Slot))},
		protocol.MapEntry{Key: "previous", Value: protocol.NewInt(int64(res.Previous))},
		protocol.MapEntry{Key: "user", Value: protocol.NewString(res.User)},
		protocol.MapEntry{Key: "turn", Value: protocol.NewInt(int64(res.Turn))},
		protocol.MapEntry{Key: "name", Value: protocol.NewString(res.Name)},
		protocol.MapEntry{Key: "allowtemp", Value: boolValue(res.AllowTemp)},
	)
}
