package server

import (
	"github.com/starhost/starhost/pkg/protocol"
)

// handleSystem covers PING, HELP and USER
func handleSystem(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	switch verb {
	case "PING":
		return protocol.NewString("PONG"), true, nil

	case "HELP":
		topic := ""
		if len(args) > 0 {
			topic = args[0]
		}
		return protocol.NewString(helpPage(topic)), true, nil

	case "USER":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		if args[0] != "" {
			if _, err := d.svc.Store.GetUser(args[0]); err != nil {
				return protocol.Null(), true, protocol.ErrNotFound("user not found: %s", args[0])
			}
		}
		sess.User = args[0]
		return protocol.OK(), true, nil
	}
	return protocol.Null(), false, nil
}
