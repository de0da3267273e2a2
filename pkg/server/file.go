package server

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/player"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/turn"
)

// handleFile covers GET, PUT, LS, STAT and PSTAT. Paths starting with
// games/, tools/ or bin/ address the host-side file service; everything
// else lives in user home directories, named by their first segment.
func handleFile(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	switch verb {
	case "GET", "LS", "STAT", "PSTAT":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		name, fs, err := d.resolvePath(sess, args[0], false)
		if err != nil {
			return protocol.Null(), true, err
		}
		switch verb {
		case "GET":
			data, err := fs.Get(name)
			if err != nil {
				return protocol.Null(), true, protocol.ErrNotFound("no such file: %s", args[0])
			}
			return protocol.NewString(string(data)), true, nil
		case "LS":
			infos, err := fs.List(name)
			if err != nil {
				return protocol.Null(), true, protocol.ErrNotFound("no such directory: %s", args[0])
			}
			vs := make([]protocol.Value, len(infos))
			for i, fi := range infos {
				vs[i] = infoValue(fi)
			}
			return protocol.NewArray(vs...), true, nil
		case "STAT":
			fi, err := fs.Stat(name)
			if err != nil {
				return protocol.Null(), true, protocol.ErrNotFound("no such file: %s", args[0])
			}
			return infoValue(fi), true, nil
		default: // PSTAT
			props, err := fs.Properties(name)
			if err != nil {
				return protocol.Null(), true, protocol.ErrNotFound("no such directory: %s", args[0])
			}
			keys := make([]string, 0, len(props))
			for k := range props {
				keys = append(keys, k)
			}
			entries := make([]protocol.MapEntry, len(keys))
			for i, k := range sortedCopy(keys) {
				entries[i] = protocol.MapEntry{Key: k, Value: protocol.NewString(props[k])}
			}
			return protocol.NewMap(entries...), true, nil
		}

	case "PUT":
		// <path> <content>
		if err := needArgs(args, 2); err != nil {
			return protocol.Null(), true, err
		}
		name, fs, err := d.resolvePath(sess, args[0], true)
		if err != nil {
			return protocol.Null(), true, err
		}
		if fs == d.svc.UserFiles && !sess.IsAdmin() {
			return d.userPut(sess, name, []byte(args[1]))
		}
		return protocol.OK(), true, fs.Put(name, []byte(args[1]))
	}
	return protocol.Null(), false, nil
}

// resolvePath validates a wire path and picks the backing file service.
// Host-side writes are admin only; host-side reads under games/NNNN are
// admitted by game read permission. User-side paths must start with the
// caller's own user id.
func (d *Dispatcher) resolvePath(sess *Session, name string, write bool) (string, *files.Service, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", nil, protocol.ErrBadRequest("bad path %q", name)
	}
	segs := strings.Split(clean, "/")
	switch segs[0] {
	case "games":
		if sess.IsAdmin() {
			return clean, d.svc.HostFiles, nil
		}
		if write {
			return "", nil, protocol.ErrForbidden("path is read only: %s", name)
		}
		if len(segs) < 2 {
			return "", nil, protocol.ErrForbidden("not allowed: %s", name)
		}
		gid, err := strconv.Atoi(segs[1])
		if err != nil {
			return "", nil, protocol.ErrBadRequest("bad game directory %q", segs[1])
		}
		if err := d.svc.Games.CheckRead(gid, sess.User); err != nil {
			return "", nil, err
		}
		return clean, d.svc.HostFiles, nil
	case "tools", "bin":
		if !sess.IsAdmin() && (write || segs[0] == "bin") {
			return "", nil, protocol.ErrForbidden("not allowed: %s", name)
		}
		return clean, d.svc.HostFiles, nil
	}
	if !sess.IsAdmin() && segs[0] != sess.User {
		return "", nil, protocol.ErrForbidden("not your directory: %s", name)
	}
	return clean, d.svc.UserFiles, nil
}

// userPut stores a file in a user home directory. When the target
// directory is managed by a game, the upload is classified first: turn
// files are diverted into the submission pipeline, game-controlled
// files are refused.
func (d *Dispatcher) userPut(sess *Session, name string, data []byte) (protocol.Value, bool, error) {
	dir, base := path.Split(name)
	dir = strings.TrimSuffix(dir, "/")

	gameProp, err := d.svc.UserFiles.GetProperty(dir, "game")
	if err != nil || gameProp == "" {
		return protocol.OK(), true, d.svc.UserFiles.Put(name, data)
	}
	gid, err := strconv.Atoi(gameProp)
	if err != nil {
		return protocol.Null(), true, protocol.NewError(protocol.CodeInternal, "corrupt game stamp on %s", dir)
	}

	outcome, err := d.svc.Players.CheckFile(gid, sess.User, base, dir)
	if err != nil {
		return protocol.Null(), true, err
	}
	switch outcome {
	case player.FileTurn:
		res, err := d.svc.Turns.Submit(context.Background(), turn.SubmitRequest{
			Blob:   data,
			GameID: gid,
			User:   sess.User,
		})
		if err != nil {
			return protocol.Null(), true, err
		}
		return submitValue(res), true, nil
	case player.FileRefuse, player.FileStale:
		return protocol.Null(), true, protocol.ErrForbidden("file %s is managed by game %d", base, gid)
	}
	return protocol.OK(), true, d.svc.UserFiles.Put(name, data)
}

func infoValue(fi files.Info) protocol.Value {
	return protocol.NewMap(
		protocol.MapEntry{Key: "name", Value: protocol.NewString(fi.Name)},
		protocol.MapEntry{Key: "size", Value: protocol.NewInt(fi.Size)},
		protocol.MapEntry{Key: "dir", Value: boolValue(fi.IsDir)},
	)
}
