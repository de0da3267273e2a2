package server

import "strings"

// helpPage returns the man-style text for HELP. Unknown topics fall
// back to the main page.
func helpPage(topic string) string {
	if page, ok := helpPages[strings.ToLower(topic)]; ok {
		return page
	}
	return helpPages[""]
}

var helpPages = map[string]string{
	"": `starhost command reference

  HELP [topic]          this text; topics: game, player, turn,
                        schedule, tool, cron, file
  PING                  liveness check
  USER <uid>            authenticate the connection as <uid>

Responses are OK, an integer, a string, an array or a key/value list.
Failures answer -CODE message with a three digit code.`,

	"game": `game commands

  NEWGAME                         create a game, returns its id (admin)
  CLONEGAME <gid> [state]         copy a game (admin)
  GAMELIST [STATE s] [TYPE t] [USER u] [HOST h] [MASTER m]
           [SHIPLIST s] [TOOL t]  matching game ids
  GAMESTAT <gid>                  info list for one game
  GAMESETSTATE <gid> <state>      preparing/joining/running/finished/deleted
  GAMESETTYPE <gid> <type>        public/unlisted/private
  GAMESETNAME <gid> <name...>
  GAMESETOWNER <gid> <uid>
  GAMEGET <gid> <key>             read one config value
  GAMESET <gid> <key> <value>...  write config values atomically
  GAMEADDTOOL <gid> <tool>
  GAMERMTOOL <gid> <tool>         returns 1 when the tool was attached
  GAMELSTOOLS <gid>
  GAMEGETVC <gid>                 victory condition
  GAMECHECKVC <gid>               1 when the victory condition is due`,

	"player": `player commands

  PLAYERJOIN <gid> <slot> <uid>     enter a free slot
  PLAYERSUBST <gid> <slot> <uid>    append a replacement player
  PLAYERRESIGN <gid> <slot> <uid>   leave; primaries empty the slot
  PLAYERADD <gid> <uid>             grant read access (admin)
  PLAYERLS <gid> [ALL]              slot list; ALL includes empty slots
  PLAYERSETDIR <gid> <uid> <dir>    bind a home directory to the game
  PLAYERGETDIR <gid> <uid>
  PLAYERCHECKFILE <gid> <uid> <name> [<dir>]
                                    classify an upload: allow, refuse,
                                    stale or turn`,

	"turn": `turn commands

  TRN <blob> [GAME gid] [SLOT n] [MAIL addr] [INFO s]
      submit a turn file; the game is found by the file timestamp
      unless GAME is given. Answers status, output, game, slot,
      previous, user, turn, name, allowtemp.
  TRNMARKTEMP <gid> <slot> <0/1>
      mark or clear the temporary flag on the slot's current turn`,

	"schedule": `schedule commands

  SCHEDULEADD <gid> <spec...>     push an item onto the schedule stack
  SCHEDULESET <gid> <spec...>     replace the whole stack
  SCHEDULEMODIFY <gid> <spec...>  change the top item
  SCHEDULEDROP <gid>              pop the top item
  SCHEDULELIST <gid>              the stack, top first
  SCHEDULESHOW <gid> [turns [timelimit]]
                                  predicted host times

spec tokens:
  DAILY <n> | WEEKLY <mask> | ASAP | MANUAL | STOP
  DAYTIME <min>  DELAY <min>  EARLY <0/1>
  UNTILTURN <n> | UNTILTIME <t> | FOREVER

The weekday mask counts Sunday as bit 0. Times are minutes.`,

	"tool": `tool catalogs

Four parallel catalogs exist: HOST, MASTER, SHIPLIST and TOOL. Each
supports the same operations, prefixed by the catalog name:

  <CAT>ADD <id> <path> <exe> <kind>   register (admin)
  <CAT>RM <id>                        remove (admin)
  <CAT>LS                             list ids
  <CAT>GET <id>                       info list
  <CAT>SET <id> <description...>      set description (admin)
  <CAT>DEFAULT [<id>]                 get or set the catalog default
  <CAT>RATING <id> [<n>|AUTO|CLEAR]   get or set the difficulty
  <CAT>CP <from> <to>                 duplicate an entry (admin)`,

	"cron": `scheduler commands

  CRONGET <gid>        the game's pending event: action and time
  CRONLIST [LIMIT n]   all queued events, due entries first
  CRONKICK <gid>       clear the broken flag, returns 1 when it was set
  CRONSUSPEND <min>    delay all pending events by <min> minutes (admin)`,

	"file": `file commands

  GET <path>             file content
  PUT <path> <content>   store a file
  LS <path>              directory listing
  STAT <path>            name, size, dir flag
  PSTAT <path>           directory properties

Paths under games/, tools/ and bin/ address the host-side store; game
directories are readable by anyone who may read the game. All other
paths are user home directories, writable by their owner. Uploads into
a game-managed directory are classified first: turn files enter the
submission pipeline, game-controlled files are refused.`,
}
