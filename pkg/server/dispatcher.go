package server

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/cron"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/player"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/tools"
	"github.com/starhost/starhost/pkg/turn"
)

// Services bundles everything the command handlers reach into. Cron may
// be nil when the scheduler is disabled.
type Services struct {
	Store     store.Store
	Games     *game.Service
	Players   *player.Service
	Turns     *turn.Service
	Schedules *schedule.Ops
	Tools     *tools.Registry
	Cron      *cron.Scheduler
	HostFiles *files.Service
	UserFiles *files.Service
	Mail      collab.MailQueue
	Forum     collab.Forum
	Router    collab.Router
	Clock     clock.Clock
}

// family tries to handle a verb; recognized is false when the verb does
// not belong to the family
type family func(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error)

// Dispatcher routes requests to command families under the global
// service mutex
type Dispatcher struct {
	mu       sync.Mutex
	svc      Services
	families []family
	log      zerolog.Logger
}

// NewDispatcher creates the dispatcher with the standard family order
func NewDispatcher(svc Services) *Dispatcher {
	return &Dispatcher{
		svc: svc,
		families: []family{
			handleSystem,
			handleCatalog,
			handleGame,
			handleTurn,
			handlePlayer,
			handleSchedule,
			handleFile,
			handleCron,
		},
		log: log.WithComponent("dispatch"),
	}
}

// Dispatch processes one request and returns the wire response. Errors
// are converted to error values, never returned.
func (d *Dispatcher) Dispatch(sess *Session, args []string) protocol.Value {
	if len(args) == 0 {
		return protocol.NewErrorValue(protocol.ErrBadRequest("empty command"))
	}
	verb := strings.ToUpper(args[0])
	args = args[1:]

	d.mu.Lock()
	defer d.mu.Unlock()
	start := time.Now()

	d.log.Debug().Str("verb", verb).Int("args", len(args)).Str("user", sess.User).Msg("command")
	d.svc.Mail.ConfigureReconnect()
	d.svc.Forum.ConfigureReconnect()
	d.svc.Router.ConfigureReconnect()

	for _, h := range d.families {
		v, ok, err := h(d, sess, verb, args)
		if !ok {
			continue
		}
		status := "ok"
		if err != nil {
			we := protocol.AsError(err)
			status = we.Code
			v = protocol.NewErrorValue(we)
			d.log.Info().Str("verb", verb).Str("code", we.Code).Str("err", we.Message).Msg("command failed")
		}
		metrics.CommandsTotal.WithLabelValues(verb, status).Inc()
		metrics.CommandDuration.Observe(time.Since(start).Seconds())
		return v
	}
	metrics.CommandsTotal.WithLabelValues(verb, protocol.CodeBadRequest).Inc()
	return protocol.NewErrorValue(protocol.ErrBadRequest("unknown command %s", verb))
}

// Argument helpers shared by the families

func needArgs(args []string, n int) error {
	if len(args) < n {
		return protocol.ErrBadRequest("missing arguments")
	}
	return nil
}

func argInt(args []string, i int) (int, error) {
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, protocol.ErrBadRequest("bad number %q", args[i])
	}
	return n, nil
}

func argInt64(args []string, i int) (int64, error) {
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, protocol.ErrBadRequest("bad number %q", args[i])
	}
	return n, nil
}

func argBool(args []string, i int) (bool, error) {
	switch args[i] {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, protocol.ErrBadRequest("bad flag %q", args[i])
}
