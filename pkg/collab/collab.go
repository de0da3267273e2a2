package collab

import (
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/types"
)

// MailQueue queues outgoing notification mail. Template rendering and
// delivery happen downstream.
type MailQueue interface {
	// Queue schedules a templated message for the given receivers
	Queue(template string, args map[string]string, receivers []string) error

	// ConfigureReconnect re-arms the connection for the next command
	ConfigureReconnect()
}

// Forum manages per-game discussion groups
type Forum interface {
	// CreateGroup creates the discussion group for a new game
	CreateGroup(gameID int, name string) error

	// SyncState mirrors a game state change into the group
	SyncState(gameID int, state types.GameState) error

	ConfigureReconnect()
}

// Router closes web sessions whose game state changed under them
type Router interface {
	// CloseSessions invalidates sessions referring to the game
	CloseSessions(gameID int) error

	ConfigureReconnect()
}

// LogMail is a MailQueue that only logs. Used when no mail transport is
// configured and in tests.
type LogMail struct{}

func (LogMail) Queue(template string, args map[string]string, receivers []string) error {
	mailLog := log.WithComponent("mail")
	mailLog.Info().
		Str("template", template).
		Int("receivers", len(receivers)).
		Msg("mail queued")
	return nil
}

func (LogMail) ConfigureReconnect() {}

// LogForum is a Forum that only logs
type LogForum struct{}

func (LogForum) CreateGroup(gameID int, name string) error {
	forumLog := log.WithComponent("forum")
	forumLog.Info().
		Int("game_id", gameID).
		Str("name", name).
		Msg("forum group created")
	return nil
}

func (LogForum) SyncState(gameID int, state types.GameState) error {
	forumLog := log.WithComponent("forum")
	forumLog.Debug().
		Int("game_id", gameID).
		Str("state", string(state)).
		Msg("forum state synced")
	return nil
}

func (LogForum) ConfigureReconnect() {}

// LogRouter is a Router that only logs
type LogRouter struct{}

func (LogRouter) CloseSessions(gameID int) error {
	routerLog := log.WithComponent("router")
	routerLog.Debug().
		Int("game_id", gameID).
		Msg("web sessions closed")
	return nil
}

func (LogRouter) ConfigureReconnect() {}
