package types

import (
	"time"
)

// MaxSlots is the number of player slots every game has
const MaxSlots = 11

// Game represents one hosted game instance
type Game struct {
	ID           int
	Name         string
	State        GameState
	Type         GameType
	Owner        string // user id; empty when unowned
	Dir          string // host-file directory, "games/NNNN"
	Turn         int
	Timestamp    string // engine timestamp of the last run, 18 chars
	Difficulty   int    // cached, 100 = baseline
	MasterHasRun bool
	Broken       bool // excluded from scheduling until kicked
	CopyOf       int  // source game id when cloned, 0 otherwise

	// AllowedUsers may read a private game without playing in it
	AllowedUsers []string

	// Attached tools, one per catalog plus optional extras
	Host       string
	Master     string
	Shiplist   string
	ExtraTools []string

	Config   map[string]string
	Schedule []*ScheduleItem // stack, index 0 is the active item
	Slots    []*Slot         // indices 0..MaxSlots-1 for slots 1..MaxSlots

	// LastHostTime is the scaled-minute time of the previous host run,
	// 0 before the first run
	LastHostTime int64

	// Failures counts consecutive scheduler failures; reset on success
	Failures int

	CreatedAt time.Time
}

// GameState represents the lifecycle state of a game
type GameState string

const (
	GameStatePreparing GameState = "preparing"
	GameStateJoining   GameState = "joining"
	GameStateRunning   GameState = "running"
	GameStateFinished  GameState = "finished"
	GameStateDeleted   GameState = "deleted"
)

// GameType controls game visibility
type GameType string

const (
	GameTypePublic   GameType = "public"
	GameTypeUnlisted GameType = "unlisted"
	GameTypePrivate  GameType = "private"
)

// Slot is one player position of a game
type Slot struct {
	Number int

	// Chain is the ordered replacement chain; position 0 is the primary
	// player. A slot is occupied iff the chain is non-empty. Chains never
	// contain duplicates.
	Chain []string

	// State is the turn state, optionally OR'd with TurnTemporary
	State int

	Rank       int
	RankPoints int
	Settings   map[string]string

	// TurnsByUser counts host runs credited to each user on this slot,
	// used to split rank points between replacements
	TurnsByUser map[string]int

	// MissedTurns counts consecutive missed turns, for auto-kick
	MissedTurns int
}

// Occupied reports whether the slot has at least one player
func (s *Slot) Occupied() bool {
	return len(s.Chain) > 0
}

// Primary returns the primary player's user id, or "" when empty
func (s *Slot) Primary() string {
	if len(s.Chain) == 0 {
		return ""
	}
	return s.Chain[0]
}

// TurnState returns the state with the temporary flag masked out
func (s *Slot) TurnState() int {
	return s.State &^ TurnTemporary
}

// Temporary reports whether the temporary flag is set
func (s *Slot) Temporary() bool {
	return s.State&TurnTemporary != 0
}

// Turn state codes. Stable; they cross the wire unchanged.
const (
	TurnMissing  = 0
	TurnGreen    = 1
	TurnYellow   = 2
	TurnRed      = 3
	TurnBad      = 4
	TurnStale    = 5
	TurnNeedless = 6

	// TurnTemporary is a flag bit OR'd into the state
	TurnTemporary = 16
)

// ScheduleType selects the scheduling policy of a schedule item
type ScheduleType string

const (
	ScheduleStop   ScheduleType = "stop"
	ScheduleWeekly ScheduleType = "weekly"
	ScheduleDaily  ScheduleType = "daily"
	ScheduleASAP   ScheduleType = "asap"
	ScheduleManual ScheduleType = "manual"
)

// EndCondition terminates a schedule item
type EndCondition string

const (
	EndNone    EndCondition = "none"
	EndTurn    EndCondition = "turn"
	EndTime    EndCondition = "time"
	EndForever EndCondition = "forever"
)

// ScheduleItem is one entry of a game's schedule stack
type ScheduleItem struct {
	Type     ScheduleType
	Interval int   // days between hosts (daily)
	WeekDays uint8 // weekday bitmask, bit 0 = Sunday (weekly)
	Daytime  int   // minutes within the day at which the host fires

	HostDelay int  // minutes of delay after the last turn (asap, host-early)
	HostEarly bool // host as soon as all turns are in

	Condition     EndCondition
	ConditionTurn int
	ConditionTime int64 // scaled minutes
}

// Clone returns a deep copy of the item
func (s *ScheduleItem) Clone() *ScheduleItem {
	c := *s
	return &c
}

// Action is the kind of work a scheduler event represents
type Action string

const (
	ActionNone           Action = "none"
	ActionMaster         Action = "master"
	ActionHost           Action = "host"
	ActionScheduleChange Action = "schedulechange"
)

// Event is a scheduler event: run Action for GameID at Time
type Event struct {
	GameID int
	Action Action
	Time   int64 // absolute scaled minutes
}

// Tool describes one entry of a tool catalog
type Tool struct {
	ID          string
	Kind        string
	Path        string
	Exe         string
	Description string

	// Difficulty is valid only when DifficultySet is true. Computed
	// difficulties carry DifficultyComputed as well.
	Difficulty         int
	DifficultySet      bool
	DifficultyComputed bool

	// ExtraFiles restricts which additional files the tool ships
	ExtraFiles string
}

// User holds the profile attributes the host service consumes
type User struct {
	ID          string
	Email       string
	AllowJoin   bool
	Rank        int
	RankPoints  int
	TurnsPlayed int
	TurnsMissed int

	// Reliability in per-mille, 1000 = fully reliable
	Reliability int

	// GameDirs maps game id to the user's managed directory for that game
	GameDirs map[int]string

	// Subscriptions maps game id to mail-subscription state
	Subscriptions map[int]bool
}

// Permission bits of a user with respect to a game
type Permission int

const (
	UserIsPrimary Permission = 1 << iota
	UserIsActive
	UserIsInactive
	UserIsOwner
	GameIsPublic
)

// Has reports whether all bits of p2 are set in p
func (p Permission) Has(p2 Permission) bool {
	return p&p2 == p2
}
