package player

import (
	"strconv"
	"testing"

	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/tools"
	"github.com/starhost/starhost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

type recordingMail struct {
	templates []string
	receivers [][]string
}

func (m *recordingMail) Queue(template string, args map[string]string, receivers []string) error {
	m.templates = append(m.templates, template)
	m.receivers = append(m.receivers, receivers)
	return nil
}

func (m *recordingMail) ConfigureReconnect() {}

type fixture struct {
	svc       *Service
	games     *game.Service
	store     store.Store
	userFiles *files.Service
	mail      *recordingMail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hostFiles := files.NewMem()
	userFiles := files.NewMem()
	mail := &recordingMail{}
	games := game.New(st, hostFiles, tools.New(st, hostFiles), nil,
		arbiter.New(), clock.NewManualClock(0),
		mail, collab.LogForum{}, collab.LogRouter{}, game.Options{})
	svc := New(st, games, userFiles, mail)
	return &fixture{svc: svc, games: games, store: st, userFiles: userFiles, mail: mail}
}

func (fx *fixture) newGame(t *testing.T, typ types.GameType) int {
	t.Helper()
	id, err := fx.games.Create()
	require.NoError(t, err)
	g, _ := fx.games.Get(id)
	g.State = types.GameStateJoining
	g.Type = typ
	require.NoError(t, fx.store.UpdateGame(g))
	return id
}

func (fx *fixture) newUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, fx.store.CreateUser(&types.User{ID: id, AllowJoin: true}))
}

func TestJoin(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	fx.newUser(t, "alice")

	require.NoError(t, fx.svc.Join(id, 3, "alice", "alice"))
	g, _ := fx.games.Get(id)
	assert.Equal(t, []string{"alice"}, g.Slots[2].Chain)

	// Occupied slot
	fx.newUser(t, "bob")
	err := fx.svc.Join(id, 3, "bob", "bob")
	require.Error(t, err)

	// Already playing
	err = fx.svc.Join(id, 4, "alice", "alice")
	require.Error(t, err)

	// Admin may double-book a user
	require.NoError(t, fx.svc.Join(id, 4, "alice", ""))
}

func TestJoinAuthorization(t *testing.T) {
	fx := newFixture(t)
	fx.newUser(t, "alice")
	fx.newUser(t, "bob")
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "banned", AllowJoin: false}))

	priv := fx.newGame(t, types.GameTypePrivate)

	// Self-join into a private game needs a grant
	err := fx.svc.Join(priv, 1, "alice", "alice")
	require.Error(t, err)
	require.NoError(t, fx.svc.Add(priv, "alice"))
	require.NoError(t, fx.svc.Join(priv, 1, "alice", "alice"))

	// Users cannot join someone else
	err = fx.svc.Join(priv, 2, "bob", "alice")
	require.Error(t, err)

	// Admin can
	require.NoError(t, fx.svc.Join(priv, 2, "bob", ""))

	// No-join profile flag blocks even the admin
	err = fx.svc.Join(priv, 3, "banned", "")
	require.Error(t, err)

	// Wrong state
	pub := fx.newGame(t, types.GameTypePublic)
	g, _ := fx.games.Get(pub)
	g.State = types.GameStateFinished
	require.NoError(t, fx.store.UpdateGame(g))
	fx.newUser(t, "carol")
	err = fx.svc.Join(pub, 1, "carol", "carol")
	require.Error(t, err)
}

func TestJoinToFullNotifies(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	g, _ := fx.games.Get(id)
	g.Owner = "owner"
	for i := 0; i < types.MaxSlots-1; i++ {
		g.Slots[i].Chain = []string{"p" + strconv.Itoa(i)}
	}
	require.NoError(t, fx.store.UpdateGame(g))
	fx.newUser(t, "last")

	require.NoError(t, fx.svc.Join(id, types.MaxSlots, "last", ""))
	require.Contains(t, fx.mail.templates, "game-full")
	last := fx.mail.receivers[len(fx.mail.receivers)-1]
	assert.Contains(t, last, "owner")
	assert.Contains(t, last, "last")
	assert.Len(t, last, types.MaxSlots+1)
}

func TestSubstitute(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	for _, u := range []string{"a", "b", "c", "d"} {
		fx.newUser(t, u)
	}
	g, _ := fx.games.Get(id)
	g.Slots[0].Chain = []string{"a", "b", "c"}
	require.NoError(t, fx.store.UpdateGame(g))

	// "b" substitutes at their position: chain truncates to a,b then d
	require.NoError(t, fx.svc.Substitute(id, 1, "d", "b"))
	g, _ = fx.games.Get(id)
	assert.Equal(t, []string{"a", "b", "d"}, g.Slots[0].Chain)

	// Duplicate earlier in the chain is refused
	err := fx.svc.Substitute(id, 1, "a", "b")
	require.Error(t, err)

	// A caller outside the chain is refused
	err = fx.svc.Substitute(id, 1, "c", "z")
	require.Error(t, err)

	// Admin appends at the end
	require.NoError(t, fx.svc.Substitute(id, 1, "c", ""))
	g, _ = fx.games.Get(id)
	assert.Equal(t, []string{"a", "b", "d", "c"}, g.Slots[0].Chain)

	// Empty slot
	err = fx.svc.Substitute(id, 2, "a", "")
	require.Error(t, err)
}

func TestResign(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	g, _ := fx.games.Get(id)
	g.Slots[0].Chain = []string{"a", "b", "c"}
	g.Slots[1].Chain = []string{"x", "y"}
	require.NoError(t, fx.store.UpdateGame(g))

	// Non-primary resignation drops the resigner and everyone after
	require.NoError(t, fx.svc.Resign(id, 1, "b", "b"))
	g, _ = fx.games.Get(id)
	assert.Equal(t, []string{"a"}, g.Slots[0].Chain)

	// Primary resignation empties the chain
	require.NoError(t, fx.svc.Resign(id, 2, "x", "x"))
	g, _ = fx.games.Get(id)
	assert.Empty(t, g.Slots[1].Chain)

	// A user cannot resign someone before them
	g.Slots[2].Chain = []string{"a", "b"}
	require.NoError(t, fx.store.UpdateGame(g))
	err := fx.svc.Resign(id, 3, "a", "b")
	require.Error(t, err)

	// But can resign their own replacement
	g, _ = fx.games.Get(id)
	g.Slots[2].Chain = []string{"a", "b"}
	require.NoError(t, fx.store.UpdateGame(g))
	require.NoError(t, fx.svc.Resign(id, 3, "b", "a"))
}

func TestList(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	g, _ := fx.games.Get(id)
	g.Slots[0].Chain = []string{"a"}
	g.Slots[4].Chain = []string{"b"}
	require.NoError(t, fx.store.UpdateGame(g))

	slots, err := fx.svc.List(id, false)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 1, slots[0].Number)
	assert.Equal(t, 5, slots[1].Number)

	slots, err = fx.svc.List(id, true)
	require.NoError(t, err)
	assert.Len(t, slots, types.MaxSlots)
}

func TestManagedDir(t *testing.T) {
	fx := newFixture(t)
	a := fx.newGame(t, types.GameTypePublic)
	b := fx.newGame(t, types.GameTypePublic)
	fx.newUser(t, "alice")
	require.NoError(t, fx.userFiles.MkdirAll("alice/gameA"))
	require.NoError(t, fx.userFiles.MkdirAll("alice/gameB"))
	require.NoError(t, fx.userFiles.MkdirAll("bob/dir"))

	// Directory must belong to the user
	err := fx.svc.SetDir(a, "alice", "bob/dir")
	require.Error(t, err)

	// Missing directory
	err = fx.svc.SetDir(a, "alice", "alice/nope")
	require.Error(t, err)

	require.NoError(t, fx.svc.SetDir(a, "alice", "alice/gameA"))
	dir, err := fx.svc.GetDir(a, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice/gameA", dir)

	prop, _ := fx.userFiles.GetProperty("alice/gameA", "game")
	assert.Equal(t, strconv.Itoa(a), prop)

	// Another game cannot claim the same directory
	err = fx.svc.SetDir(b, "alice", "alice/gameA")
	require.Error(t, err)

	// Moving the game to a new directory releases the old one
	require.NoError(t, fx.svc.SetDir(a, "alice", "alice/gameB"))
	prop, _ = fx.userFiles.GetProperty("alice/gameA", "game")
	assert.Empty(t, prop)
	require.NoError(t, fx.svc.SetDir(b, "alice", "alice/gameA"))
}

func TestCheckFile(t *testing.T) {
	fx := newFixture(t)
	id := fx.newGame(t, types.GameTypePublic)
	fx.newUser(t, "alice")
	require.NoError(t, fx.userFiles.MkdirAll("alice/dir"))
	require.NoError(t, fx.svc.SetDir(id, "alice", "alice/dir"))
	g, _ := fx.games.Get(id)
	g.Slots[2].Chain = []string{"alice"}
	require.NoError(t, fx.store.UpdateGame(g))

	cases := []struct {
		name, dir, want string
	}{
		{"player3.trn", "alice/dir", FileTurn},
		{"PLAYER3.TRN", "alice/dir", FileTurn},
		{"player4.trn", "alice/dir", FileRefuse}, // not her slot
		{"player3.rst", "alice/dir", FileRefuse},
		{"race.nm", "alice/dir", FileRefuse},
		{"notes.txt", "alice/dir", FileAllow},
		{"notes.txt", "alice/other", FileStale},
		{"notes.txt", "", FileAllow}, // no dir given, no staleness check
	}
	for _, c := range cases {
		got, err := fx.svc.CheckFile(id, "alice", c.name, c.dir)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, "%s in %q", c.name, c.dir)
	}
}
