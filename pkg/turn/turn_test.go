package turn

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/runner"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/tools"
	"github.com/starhost/starhost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

const testStamp = "22-11-199911:22:33"

// fakeChecker returns a fixed exit code and records its invocations
type fakeChecker struct {
	exit  int
	calls int
}

func (f *fakeChecker) Run(ctx context.Context, name string, args []string, dir string) (runner.Result, error) {
	f.calls++
	return runner.Result{ExitCode: f.exit, Output: "checked"}, nil
}

type fixture struct {
	svc     *Service
	store   store.Store
	files   *files.Service
	checker *fakeChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hostFiles := files.NewMem()
	checker := &fakeChecker{}
	arb := arbiter.New()
	games := game.New(st, hostFiles, tools.New(st, hostFiles), checker,
		arb, clock.NewManualClock(0),
		collab.LogMail{}, collab.LogForum{}, collab.LogRouter{}, game.Options{})
	svc := New(st, games, hostFiles, checker, arb,
		Options{WorkDir: "/work", BinDir: "/bin"})

	id, err := games.Create()
	require.NoError(t, err)
	require.Equal(t, 1, id)
	g, _ := games.Get(id)
	g.State = types.GameStateRunning
	g.Timestamp = testStamp
	g.Slots[2].Chain = []string{"ua"}
	require.NoError(t, st.UpdateGame(g))
	require.NoError(t, st.CreateUser(&types.User{ID: "ua", Email: "ua@examp.le"}))

	return &fixture{svc: svc, store: st, files: hostFiles, checker: checker}
}

// turnBlob builds a minimal turn file for the slot and timestamp
func turnBlob(slot int, stamp string) []byte {
	blob := make([]byte, 280)
	binary.LittleEndian.PutUint16(blob[0:2], uint16(slot))
	copy(blob[timestampOffset:], stamp)
	return blob
}

func TestSubmitGreen(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, testStamp),
	})
	require.NoError(t, err)

	assert.Equal(t, types.TurnGreen, res.State)
	assert.Equal(t, 1, res.GameID)
	assert.Equal(t, 3, res.Slot)
	assert.Equal(t, types.TurnMissing, res.Previous)
	assert.Equal(t, "", res.User)
	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, "checked", res.Output)

	assert.True(t, fx.files.Exists("games/0001/in/player3.trn"))
	assert.False(t, fx.files.Exists("games/0001/in/player3.trn.new"))

	g, _ := fx.store.GetGame(1)
	assert.Equal(t, types.TurnGreen, g.Slots[2].State)
}

func TestSubmitByMailIsCaseInsensitive(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, testStamp),
		Mail: "UA@Examp.LE",
	})
	require.NoError(t, err)
	assert.Equal(t, "ua", res.User)
	assert.Equal(t, types.TurnGreen, res.State)

	// Unknown address fails with a mail mismatch
	_, err = fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, testStamp),
		Mail: "nobody@examp.le",
	})
	require.Error(t, err)
}

func TestSubmitValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Too short
	_, err := fx.svc.Submit(ctx, SubmitRequest{Blob: make([]byte, 10)})
	require.Error(t, err)

	// Slot parameter mismatch is rejected before any mutation
	_, err = fx.svc.Submit(ctx, SubmitRequest{Blob: turnBlob(3, testStamp), Slot: 4})
	require.Error(t, err)
	assert.Equal(t, 0, fx.checker.calls)
	g, _ := fx.store.GetGame(1)
	assert.Equal(t, types.TurnMissing, g.Slots[2].State)

	// Out-of-range declared slot
	_, err = fx.svc.Submit(ctx, SubmitRequest{Blob: turnBlob(99, testStamp)})
	require.Error(t, err)
}

func TestSubmitUnknownTimestamp(t *testing.T) {
	fx := newFixture(t)

	// No explicit game: stale, no mutation
	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, "01-01-197000:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.TurnStale, res.State)
	assert.Equal(t, 0, res.GameID)
	assert.Equal(t, 0, fx.checker.calls)

	// Explicit game: accepted, the checker classifies
	fx.checker.exit = 4
	res, err = fx.svc.Submit(context.Background(), SubmitRequest{
		Blob:   turnBlob(3, "01-01-197000:00:00"),
		GameID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, types.TurnStale, res.State)
	assert.Equal(t, 1, fx.checker.calls)
}

func TestSubmitUserMustBeOnChain(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.CreateUser(&types.User{ID: "ub"}))

	_, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, testStamp),
		User: "ub",
	})
	require.Error(t, err)

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Blob: turnBlob(3, testStamp),
		User: "ua",
	})
	require.NoError(t, err)
	assert.Equal(t, "ua", res.User)
	assert.True(t, res.AllowTemp, "primary may mark temporary")
}

func TestBadSubmissionKeepsGoodFile(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	good := turnBlob(3, testStamp)
	good[27] = 0x7f
	_, err := fx.svc.Submit(ctx, SubmitRequest{Blob: good})
	require.NoError(t, err)

	fx.checker.exit = 3
	bad := turnBlob(3, testStamp)
	res, err := fx.svc.Submit(ctx, SubmitRequest{Blob: bad})
	require.NoError(t, err)
	assert.Equal(t, types.TurnBad, res.State)
	assert.Equal(t, types.TurnGreen, res.Previous)

	// The good file survives; the state records the bad attempt
	data, err := fx.files.Get("games/0001/in/player3.trn")
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), data[27])
	g, _ := fx.store.GetGame(1)
	assert.Equal(t, types.TurnBad, g.Slots[2].State)
}

func TestExitStateMap(t *testing.T) {
	assert.Equal(t, types.TurnGreen, exitState(0))
	assert.Equal(t, types.TurnYellow, exitState(1))
	assert.Equal(t, types.TurnRed, exitState(2))
	assert.Equal(t, types.TurnBad, exitState(3))
	assert.Equal(t, types.TurnStale, exitState(4))
	assert.Equal(t, types.TurnNeedless, exitState(5))
	assert.Equal(t, types.TurnBad, exitState(42))
}

func TestSetTemporary(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Needs a submitted turn
	err := fx.svc.SetTemporary(1, 3, true, "ua")
	require.Error(t, err)

	_, err = fx.svc.Submit(ctx, SubmitRequest{Blob: turnBlob(3, testStamp)})
	require.NoError(t, err)

	require.NoError(t, fx.svc.SetTemporary(1, 3, true, "ua"))
	g, _ := fx.store.GetGame(1)
	assert.True(t, g.Slots[2].Temporary())
	assert.Equal(t, types.TurnGreen, g.Slots[2].TurnState())

	// Only admin or the primary
	err = fx.svc.SetTemporary(1, 3, false, "someone-else")
	require.Error(t, err)
	require.NoError(t, fx.svc.SetTemporary(1, 3, false, ""))
	g, _ = fx.store.GetGame(1)
	assert.False(t, g.Slots[2].Temporary())
}
