package tools

import (
	"testing"

	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *files.Service) {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	fs := files.NewMem()
	return New(st, fs), fs
}

func TestAddValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	tests := []struct {
		name string
		id   string
		kind string
		code string
	}{
		{"space in id", "bad id", "host", protocol.CodeBadRequest},
		{"non-ascii id", "hörst", "host", protocol.CodeBadRequest},
		{"empty id", "", "host", protocol.CodeBadRequest},
		{"empty kind", "good", "", protocol.CodeBadRequest},
		{"space in kind", "good", "bad kind", protocol.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Add(store.CatalogHost, tt.id, "", "", tt.kind)
			require.Error(t, err)
			assert.Equal(t, tt.code, protocol.AsError(err).Code)
		})
	}

	require.NoError(t, r.Add(store.CatalogHost, "phost-4.1h", "", "", "host"))
}

func TestAddRequiresExistingExecutable(t *testing.T) {
	r, fs := newTestRegistry(t)

	err := r.Add(store.CatalogHost, "phost", "tools/phost", "hostexec", "host")
	require.Error(t, err)
	assert.Equal(t, protocol.CodeNotFound, protocol.AsError(err).Code)

	require.NoError(t, fs.Put("tools/phost/hostexec", []byte("bin")))
	assert.NoError(t, r.Add(store.CatalogHost, "phost", "tools/phost", "hostexec", "host"))
}

func TestDuplicateAdd(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Add(store.CatalogTool, "explmap", "", "", "mapper"))

	err := r.Add(store.CatalogTool, "explmap", "", "", "mapper")
	require.Error(t, err)
	assert.Equal(t, protocol.CodeConflict, protocol.AsError(err).Code)
}

func TestDefaultAfterAddRemove(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Add(store.CatalogMaster, "amaster", "", "", "master"))
	require.NoError(t, r.Add(store.CatalogMaster, "bmaster", "", "", "master"))

	def, err := r.Default(store.CatalogMaster)
	require.NoError(t, err)
	assert.Equal(t, "amaster", def)

	require.NoError(t, r.SetDefault(store.CatalogMaster, "bmaster"))
	require.NoError(t, r.Remove(store.CatalogMaster, "bmaster"))

	// Non-empty catalog keeps exactly one default
	def, err = r.Default(store.CatalogMaster)
	require.NoError(t, err)
	assert.Equal(t, "amaster", def)
}

func TestRemoveUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Remove(store.CatalogHost, "ghost")
	require.Error(t, err)
	assert.Equal(t, protocol.CodeNotFound, protocol.AsError(err).Code)
}

func TestCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Add(store.CatalogShiplist, "plist", "", "", "shiplist"))
	require.NoError(t, r.SetDescription(store.CatalogShiplist, "plist", "PList 3.2"))

	require.NoError(t, r.Copy(store.CatalogShiplist, "plist", "plist-copy"))

	c, err := r.Get(store.CatalogShiplist, "plist-copy")
	require.NoError(t, err)
	assert.Equal(t, "PList 3.2", c.Description)
	assert.Equal(t, "shiplist", c.Kind)

	// Copy onto an existing id refused
	err = r.Copy(store.CatalogShiplist, "plist", "plist-copy")
	assert.Equal(t, protocol.CodeConflict, protocol.AsError(err).Code)
}

func TestDifficultyLifecycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Add(store.CatalogHost, "phost", "", "", "host"))

	require.NoError(t, r.SetDifficulty(store.CatalogHost, "phost", 130))
	tool, err := r.Get(store.CatalogHost, "phost")
	require.NoError(t, err)
	assert.Equal(t, 130, tool.Difficulty)
	assert.True(t, tool.DifficultySet)
	assert.False(t, tool.DifficultyComputed)

	require.NoError(t, r.ClearDifficulty(store.CatalogHost, "phost"))
	tool, err = r.Get(store.CatalogHost, "phost")
	require.NoError(t, err)
	assert.False(t, tool.DifficultySet)
}

func TestComputeDifficulty(t *testing.T) {
	r, fs := newTestRegistry(t)
	require.NoError(t, fs.Put("tools/phost/hostexec", []byte("bin")))
	require.NoError(t, r.Add(store.CatalogHost, "phost", "tools/phost", "hostexec", "host"))

	require.NoError(t, fs.Put("tools/phost/phost.cfg", []byte(`
# host config
PlanetCoreDensity = 50
PlanetSurfaceDensity = 30
GameName = Test
`)))

	diff, err := r.ComputeDifficulty(store.CatalogHost, "phost")
	require.NoError(t, err)
	// avg density 40 -> (100-40)*250/100
	assert.Equal(t, 150, diff)

	tool, err := r.Get(store.CatalogHost, "phost")
	require.NoError(t, err)
	assert.True(t, tool.DifficultyComputed)
}

func TestRateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want int
	}{
		{"no density keys", "GameName=x\n", 100},
		{"full density is easy", "PlanetDensity=100\n", 0},
		{"zero density is hardest", "PlanetDensity=0\n", 250},
		{"clamped above 100", "PlanetDensity=150\n", 0},
		{"comments ignored", "# PlanetDensity=0\nPlanetDensity=100\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RateConfig([]byte(tt.cfg)))
		})
	}
}
