package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s := NewMem()

	require.NoError(t, s.Put("games/0001/in/player3.trn", []byte("turn data")))

	data, err := s.Get("games/0001/in/player3.trn")
	require.NoError(t, err)
	assert.Equal(t, []byte("turn data"), data)

	_, err = s.Get("games/0001/in/player4.trn")
	assert.Error(t, err)
}

func TestStatAndExists(t *testing.T) {
	s := NewMem()
	require.NoError(t, s.Put("tools/phost/hostexec", []byte("binary")))

	fi, err := s.Stat("tools/phost/hostexec")
	require.NoError(t, err)
	assert.Equal(t, int64(6), fi.Size)
	assert.False(t, fi.IsDir)

	assert.True(t, s.Exists("tools/phost/hostexec"))
	assert.False(t, s.Exists("tools/phost/missing"))
}

func TestListHidesProperties(t *testing.T) {
	s := NewMem()
	require.NoError(t, s.Put("u/ua/dir/b.txt", []byte("b")))
	require.NoError(t, s.Put("u/ua/dir/a.txt", []byte("a")))
	require.NoError(t, s.SetProperty("u/ua/dir", "game", "3"))

	infos, err := s.List("u/ua/dir")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a.txt", infos[0].Name)
	assert.Equal(t, "b.txt", infos[1].Name)
}

func TestProperties(t *testing.T) {
	s := NewMem()
	require.NoError(t, s.MkdirAll("u/ua/mygame"))

	// Missing property reads as empty
	v, err := s.GetProperty("u/ua/mygame", "game")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetProperty("u/ua/mygame", "game", "7"))
	v, err = s.GetProperty("u/ua/mygame", "game")
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	// Empty value clears the property
	require.NoError(t, s.SetProperty("u/ua/mygame", "game", ""))
	v, err = s.GetProperty("u/ua/mygame", "game")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSetPropertyRequiresDirectory(t *testing.T) {
	s := NewMem()
	require.NoError(t, s.Put("u/ua/file.txt", []byte("x")))

	assert.Error(t, s.SetProperty("u/ua/missing", "game", "1"))
	assert.Error(t, s.SetProperty("u/ua/file.txt", "game", "1"))
}
