package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	compLog := WithComponent("cron")
	compLog.Info().Msg("a")
	gameLog := WithGameID(7)
	gameLog.Info().Msg("b")
	userLog := WithUser("alice")
	userLog.Info().Msg("c")
	connLog := WithConnID("c0ffee")
	connLog.Debug().Msg("d")

	out := buf.String()
	assert.Contains(t, out, `"component":"cron"`)
	assert.Contains(t, out, `"game_id":7`)
	assert.Contains(t, out, `"user":"alice"`)
	assert.Contains(t, out, `"conn_id":"c0ffee"`)
}
