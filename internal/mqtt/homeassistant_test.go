package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/packyr/tahoma2mqtt/internal/tahoma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHACoverPayloadsResolve(t *testing.T) {
	bridge, _ := newTestBridge(&fakeGateway{})
	cover := NewHACoverFromBridge(bridge)

	assert.Equal(t, bridge.CommandTopic, cover.CommandTopic)
	assert.Equal(t, "salon", cover.UniqueID)

	for payload, wantCmd := range map[string]string{
		cover.PayloadOpen:  tahoma.CmdOpen,
		cover.PayloadClose: tahoma.CmdClose,
		cover.PayloadStop:  tahoma.CmdStop,
	} {
		var control tahoma.ControlPayload
		require.NoError(t, json.Unmarshal([]byte(payload), &control))

		instr, ok := tahoma.Resolve(control)
		require.True(t, ok)
		assert.Equal(t, wantCmd, instr.Command.Name)
	}
}
