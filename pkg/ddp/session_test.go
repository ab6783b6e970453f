package ddp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseResumeOnlyValidFromExpectedStates(t *testing.T) {
	engine, _ := newTestPair(t)

	engine.Pause() // no-op: not READY yet
	assert.Equal(t, StateDisconnected, engine.State())

	engine.setState(StateReady)
	engine.Pause()
	assert.Equal(t, StatePaused, engine.State())

	engine.Resume()
	assert.Equal(t, StateReady, engine.State())

	engine.Resume() // no-op: not PAUSED
	assert.Equal(t, StateReady, engine.State())
}

func TestSendPayloadRejectsWhenNotReady(t *testing.T) {
	engine, _ := newTestPair(t)
	err := engine.SendPayload(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCloseResetsSessionState(t *testing.T) {
	engine, cluster := newTestPair(t)
	engine.setState(StateReady)
	engine.mode = ModeColorType1

	require.NoError(t, engine.Close(context.Background()))

	frame := clusterRecv(t, cluster, time.Second)
	assert.Equal(t, []byte{ctrlClosePrefix}, frame)
	assert.Equal(t, StateDisconnected, engine.State())
	assert.Equal(t, ModeUnknown, engine.Mode())
}
