package virtual

import (
	"testing"
	"time"

	can "github.com/korni92/ddpclusterd/pkg/can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndRecvAcrossPair(t *testing.T) {
	a, b := NewPair(0x6C1, 0x6C0)
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())
	defer a.Disconnect()
	defer b.Disconnect()

	for i := 0; i < 10; i++ {
		frame := can.NewFrame(0x6C0, []byte{byte(i), 1, 2, 3})
		require.NoError(t, a.Send(frame))
	}
	for i := 0; i < 10; i++ {
		frame, err := b.Recv(200 * time.Millisecond)
		require.NoError(t, err)
		assert.EqualValues(t, 0x6C0, frame.ID)
		assert.Equal(t, byte(i), frame.Data[0])
	}
}

func TestRecvFiltersForeignIdentifiers(t *testing.T) {
	a, b := NewPair(0x6C1, 0x6C0)
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())
	defer a.Disconnect()
	defer b.Disconnect()

	require.NoError(t, a.Send(can.NewFrame(0x123, []byte{0xFF})))
	require.NoError(t, a.Send(can.NewFrame(0x6C0, []byte{0x42})))

	frame, err := b.Recv(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), frame.Data[0])
}

func TestRecvTimesOutWhenIdle(t *testing.T) {
	a, _ := NewPair(0x6C1, 0x6C0)
	require.NoError(t, a.Connect())
	defer a.Disconnect()

	_, err := a.Recv(20 * time.Millisecond)
	assert.ErrorIs(t, err, can.ErrTimeout)
}

func TestReceiveOwn(t *testing.T) {
	bus, err := NewBus("", 0x6C0)
	require.NoError(t, err)
	a := bus.(*Bus)
	require.NoError(t, a.Connect())
	defer a.Disconnect()

	require.NoError(t, a.Send(can.NewFrame(0x6C0, []byte{1})))
	_, err = a.Recv(20 * time.Millisecond)
	assert.ErrorIs(t, err, can.ErrTimeout)

	a.SetReceiveOwn(true)
	require.NoError(t, a.Send(can.NewFrame(0x6C0, []byte{1})))
	frame, err := a.Recv(20 * time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 0x6C0, frame.ID)
}
