package presentation

import (
	"context"
	"testing"
	"time"

	can "github.com/korni92/ddpclusterd/pkg/can"
	"github.com/korni92/ddpclusterd/pkg/can/virtual"
	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
	"github.com/stretchr/testify/require"
)

// newReadyService brings an Engine up through the Red open handshake (the
// shortest path to READY with no scripted initialization script) against a
// fake cluster on the other end of an in-process virtual bus pair, then
// wraps it in a Service. Red shares claimMonoOrRed's 0x53 status family
// with White, so it doubles as the mono-path fixture for claim tests.
func newReadyService(t *testing.T) (*Service, *virtual.Bus) {
	t.Helper()
	driverBus, clusterBus := virtual.NewPair(ddp.CanIDRecv, ddp.CanIDSend)
	require.NoError(t, driverBus.Connect())
	require.NoError(t, clusterBus.Connect())
	t.Cleanup(func() {
		driverBus.Disconnect()
		clusterBus.Disconnect()
	})

	engine := ddp.NewEngine(driverBus, nil)
	openErr := make(chan error, 1)
	go func() { openErr <- engine.Open(context.Background()) }()

	clusterSend(t, clusterBus, []byte{0xA0, 0x07, 0x00})

	reply := clusterRecv(t, clusterBus, time.Second)
	require.Equal(t, []byte{0xA1, 0x0F}, reply)
	for round := 0; round < 5; round++ {
		ping := clusterRecv(t, clusterBus, time.Second)
		require.Equal(t, []byte{0xA3}, ping)
		clusterSend(t, clusterBus, []byte{0xA1, 0x0F})
	}
	require.NoError(t, <-openErr)
	require.Equal(t, ddp.StateReady, engine.State())
	require.Equal(t, ddp.ModeRed, engine.Mode())

	return NewService(engine, nil, nil), clusterBus
}

func clusterRecv(t *testing.T, cluster *virtual.Bus, timeout time.Duration) []byte {
	t.Helper()
	frame, err := cluster.Recv(timeout)
	require.NoError(t, err)
	return frame.Bytes()
}

func clusterSend(t *testing.T, cluster *virtual.Bus, payload []byte) {
	t.Helper()
	require.NoError(t, cluster.Send(can.NewFrame(ddp.CanIDRecv, payload)))
}

// runClaim drives Claim in a goroutine and returns a channel for its error,
// so the test can act as the fake cluster concurrently.
func runClaim(s *Service) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- s.Claim(context.Background()) }()
	return errc
}

// recvAndAck reads one reliable-send data frame from the engine and acks
// it as the cluster would, per spec.md §3's ack-byte formula (0xB0 + ((seq
// +1) mod 16)). Every Service write that crosses the wire goes through
// Engine.SendPayload, so every such write needs exactly this before the
// sender's goroutine can proceed.
func recvAndAck(t *testing.T, cluster *virtual.Bus, timeout time.Duration) []byte {
	t.Helper()
	frame := clusterRecv(t, cluster, timeout)
	require.NotEmpty(t, frame)
	seq := frame[0] & 0x0F
	ack := byte(0xB0) | ((seq + 1) % 16)
	clusterSend(t, cluster, []byte{ack})
	return frame[1:]
}

// recvAndAckBlock reads a full reliable-send block off the bus — one or
// more body frames (type nibble 0x2) followed by one end frame (type
// nibble 0x0/0x1) — reassembles the application payload, and acks the
// block using the end frame's seq, per spec.md §4.2.6's "one ACK per
// end-frame covering the whole block." Unlike recvAndAck, this handles
// payloads wider than a single 7-byte CAN frame.
func recvAndAckBlock(t *testing.T, cluster *virtual.Bus, timeout time.Duration) []byte {
	t.Helper()
	var payload []byte
	for {
		frame := clusterRecv(t, cluster, timeout)
		require.NotEmpty(t, frame)
		nibble := frame[0] >> 4
		payload = append(payload, frame[1:]...)
		if nibble == 0x0 || nibble == 0x1 {
			seq := frame[0] & 0x0F
			ack := byte(0xB0) | ((seq + 1) % 16)
			clusterSend(t, cluster, []byte{ack})
			return payload
		}
	}
}

// sendStatusFrame delivers payload to the engine as a single data end
// frame (seq 0, since the engine never validates a sender's inbound
// sequence numbering, only echoes it back in the ack) and drains the
// engine's resulting ack reply so it doesn't get mistaken for an
// outgoing command frame by a later recvAndAck.
func sendStatusFrame(t *testing.T, cluster *virtual.Bus, payload []byte) {
	t.Helper()
	clusterSend(t, cluster, append([]byte{0x10}, payload...))
	ack := clusterRecv(t, cluster, time.Second)
	require.Equal(t, []byte{0xB1}, ack)
}
