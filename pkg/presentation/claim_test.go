package presentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClaimFastAccept drives spec.md §4.3.2's fast-accept path: the
// cluster answers the claim with 53 85 directly.
func TestClaimFastAccept(t *testing.T) {
	svc, cluster := newReadyService(t)

	errc := runClaim(svc)

	claim := recvAndAck(t, cluster, time.Second)
	require.Equal(t, byte(0x52), claim[0])
	sendStatusFrame(t, cluster, []byte{0x53, 0x85})

	require.NoError(t, <-errc)
	assert.True(t, svc.screenActive)
}

// TestClaimBusyFreeReinitDance drives spec.md §4.3.2's White busy path:
// busy, then free, then a reinit request/confirm round, then a repeated
// claim that finally succeeds.
func TestClaimBusyFreeReinitDance(t *testing.T) {
	svc, cluster := newReadyService(t)

	errc := runClaim(svc)

	recvAndAck(t, cluster, time.Second) // initial claim
	sendStatusFrame(t, cluster, []byte{0x53, 0x84})

	sendStatusFrame(t, cluster, []byte{0x53, 0x05})
	sendStatusFrame(t, cluster, []byte{0x2E})

	confirm := recvAndAck(t, cluster, time.Second)
	require.Equal(t, []byte{0x2F}, confirm)

	recvAndAck(t, cluster, time.Second) // repeated claim
	sendStatusFrame(t, cluster, []byte{0x53, 0x85})

	require.NoError(t, <-errc)
	assert.True(t, svc.screenActive)
}

// TestClaimColorInvalidGeometryRejected drives spec.md §4.3.2's Color
// invalid-geometry rejection (7B C0) directly through claimColor, since
// the engine's negotiated Mode is only observable, not settable, from this
// package short of running a full Color-variant handshake.
func TestClaimColorInvalidGeometryRejected(t *testing.T) {
	svc, cluster := newReadyService(t)

	errc := make(chan error, 1)
	go func() { errc <- svc.claimColor(context.Background()) }()

	sendStatusFrame(t, cluster, []byte{0x7B, 0xC0})

	err := <-errc
	require.ErrorIs(t, err, ErrClaimRejected)
	assert.False(t, svc.screenActive)
}
