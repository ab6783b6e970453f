package presentation

import (
	"context"
	"testing"
	"time"

	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInactivityReleaseSendsReleaseOpcode drives spec.md §4.3.4's optional
// idle release: once enabled, an idle claimed screen emits the release
// opcode and screen_active drops, without tearing down the DDP session.
func TestInactivityReleaseSendsReleaseOpcode(t *testing.T) {
	svc, cluster := newReadyService(t)
	ctx := context.Background()

	errc := runClaim(svc)
	recvAndAck(t, cluster, time.Second)
	sendStatusFrame(t, cluster, []byte{0x53, 0x85})
	require.NoError(t, <-errc)

	svc.EnableInactivityRelease(10 * time.Millisecond)
	svc.lastDrawAt = time.Now().Add(-time.Second)

	go svc.checkInactivity(ctx)

	release := recvAndAck(t, cluster, time.Second)
	assert.Equal(t, []byte{0x33}, release)
	assert.Eventually(t, func() bool { return !svc.screenActive }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ddp.StateReady, svc.engine.State())
}

// TestInactivityReleaseDisabledByDefault confirms the feature is off until
// explicitly enabled, per spec.md §9 ("marked as experimental").
func TestInactivityReleaseDisabledByDefault(t *testing.T) {
	svc, _ := newReadyService(t)
	assert.False(t, svc.inactivityEnabled)
}
