package presentation

import (
	"context"
	"testing"
	"time"
)

// TestPreemptionPauseAndResumeReplaysCache drives spec.md §8 scenario 4: a
// claimed screen sees a busy status mid-session, transitions to PAUSED and
// clears screen_active, then on free+reinit resumes and replays the cached
// draw plus a commit. Every engine-touching call runs from a single
// goroutine (the engine is not safe for concurrent use, spec.md §5); the
// test's main goroutine plays the fake cluster purely over the bus.
func TestPreemptionPauseAndResumeReplaysCache(t *testing.T) {
	svc, cluster := newReadyService(t)
	ctx := context.Background()

	driverErr := make(chan error, 1)
	resumed := make(chan struct{})
	go func() {
		if err := svc.Claim(ctx); err != nil {
			driverErr <- err
			return
		}
		if err := svc.sendCommand(ctx, Command{Kind: CommandDrawText, X: 0, Y: 1, Text: "Hello"}); err != nil {
			driverErr <- err
			return
		}
		for i := 0; i < 200; i++ {
			if err := svc.engine.Tick(ctx, 10*time.Millisecond); err != nil {
				driverErr <- err
				return
			}
			for {
				select {
				case ev := <-svc.engine.Events():
					svc.handleEngineEvent(ctx, ev)
				default:
					goto drained
				}
			}
		drained:
			if svc.screenActive && i > 0 {
				close(resumed)
				driverErr <- nil
				return
			}
		}
		driverErr <- context.DeadlineExceeded
	}()

	// Initial claim.
	recvAndAck(t, cluster, time.Second)
	sendStatusFrame(t, cluster, []byte{0x53, 0x85})

	// The queued text draw (10 bytes: a body frame plus an end frame).
	recvAndAckBlock(t, cluster, time.Second)

	// Cluster reclaims the screen for a warning overlay.
	sendStatusFrame(t, cluster, []byte{0x53, 0x84})

	urgentPing := clusterRecv(t, cluster, time.Second)
	if len(urgentPing) != 1 || urgentPing[0] != 0xA3 {
		t.Fatalf("expected urgent A3 ping, got % X", urgentPing)
	}

	sendStatusFrame(t, cluster, []byte{0x53, 0x05})
	sendStatusFrame(t, cluster, []byte{0x2E})

	confirm := recvAndAck(t, cluster, time.Second)
	if string(confirm) != string([]byte{0x2F}) {
		t.Fatalf("expected reinit confirm 2F, got % X", confirm)
	}

	reclaim := recvAndAck(t, cluster, time.Second)
	if reclaim[0] != 0x52 {
		t.Fatalf("expected repeated claim opcode 52, got % X", reclaim)
	}
	sendStatusFrame(t, cluster, []byte{0x53, 0x85})

	replayed := recvAndAckBlock(t, cluster, time.Second)
	if replayed[0] != 0x57 {
		t.Fatalf("expected replayed text opcode 57, got % X", replayed)
	}

	commit := recvAndAck(t, cluster, time.Second)
	if string(commit) != string([]byte{0x39}) {
		t.Fatalf("expected commit 39, got % X", commit)
	}

	select {
	case <-resumed:
	case <-time.After(2 * time.Second):
		t.Fatal("resume never observed")
	}
	if err := <-driverErr; err != nil {
		t.Fatalf("driver goroutine failed: %v", err)
	}
}
