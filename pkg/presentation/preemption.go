package presentation

import (
	"context"

	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
)

// preemptionPayloads is the set of status payloads spec.md §4.3.3 says
// signal the cluster reclaiming the screen for a warning or menu.
var preemptionPayloads = [][]byte{
	statBusyHalf, statBusyWarnHalf, statBusyFull, statBusyWarnFull,
	statColorBusyHalf, statColorBusyWarnHalf, statColorBusyFull, statColorBusyWarnFull,
}

func isPreemption(payload []byte) bool {
	return anyEqual(payload, preemptionPayloads...)
}

func isColorResume(payload []byte) bool {
	return anyEqual(payload, statColorFreeHalf, statColorFreeFull)
}

func isMonoFree(payload []byte) bool {
	return anyEqual(payload, statFreeHalf, statFreeFull)
}

// handleEngineEvent reacts to one event off the DDP engine's Events()
// channel: state transitions are merely observed, inbound payloads are
// checked against the pre-emption/resume vocabulary of spec.md §4.3.3.
// Every caller that drains engine.Events() — Run's main loop and Claim's
// awaitStatus pump alike — routes every event through here so a
// pre-emption is never missed just because something else was waiting on
// a specific status payload.
func (s *Service) handleEngineEvent(ctx context.Context, ev ddp.Event) {
	switch ev.Kind {
	case ddp.EventStateChanged:
		if ev.State == ddp.StateDisconnected {
			s.screenActive = false
			s.monoAwaitingReinit = false
			s.publishStatus(StatusEvent{Kind: StatusDisconnected})
		}
	case ddp.EventPayloadReceived:
		s.reactToPayload(ctx, ev.Payload)
	}
}

func (s *Service) reactToPayload(ctx context.Context, payload []byte) {
	if s.engine.State() == ddp.StateReady && s.screenActive && isPreemption(payload) {
		s.engine.Pause()
		s.screenActive = false
		s.monoAwaitingReinit = false
		// The cluster's own overlay now owns the display; line_cache no
		// longer reflects what's on screen, so resume's replay must not
		// suppress anything against stale fingerprints.
		s.lineCache.clear()
		_ = s.engine.Ping(ctx)
		s.publishStatus(StatusEvent{Kind: StatusPaused})
		return
	}

	if s.engine.State() != ddp.StatePaused {
		return
	}

	mode := s.engine.Mode()
	switch mode {
	case ddp.ModeColorType1, ddp.ModeColorType2:
		if isColorResume(payload) {
			s.resume(ctx)
		}
	default:
		if isMonoFree(payload) {
			s.monoAwaitingReinit = true
			return
		}
		if s.monoAwaitingReinit && len(payload) > 0 && payload[0] == opReinitRequest {
			s.monoAwaitingReinit = false
			// SendPayload refuses to send while PAUSED, so go READY first
			// for the 2F confirm; resume's own Resume() is then a no-op.
			s.engine.Resume()
			_ = s.engine.SendPayload(ctx, []byte{opReinitConfirm})
			s.resume(ctx)
		}
	}
}

// resume re-claims the screen and replays command_cache in ascending
// (y,x) order followed by a Commit, per spec.md §4.3.3: the cache is the
// authoritative source of screen contents across a PAUSED->READY
// transition.
func (s *Service) resume(ctx context.Context) {
	s.engine.Resume()
	if err := s.Claim(ctx); err != nil {
		s.log.WithError(err).Warn("presentation: re-claim after resume failed")
		return
	}
	s.publishStatus(StatusEvent{Kind: StatusReady})
	if err := s.replayCache(ctx); err != nil {
		s.log.WithError(err).Warn("presentation: cache replay after resume failed")
	}
}
