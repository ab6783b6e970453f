package presentation

import (
	"context"
	"time"
)

// defaultInactivityTimeout is spec.md §4.3.4's 30s idle threshold.
const defaultInactivityTimeout = 30 * time.Second

// checkInactivity releases the screen back to the cluster when the
// inactivity feature is enabled, the screen is currently claimed, and no
// draw has gone out for the configured timeout. Disabled by default per
// spec.md §9 ("marked as experimental in the source"). The DDP session
// itself stays open; the next draw re-claims transparently.
func (s *Service) checkInactivity(ctx context.Context) {
	if !s.inactivityEnabled || !s.screenActive {
		return
	}
	if time.Since(s.lastDrawAt) < s.inactivityTimeout {
		return
	}
	if err := s.release(ctx); err != nil {
		s.log.WithError(err).Warn("presentation: inactivity release failed")
		return
	}
	s.log.Debug("presentation: screen released after inactivity")
}

// release sends the release opcode and marks the screen no longer claimed.
// It does not touch command_cache or line_cache: the next draw re-claims
// the screen (see dispatch) and is then sent; the cache is not replayed
// on that re-claim, unlike a pre-emption resume.
func (s *Service) release(ctx context.Context) error {
	if !s.screenActive {
		return nil
	}
	payload := []byte{biasedOpcode(opRelease, s.engine.OpcodeOffset())}
	if err := s.engine.SendPayload(ctx, payload); err != nil {
		return err
	}
	s.screenActive = false
	return nil
}
