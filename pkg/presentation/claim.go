package presentation

import (
	"context"
	"fmt"
	"time"

	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
)

const claimStepTimeout = 1 * time.Second

// claimLiteralTail is the fixed operand block spec.md §4.3.2's worked
// example sends after the claim opcode for the 8-bit-coordinate (white/red)
// path: "52 05 82 00 1B 40 30" — length byte 05, flags 82, then the four
// region bytes 00 1B 40 30, the same framing withLength produces. The
// 16-bit-coordinate color path keeps flags as one byte, widens each of the
// four region bytes in place rather than re-deriving named x/y/w/h values,
// and recomputes the length byte — recorded in DESIGN.md.
var claimLiteralTail = []byte{0x05, 0x82, 0x00, 0x1B, 0x40, 0x30}

// claimPayload builds the claim request for the session's detected mode.
func claimPayload(mode ddp.Mode, coordBytes uint8) []byte {
	op := claimOpcode(mode)
	if coordBytes <= 1 {
		out := make([]byte, 0, 1+len(claimLiteralTail))
		out = append(out, op)
		return append(out, claimLiteralTail...)
	}
	operands := []byte{claimLiteralTail[1]}
	for _, b := range claimLiteralTail[2:] {
		operands = append(operands, encodeCoord(uint16(b), 2)...)
	}
	return withLength(op, operands)
}

// Claim drives the screen claim handshake of spec.md §4.3.2, branching on
// the session's detected variant. On success it sets screenActive and
// returns nil; any divergence returns a non-nil error without tearing down
// the underlying DDP session.
func (s *Service) Claim(ctx context.Context) error {
	mode := s.engine.Mode()
	payload := claimPayload(mode, s.engine.CoordBytes())
	if err := s.engine.SendPayload(ctx, payload); err != nil {
		return err
	}

	switch mode {
	case ddp.ModeColorType1, ddp.ModeColorType2:
		return s.claimColor(ctx)
	default:
		return s.claimMonoOrRed(ctx)
	}
}

// claimMonoOrRed serves both the Red path (expect 53 85 directly) and the
// White path (fast-accept, or busy/free/reinit dance) since both speak the
// same 0x53 status family.
func (s *Service) claimMonoOrRed(ctx context.Context) error {
	payload, matched, err := s.awaitStatus(ctx, claimStepTimeout, func(p []byte) bool {
		return anyEqual(p, statOK) || anyEqual(p, statBusyHalf, statBusyWarnHalf, statBusyFull, statBusyWarnFull) ||
			anyEqual(p, statGraphicAckWhite, statGraphicAckRed)
	})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: no claim status observed", ErrClaimTimeout)
	}
	if anyEqual(payload, statOK) || anyEqual(payload, statGraphicAckWhite, statGraphicAckRed) {
		s.screenActive = true
		return nil
	}

	// Busy: wait for free, then the reinit-request/confirm round, then
	// repeat the claim.
	if _, matched, err := s.awaitStatus(ctx, claimStepTimeout, func(p []byte) bool {
		return anyEqual(p, statFreeHalf, statFreeFull)
	}); err != nil {
		return err
	} else if !matched {
		return fmt.Errorf("%w: cluster never freed the screen", ErrClaimTimeout)
	}

	if _, matched, err := s.awaitStatus(ctx, claimStepTimeout, func(p []byte) bool {
		return len(p) > 0 && p[0] == opReinitRequest
	}); err != nil {
		return err
	} else if !matched {
		return fmt.Errorf("%w: no reinit request after free", ErrClaimTimeout)
	}

	if err := s.engine.SendPayload(ctx, []byte{opReinitConfirm}); err != nil {
		return err
	}

	mode := s.engine.Mode()
	if err := s.engine.SendPayload(ctx, claimPayload(mode, s.engine.CoordBytes())); err != nil {
		return err
	}
	if _, matched, err := s.awaitStatus(ctx, claimStepTimeout, func(p []byte) bool {
		return anyEqual(p, statOK)
	}); err != nil {
		return err
	} else if !matched {
		return fmt.Errorf("%w: claim not confirmed after reinit", ErrClaimRejected)
	}
	s.screenActive = true
	return nil
}

func (s *Service) claimColor(ctx context.Context) error {
	payload, matched, err := s.awaitStatus(ctx, claimStepTimeout, func(p []byte) bool {
		return anyEqual(p, statColorOK, statColorFreeHalf, statColorFreeFull, statColorInvalid)
	})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: no claim status observed", ErrClaimTimeout)
	}
	if anyEqual(payload, statColorInvalid) {
		return fmt.Errorf("%w: invalid claim geometry", ErrClaimRejected)
	}
	s.screenActive = true
	return nil
}
