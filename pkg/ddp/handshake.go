package ddp

import (
	"context"
	"fmt"
	"time"
)

const (
	detectionWindow      = 1 * time.Second
	handshakeStepTimeout = 1 * time.Second
)

// Open drives variant detection and, for paths where we end up the opener,
// the initialization handshake, per spec.md §4.2.3/§4.2.4. On any
// divergence the session lands in DISCONNECTED and Open returns a non-nil
// error wrapping ErrHandshake.
func (e *Engine) Open(ctx context.Context) error {
	e.reset()
	e.setState(StateSessionActive)

	broadcast, seen, err := e.waitFor(ctx, detectionWindow, func(payload []byte, kind frameKind) bool {
		return kind == kindControl && len(payload) > 0 && payload[0] == ctrlOpenPrefix
	})
	if err != nil {
		return err
	}
	if seen {
		if hasPrefix(broadcast, ctrlRedPresent) {
			return e.openRed(ctx)
		}
		return e.openPassive(ctx, broadcast)
	}
	return e.openActive(ctx)
}

// parseOpenParams applies the BS-cap and, for long-form frames, the timing
// decode described in spec.md §4.2.3 ("parse on every A0/A1 received").
func (e *Engine) parseOpenParams(data []byte) {
	if len(data) < 2 {
		return
	}
	if peerBS := data[1]; peerBS < e.params.BS {
		e.params.BS = peerBS
	}
	if len(data) >= 6 {
		e.params.T1 = decodeTimingByte(data[2])
		e.params.T3 = decodeTimingByte(data[4])
		e.params.KaLong = true
	} else {
		e.params.KaLong = false
	}
}

// openPassive handles the cluster-initiated white/color broadcast: we are
// not the opener, so the scripted initialization handshake (§4.2.4, scoped
// to opener=true) never runs here. The mode stays WHITE for the session:
// nothing on the receive path re-derives it from a later capability
// payload.
func (e *Engine) openPassive(ctx context.Context, data []byte) error {
	e.opener = false
	e.mode = ModeWhite
	e.parseOpenParams(data)
	if err := e.send(ctx, encodeControl(e.openReply())); err != nil {
		return err
	}
	e.setState(StateReady)
	return nil
}

// openReply builds our A1 reply in the form (long/short) the peer used.
func (e *Engine) openReply() []byte {
	if e.params.KaLong {
		return []byte{ctrlAckPrefix, e.params.BS, encodeTimingBytes(e.params.T1), 0xFF, encodeTimingBytes(e.params.T3), 0xFF}
	}
	return []byte{ctrlAckPrefix, e.params.BS}
}

// redShortAck is the literal "A1 0F" reply spec.md §4.2.3's worked Red
// example uses, independent of the peer's proposed BS in the `A0 07 00`
// broadcast. Recorded as a deliberate deviation from the general BS-cap
// rule in DESIGN.md.
func redShortAck(payload []byte, kind frameKind) bool {
	return kind == kindControl && len(payload) == 2 && payload[0] == ctrlAckPrefix && payload[1] == 0x0F
}

// openRed runs the Red presence handshake: we reply, ping, and exchange
// four further ping/pong rounds before declaring READY. Red never runs the
// scripted initialization handshake; its capability is fixed.
func (e *Engine) openRed(ctx context.Context) error {
	e.opener = true
	e.mode = ModeRed
	e.params.BS = 0x0F
	e.params.KaLong = false
	e.applyModeDefaults()

	if err := e.send(ctx, encodeControl([]byte{ctrlAckPrefix, 0x0F})); err != nil {
		return err
	}
	if err := e.pingAndExpectPong(ctx); err != nil {
		return fmt.Errorf("%w: red open not confirmed: %v", ErrHandshake, err)
	}
	for round := 0; round < 4; round++ {
		if err := e.pingAndExpectPong(ctx); err != nil {
			return fmt.Errorf("%w: red keep-alive round %d not confirmed: %v", ErrHandshake, round+1, err)
		}
	}
	e.setState(StateReady)
	return nil
}

func (e *Engine) pingAndExpectPong(ctx context.Context) error {
	if err := e.send(ctx, encodeControl([]byte{ctrlPingPrefix})); err != nil {
		return err
	}
	e.lastKeepaliveSent = time.Now()
	_, matched, err := e.waitFor(ctx, handshakeStepTimeout, redShortAck)
	if err != nil {
		return err
	}
	if !matched {
		e.fail()
		return ErrHandshake
	}
	return nil
}

// openActive is the fallback when no broadcast was seen within the
// detection window: we actively open as WHITE, falling back to TP1.6/Red
// if the cluster never answers the long-form request.
func (e *Engine) openActive(ctx context.Context) error {
	e.opener = true
	if err := e.send(ctx, encodeControl(ctrlWhiteOpen)); err != nil {
		return err
	}
	reply, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindControl && len(payload) > 0 && payload[0] == ctrlAckPrefix
	})
	if err != nil {
		return err
	}
	if !matched {
		return e.openActiveRedFallback(ctx)
	}

	e.parseOpenParams(reply)
	e.mode = ModeWhite
	shortForm := len(reply) < 6
	return e.runInitialization(ctx, shortForm)
}

// openActiveRedFallback retries the open with a TP1.6 presence frame when
// the long-form WHITE open gets no reply at all.
func (e *Engine) openActiveRedFallback(ctx context.Context) error {
	if err := e.send(ctx, encodeControl([]byte{ctrlOpenPrefix, e.params.BS, 0x00})); err != nil {
		return err
	}
	reply, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindControl && len(payload) > 0 && payload[0] == ctrlAckPrefix
	})
	if err != nil {
		return err
	}
	if !matched {
		e.fail()
		return fmt.Errorf("%w: no response to TP1.6 fallback open", ErrHandshake)
	}
	e.mode = ModeRed
	e.params.KaLong = false
	e.parseOpenParams(reply)
	e.applyModeDefaults()
	e.setState(StateReady)
	e.lastKeepaliveSent = time.Now()
	return nil
}

// runInitialization plays the scripted exchange of spec.md §4.2.4, only
// ever reached with opener=true.
func (e *Engine) runInitialization(ctx context.Context, shortForm bool) error {
	e.setState(StateInitializing)

	if err := e.sendReliable(ctx, []byte{0x15, 0x01, 0x01, 0x02, 0x00, 0x00}); err != nil {
		return err
	}
	if _, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindDataEnd && equalBytes(payload, []byte{0x00, 0x01})
	}); err != nil {
		return err
	} else if !matched {
		e.fail()
		return fmt.Errorf("%w: capability ack 00 01 not seen", ErrHandshake)
	}

	if err := e.sendReliable(ctx, []byte{0x01, 0x01, 0x00}); err != nil {
		return err
	}
	if err := e.sendReliable(ctx, []byte{0x08}); err != nil {
		return err
	}

	capability, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindDataEnd && len(payload) >= 2 && payload[0] == 0x09
	})
	if err != nil {
		return err
	}
	if !matched {
		e.fail()
		return fmt.Errorf("%w: capability packet not seen", ErrHandshake)
	}
	e.applyCapability(capability, shortForm)

	if err := e.sendReliable(ctx, []byte{0x20, 0x3B, 0xA0, 0x00}); err != nil {
		return err
	}
	if _, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindDataEnd
	}); err != nil {
		return err
	} else if !matched {
		e.fail()
		return fmt.Errorf("%w: post-capability status payload not seen", ErrHandshake)
	}
	if err := e.sendReliable(ctx, []byte{0x33}); err != nil {
		return err
	}

	if err := e.send(ctx, encodeControl([]byte{ctrlPingPrefix})); err != nil {
		return err
	}
	e.lastKeepaliveSent = time.Now()
	if _, matched, err := e.waitFor(ctx, handshakeStepTimeout, func(payload []byte, kind frameKind) bool {
		return kind == kindControl && len(payload) > 0 && payload[0] == ctrlAckPrefix
	}); err != nil {
		return err
	} else if !matched {
		e.fail()
		return fmt.Errorf("%w: final keep-alive not confirmed", ErrHandshake)
	}

	e.setState(StateReady)
	return nil
}

// applyCapability derives the final variant, opcode_offset, coord_bytes and
// region from the capability packet per spec.md §4.2.4 step 4. For the
// color class, type byte 0x03 selects COLOR_TYPE1; any other type byte
// is resolved by shortForm, which distinguishes the white-short from the
// white-long initialization path (short -> COLOR_TYPE2, long ->
// COLOR_TYPE1 — see DESIGN.md for this resolution).
func (e *Engine) applyCapability(capability []byte, shortForm bool) {
	if len(capability) < 2 {
		e.applyModeDefaults()
		return
	}
	class := capability[1]
	var kind byte
	if len(capability) >= 3 {
		kind = capability[2]
	}

	switch class {
	case 0x10:
		if kind == 0x03 {
			e.mode = ModeColorType1
		} else if shortForm {
			e.mode = ModeColorType2
		} else {
			e.mode = ModeColorType1
		}
	case 0x20:
		if kind == 0x03 {
			e.mode = ModeMonoHybrid
		}
	default:
		e.log.WithField("capability", capability).Warn("ddp: unrecognized capability class, keeping WHITE")
	}

	e.region = 0x31
	for i, b := range capability {
		if b == 0x30 && i+3 < len(capability) {
			e.region = capability[i+3]
			break
		}
	}
	e.applyModeDefaults()
}

// applyModeDefaults sets opcode_offset and coord_bytes for the current
// mode per the table in spec.md §4.2.4 step 4 / §4.3.1.
func (e *Engine) applyModeDefaults() {
	switch e.mode {
	case ModeColorType1:
		e.opcodeOffset, e.coordBytes = 0x28, 2
	case ModeColorType2:
		e.opcodeOffset, e.coordBytes = 0x08, 1
	default: // WHITE, RED, MONO_HYBRID
		e.opcodeOffset, e.coordBytes = 0, 1
	}
}
