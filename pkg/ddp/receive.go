package ddp

import (
	"context"
	"time"
)

// handleFrame classifies one incoming frame per spec.md §4.2.7 and applies
// the transport-level reaction. It returns the frame's kind alongside the
// bytes relevant to a waiter: the reconstructed application payload for a
// completed data block (ACKed here), the raw ack byte for an ack frame, or
// the raw control frame bytes for a session-control frame. Payload content
// above the session-control vocabulary is otherwise opaque here:
// interpreting it (claim status, pre-emption, resume) is pkg/presentation's
// job, driven by the EventPayloadReceived events this emits.
func (e *Engine) handleFrame(ctx context.Context, data []byte) (payload []byte, kind frameKind) {
	if len(data) == 0 {
		return nil, kindUnknown
	}

	kind = classify(data)
	switch kind {
	case kindControl:
		e.dispatchControl(ctx, data)
		return data, kindControl

	case kindAck:
		e.lastAckByte = int(data[0])
		return data[:1], kindAck

	case kindDataBody:
		e.recvBlockBuf = append(e.recvBlockBuf, data[1:]...)
		e.recvBlockOn = true
		return nil, kindDataBody

	case kindDataEnd:
		seq := seqOf(data[0])
		// ACK the end frame immediately; this implicitly ACKs the whole
		// block, body frames are never ACKed individually.
		if err := e.send(ctx, encodeAck(seq)); err != nil {
			return nil, kindDataEnd
		}
		full := append(e.recvBlockBuf, data[1:]...)
		e.recvBlockBuf = nil
		e.recvBlockOn = false
		e.publish(Event{Kind: EventPayloadReceived, Payload: full})
		return full, kindDataEnd

	default:
		e.log.WithField("first_byte", data[0]).Warn("ddp: unparseable frame, discarding")
		return nil, kindUnknown
	}
}

// dispatch is handleFrame without a caller waiting on the result, used by
// the main Tick loop.
func (e *Engine) dispatch(ctx context.Context, data []byte) {
	e.handleFrame(ctx, data)
}

func (e *Engine) dispatchControl(ctx context.Context, data []byte) {
	switch {
	case equalBytes(data, ctrlClose):
		e.log.Info("ddp: session closed by cluster")
		e.reset()
		e.setState(StateDisconnected)
	case data[0] == ctrlPingPrefix:
		// Keep-alive ping: reply with the matching pong immediately.
		_ = e.send(ctx, encodeControl(e.pongPayload()))
	case hasPrefix(data, ctrlRedPresent), hasPrefix(data, ctrlColorPresent):
		if e.State() == StateReady || e.State() == StatePaused {
			e.log.Warn("ddp: broadcast seen while active, treating as session lost")
			e.reset()
			e.setState(StateDisconnected)
		}
	default:
		// A0/A1 frames outside of the handshake, or anything else: the
		// handshake consumes these directly via waitFor, nothing further
		// to do at the transport level.
	}
}

// pongPayload builds our reply to a keep-alive ping, matching the form
// (long/short) negotiated at open.
func (e *Engine) pongPayload() []byte {
	if e.params.KaLong {
		t1b, t3b := encodeTimingBytes(e.params.T1), encodeTimingBytes(e.params.T3)
		return []byte{ctrlAckPrefix, e.params.BS, t1b, 0xFF, t3b, 0xFF}
	}
	return []byte{ctrlAckPrefix, e.params.BS}
}

// waitFor drains frames, running each through handleFrame, until predicate
// matches one (a reconstructed data payload, a raw ack byte, or a raw
// control frame) or timeout elapses. It is the shared blocking primitive
// behind ACK waits and handshake steps: every frame seen while waiting is
// still fully processed, so pings, stray acks and control frames are never
// missed just because we are waiting on something specific.
func (e *Engine) waitFor(ctx context.Context, timeout time.Duration, predicate func(payload []byte, kind frameKind) bool) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}
		data, ok, err := e.recv(ctx, remaining)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		payload, kind := e.handleFrame(ctx, data)
		if payload != nil && predicate != nil && predicate(payload, kind) {
			return payload, true, nil
		}
	}
}
