package ddp

import (
	"context"
	"fmt"
	"time"

	can "github.com/korni92/ddpclusterd/pkg/can"
)

const (
	breathingRounds   = 10
	breathingInterval = 200 * time.Millisecond
	// whiteInterBlockPause is WHITE's extra settle time between blocks of a
	// multi-block send; other variants send blocks back to back.
	whiteInterBlockPause = 20 * time.Millisecond
)

// SendPayload reliably delivers an application payload, splitting it into
// blocks of at most BS*7 bytes and each block into 7-byte CAN chunks, per
// spec.md §4.2.6. Every block's end frame is ACKed before the next block is
// sent; WHITE additionally pauses between blocks to let the cluster settle.
func (e *Engine) SendPayload(ctx context.Context, payload []byte) error {
	if s := e.State(); s != StateReady && s != StateInitializing {
		return ErrNotReady
	}
	blocks := chunkPayload(payload, e.params.BS)
	for i, block := range blocks {
		if err := e.sendBlock(ctx, block); err != nil {
			return err
		}
		if e.mode == ModeWhite && i != len(blocks)-1 {
			select {
			case <-time.After(whiteInterBlockPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// sendReliable is SendPayload for a single payload known to fit one CAN
// frame (<=7 bytes), the shape the initialization handshake's scripted
// steps use.
func (e *Engine) sendReliable(ctx context.Context, payload []byte) error {
	return e.sendBlock(ctx, payload)
}

// sendBlock sends one block (already <=BS*7 bytes) as a run of body frames
// followed by an end frame. send_seq advances once per physical CAN frame,
// body or end alike; only the end frame's seq is ever ACKed, confirming the
// whole block implicitly.
func (e *Engine) sendBlock(ctx context.Context, block []byte) error {
	chunks := chunkBlock(block)
	var endSeq uint8
	var endFrame can.Frame
	for i, chunk := range chunks {
		end := i == len(chunks)-1
		seq := e.sendSeq
		frame := encodeDataFrame(seq, chunk, end)
		if err := e.send(ctx, frame); err != nil {
			return err
		}
		e.sendSeq = (seq + 1) % 16
		if end {
			endSeq, endFrame = seq, frame
		}
	}
	return e.awaitAck(ctx, endSeq, endFrame, false)
}

// awaitAck waits for the ACK confirming seq. A missed ACK enters the
// breathing loop: up to breathingRounds rounds of emitting A3 and waiting
// 200ms for the awaited ACK to arrive late. If a different ACK turns up
// instead (the peer disagreeing about send_seq), resync with dummy frames
// and retry the original frame once.
func (e *Engine) awaitAck(ctx context.Context, seq uint8, frame can.Frame, retried bool) error {
	expected := ackForSeq(seq)
	ackMatches := func(payload []byte, kind frameKind) bool {
		return kind == kindAck && len(payload) > 0 && payload[0] == expected
	}

	if _, matched, err := e.waitFor(ctx, e.params.T1, ackMatches); err != nil {
		return err
	} else if matched {
		return nil
	}

	priorAck := e.lastAckByte
	for i := 0; i < breathingRounds; i++ {
		if err := e.send(ctx, encodeControl([]byte{ctrlPingPrefix})); err != nil {
			return err
		}
		_, matched, err := e.waitFor(ctx, breathingInterval, ackMatches)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}
	}

	if retried {
		e.fail()
		return fmt.Errorf("%w: no ack for seq %d after resync", ErrAckTimeout, seq)
	}

	if e.lastAckByte < 0 || e.lastAckByte == priorAck {
		e.fail()
		return fmt.Errorf("%w: no ack for seq %d, nothing to resync from", ErrAckTimeout, seq)
	}

	e.log.WithField("seq", seq).Warn("ddp: ack missing, resyncing with dummy frames")
	if err := e.resync(ctx, seq); err != nil {
		return err
	}
	if err := e.send(ctx, frame); err != nil {
		return err
	}
	return e.awaitAck(ctx, seq, frame, true)
}

// resync walks the peer's expected sequence forward to ours with empty end
// frames, so the original frame can be retried unchanged at its original
// seq. peer_expects is derived from the last ACK actually observed: its
// confirmed seq plus one is what the peer will next expect.
func (e *Engine) resync(ctx context.Context, seq uint8) error {
	if e.lastAckByte < 0 {
		return fmt.Errorf("%w: no ack observed yet, cannot resync", ErrAckTimeout)
	}
	peerExpects := (ackSeqConfirmed(byte(e.lastAckByte)) + 1) % 16
	numDummies := (seq - peerExpects + 16) % 16
	for i := uint8(0); i < numDummies; i++ {
		dummySeq := (peerExpects + i) % 16
		if err := e.send(ctx, encodeDataFrame(dummySeq, nil, true)); err != nil {
			return err
		}
		// Absorb whatever the dummy provokes; its own ACK (if any) isn't
		// load-bearing, only the peer's sequence counter advancing is.
		_, _, _ = e.waitFor(ctx, 50*time.Millisecond, func([]byte, frameKind) bool { return false })
	}
	return nil
}
