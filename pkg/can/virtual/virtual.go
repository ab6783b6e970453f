// Package virtual implements a TCP-framed loopback CAN bus, used to drive
// pkg/ddp and pkg/presentation tests without real hardware. It expects a
// small broker relaying frames between connected clients (see
// https://github.com/windelbouwman/virtualcan for the wire format this
// mirrors), or can loop frames back locally for single-process tests.
package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	can "github.com/korni92/ddpclusterd/pkg/can"
)

func init() {
	can.RegisterInterface("virtual", NewBus)
	can.RegisterInterface("virtualcan", NewBus)
}

// Bus is a loopback/broker-relayed CAN bus reachable over TCP.
type Bus struct {
	mu         sync.Mutex
	channel    string
	recvID     uint32
	conn       net.Conn
	receiveOwn bool
	loopback   chan can.Frame
	peer       chan<- can.Frame // set by NewPair for in-process, broker-free tests
	logger     *slog.Logger
}

// NewBus satisfies can.NewInterfaceFunc. channel is a "host:port" broker
// address; recvID is the single CAN identifier this adapter filters to.
func NewBus(channel string, recvID uint32) (can.Bus, error) {
	return &Bus{channel: channel, recvID: recvID, loopback: make(chan can.Frame, 64), logger: slog.Default()}, nil
}

// NewPair wires two in-process buses directly to each other, bypassing the
// TCP broker entirely. It exists for tests that need two independent
// endpoints (a driver and a fake cluster) without a running broker process.
func NewPair(recvIDA, recvIDB uint32) (a, b *Bus) {
	chA := make(chan can.Frame, 64)
	chB := make(chan can.Frame, 64)
	a = &Bus{recvID: recvIDA, loopback: chA, peer: chB, logger: slog.Default()}
	b = &Bus{recvID: recvIDB, loopback: chB, peer: chA, logger: slog.Default()}
	return a, b
}

func serializeFrame(frame can.Frame) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(frame.ID))
	binary.Write(buf, binary.BigEndian, frame.DLC)
	buf.Write(frame.Data[:])
	payload := buf.Bytes()
	framed := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	return append(framed, payload...)
}

func deserializeFrame(raw []byte) (can.Frame, error) {
	if len(raw) != 13 {
		return can.Frame{}, fmt.Errorf("virtual: malformed frame, got %d bytes", len(raw))
	}
	var f can.Frame
	f.ID = binary.BigEndian.Uint32(raw[0:4])
	f.DLC = raw[4]
	copy(f.Data[:], raw[5:13])
	return f, nil
}

// Connect dials the broker. An empty channel means "no broker, local
// loopback only" and is used by package-local tests.
func (b *Bus) Connect(...any) error {
	if b.channel == "" {
		return nil
	}
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		b.logger.Error("virtual: dial broker failed", "channel", b.channel, "err", err)
		return err
	}
	b.logger.Info("virtual: connected to broker", "channel", b.channel)
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	b.conn = conn
	return nil
}

func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// SetReceiveOwn enables a local loopback path: frames sent on this bus are
// also delivered to this bus's own Recv, useful for single-process tests.
func (b *Bus) SetReceiveOwn(enabled bool) {
	b.receiveOwn = enabled
}

func (b *Bus) Send(frame can.Frame) error {
	if b.receiveOwn {
		select {
		case b.loopback <- frame:
		default:
		}
	}
	if b.peer != nil {
		select {
		case b.peer <- frame:
		default:
		}
		return nil
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		// No broker configured (empty channel): local-only bus, nothing to relay.
		if b.receiveOwn || b.channel == "" {
			return nil
		}
		return errors.New("virtual: no active connection")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))
	_, err := conn.Write(serializeFrame(frame))
	return err
}

// Recv blocks for up to timeout for the next frame matching recvID,
// draining and discarding any frame addressed to a different identifier.
func (b *Bus) Recv(timeout time.Duration) (can.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return can.Frame{}, can.ErrTimeout
		}
		frame, err := b.recvOne(remaining)
		if err != nil {
			return can.Frame{}, err
		}
		if frame.ID == b.recvID {
			return frame, nil
		}
		// Frame for a different identifier: adapter drops it silently.
	}
}

func (b *Bus) recvOne(timeout time.Duration) (can.Frame, error) {
	select {
	case frame := <-b.loopback:
		return frame, nil
	default:
	}

	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		select {
		case frame := <-b.loopback:
			return frame, nil
		case <-time.After(timeout):
			return can.Frame{}, can.ErrTimeout
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	header := make([]byte, 4)
	if _, err := readFull(conn, header); err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return can.Frame{}, can.ErrTimeout
		}
		return can.Frame{}, err
	}
	length := binary.BigEndian.Uint32(header)
	payload := make([]byte, length)
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	if _, err := readFull(conn, payload); err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return can.Frame{}, can.ErrTimeout
		}
		return can.Frame{}, err
	}
	return deserializeFrame(payload)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
