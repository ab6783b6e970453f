//go:build linux

// Package socketcanraw implements the real Linux SocketCAN backend, using a
// raw AF_CAN/SOCK_RAW socket with a hardware filter applied to the single
// identifier this driver listens on and a socket-level receive timeout so
// Recv presents the blocking bounded-timeout shape pkg/ddp requires.
package socketcanraw

import (
	"fmt"
	"log/slog"
	"net"
	"time"
	"unsafe"

	can "github.com/korni92/ddpclusterd/pkg/can"
	"golang.org/x/sys/unix"
)

const frameSize = 16

func init() {
	can.RegisterInterface("socketcanraw", NewBus)
}

// wireFrame mirrors the kernel's struct can_frame layout.
type wireFrame struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

type Bus struct {
	fd     int
	recvID uint32
	logger *slog.Logger
}

// NewBus opens and binds a raw CAN socket on the given interface (e.g.
// "can0"), applying a hardware filter so only recvID reaches this process.
func NewBus(channel string, recvID uint32) (can.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcanraw: create socket: %w", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		return nil, fmt.Errorf("socketcanraw: bind %s: %w", channel, err)
	}
	filters := []unix.CanFilter{{Id: recvID, Mask: can.SffMask}}
	if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters); err != nil {
		return nil, fmt.Errorf("socketcanraw: set filter: %w", err)
	}
	logger := slog.Default()
	logger.Info("socketcanraw: filter installed", "fd", fd, "recv_id", recvID)
	return &Bus{fd: fd, recvID: recvID, logger: logger}, nil
}

func (b *Bus) Connect(...any) error {
	return nil
}

func (b *Bus) Disconnect() error {
	b.logger.Info("socketcanraw: closing socket", "fd", b.fd)
	return unix.Close(b.fd)
}

func (b *Bus) Send(frame can.Frame) error {
	wire := wireFrame{id: frame.ID, dlc: frame.DLC, data: frame.Data}
	raw := (*(*[frameSize]byte)(unsafe.Pointer(&wire)))[:]
	n, err := unix.Write(b.fd, raw)
	if err != nil {
		return fmt.Errorf("socketcanraw: write: %w", err)
	}
	if n != frameSize {
		return fmt.Errorf("socketcanraw: short write: wrote %d of %d bytes", n, frameSize)
	}
	return nil
}

// Recv blocks for up to timeout, relying on the kernel filter installed at
// Bind time to only ever deliver recvID frames to this socket.
func (b *Bus) Recv(timeout time.Duration) (can.Frame, error) {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(b.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return can.Frame{}, fmt.Errorf("socketcanraw: set read timeout: %w", err)
	}
	raw := make([]byte, frameSize)
	n, err := unix.Read(b.fd, raw)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return can.Frame{}, can.ErrTimeout
		}
		b.logger.Error("socketcanraw: read failed", "err", err)
		return can.Frame{}, fmt.Errorf("socketcanraw: read: %w", err)
	}
	if n != frameSize {
		return can.Frame{}, fmt.Errorf("socketcanraw: short read: got %d of %d bytes", n, frameSize)
	}
	wire := (*wireFrame)(unsafe.Pointer(&raw[0]))
	return can.Frame{ID: wire.id, DLC: wire.dlc, Data: wire.data}, nil
}

// SetReceiveOwn enables loopback reception of frames this process itself
// sent. Useful in integration tests against a vcan interface.
func (b *Bus) SetReceiveOwn(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return unix.SetsockoptInt(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, v)
}
