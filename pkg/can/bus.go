// Package can defines the CAN bus abstraction used by the DDP driver: a
// single outgoing identifier, one incoming identifier filtered at the
// adapter, and a blocking bounded-timeout receive rather than an async
// callback push, matching the single-threaded cooperative loop the DDP
// engine runs on.
package can

import (
	"errors"
	"fmt"
	"time"
)

const SffMask uint32 = 0x000007FF

// ErrTimeout is returned by Recv when no matching frame arrived before the
// deadline. It is not a transport failure.
var ErrTimeout = errors.New("can: receive timed out")

// A Frame is a single CAN frame with up to 8 data bytes.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// Bytes returns the frame's payload, truncated to DLC.
func (f Frame) Bytes() []byte {
	return f.Data[:f.DLC]
}

// NewFrame builds a frame from a payload of 1 to 8 bytes.
func NewFrame(id uint32, payload []byte) Frame {
	f := Frame{ID: id, DLC: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f
}

// Bus is the adapter contract required by pkg/ddp: send one frame (paced by
// the caller), and block for up to a deadline waiting for the next frame
// matching the adapter's configured filter. Implementations must silently
// drop frames that do not match their filter rather than surface them.
type Bus interface {
	Connect(...any) error
	Disconnect() error
	Send(frame Frame) error
	Recv(timeout time.Duration) (Frame, error)
}

// NewInterfaceFunc constructs a Bus bound to a channel identifier (e.g. a
// SocketCAN interface name or a virtual bus address).
type NewInterfaceFunc func(channel string, recvID uint32) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// RegisterInterface makes a backend available under a name. Backends call
// this from an init() function.
func RegisterInterface(name string, newInterface NewInterfaceFunc) {
	interfaceRegistry[name] = newInterface
}

// NewBus looks up a registered backend and constructs it. recvID is the
// single CAN identifier the adapter filters incoming frames to.
func NewBus(backend, channel string, recvID uint32) (Bus, error) {
	newInterface, ok := interfaceRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("can: unsupported backend %q", backend)
	}
	return newInterface(channel, recvID)
}
