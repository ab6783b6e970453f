// Package ddp implements the DDP transport and session engine: open/close,
// parameter negotiation, sequenced ACKed transport with flow control,
// keep-alive, cluster variant detection and the multi-phase initialization
// handshake described by the design this package implements. It has no
// knowledge of drawing opcodes; pkg/presentation is built on top of it.
package ddp

import (
	"context"
	"fmt"
	"sync"
	"time"

	can "github.com/korni92/ddpclusterd/pkg/can"
	log "github.com/sirupsen/logrus"
)

// State is the DDP session state per spec.md §3.
type State uint8

const (
	StateDisconnected State = iota
	StateSessionActive
	StateInitializing
	StateReady
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateSessionActive:
		return "SESSION_ACTIVE"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Mode is the detected cluster variant, selecting opcode offsets, coord
// widths and handshake/keep-alive shape.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeWhite
	ModeRed
	ModeColorType1
	ModeColorType2
	ModeMonoHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeWhite:
		return "WHITE"
	case ModeRed:
		return "RED"
	case ModeColorType1:
		return "COLOR_TYPE1"
	case ModeColorType2:
		return "COLOR_TYPE2"
	case ModeMonoHybrid:
		return "MONO_HYBRID"
	default:
		return "UNKNOWN"
	}
}

// Params holds negotiated transport parameters (spec.md §3).
type Params struct {
	BS        uint8 // block size: packets per block, 1-15
	T1        time.Duration
	T3        time.Duration
	KaLong    bool
	TPVersion string // "1.6" or "2.0"
}

func defaultParams() Params {
	return Params{
		BS:        0x0F,
		T1:        1000 * time.Millisecond,
		T3:        5 * time.Millisecond,
		KaLong:    true,
		TPVersion: "2.0",
	}
}

// EventKind tags an Event delivered on Engine.Events().
type EventKind uint8

const (
	EventStateChanged EventKind = iota
	EventPayloadReceived
)

// Event is how the DDP engine notifies the layer above it (pkg/presentation)
// of state transitions and inbound application payloads, the unidirectional
// status-out channel called for in spec.md §9 in place of bidirectional
// callbacks.
type Event struct {
	Kind    EventKind
	State   State
	Payload []byte
}

// Engine is the DDP session state machine. It is not safe for concurrent
// use: per spec.md §5 the driver is single-threaded cooperative, suspending
// only at Bus Adapter I/O. All exported methods are meant to be called from
// that one driver loop.
type Engine struct {
	bus can.Bus
	log *log.Entry

	mu sync.Mutex // guards only State()/Mode() for external read-only observers

	state  State
	mode   Mode
	opener bool

	sendSeq uint8
	params  Params

	opcodeOffset byte
	coordBytes   uint8
	region       byte

	lastKeepaliveSent time.Time

	lastAckByte  int // -1 if none observed since the last session reset
	recvBlockBuf []byte
	recvBlockOn  bool

	events chan Event
}

// NewEngine builds an Engine bound to bus. logger may be nil to use the
// package default.
func NewEngine(bus can.Bus, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{
		bus:         bus,
		log:         logger,
		state:       StateDisconnected,
		mode:        ModeUnknown,
		params:      defaultParams(),
		lastAckByte: -1,
		events:      make(chan Event, 32),
	}
}

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mode returns the detected cluster variant.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Region returns the opaque cluster-reported display region byte.
// spec.md §9 treats its meaning as inferred from position only: callers
// must pass it through rather than interpret it.
func (e *Engine) Region() byte { return e.region }

// OpcodeOffset and CoordBytes expose the rendering variant parameters
// derived from the handshake, consumed by pkg/presentation.
func (e *Engine) OpcodeOffset() byte { return e.opcodeOffset }
func (e *Engine) CoordBytes() uint8  { return e.coordBytes }

// Events returns the channel of state transitions and inbound application
// payloads. The caller must drain it; it is buffered but not unbounded.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.log.WithField("state", s).Debug("ddp: state transition")
	e.publish(Event{Kind: EventStateChanged, State: s})
}

func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Warn("ddp: event channel full, dropping event")
	}
}

// send transmits one CAN frame and enforces the mandatory post-send pacing
// delay (T3, default 5ms, negotiated). Pacing is not optional: skipping it
// overruns the cluster's receive buffer. The pacing sleep is itself
// cancellable via ctx, per spec.md §9's "guaranteed shutdown on all exit
// paths" note, reworked here as a threaded context.Context.
func (e *Engine) send(ctx context.Context, frame can.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.bus.Send(frame); err != nil {
		e.log.WithError(err).Error("ddp: bus send failed")
		e.fail()
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	select {
	case <-time.After(e.params.T3):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// recv blocks up to timeout for the next frame on the filtered incoming
// identifier, or until ctx is done. A timeout is not an error condition
// here.
func (e *Engine) recv(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	frame, err := e.bus.Recv(timeout)
	if err == can.ErrTimeout {
		return nil, false, nil
	}
	if err != nil {
		e.log.WithError(err).Error("ddp: bus recv failed")
		e.fail()
		return nil, false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return frame.Bytes(), true, nil
}

// fail escalates any transport-level error to DISCONNECTED and resets all
// per-session state, per spec.md §3 lifecycle and §7 propagation policy.
func (e *Engine) fail() {
	if e.State() == StateDisconnected {
		return
	}
	e.reset()
	e.setState(StateDisconnected)
}

func (e *Engine) reset() {
	e.mode = ModeUnknown
	e.opener = false
	e.sendSeq = 0
	e.params = defaultParams()
	e.opcodeOffset = 0
	e.coordBytes = 1
	e.region = 0
	e.lastAckByte = -1
	e.recvBlockBuf = nil
	e.recvBlockOn = false
}

// Close sends the session-close control frame and transitions to
// DISCONNECTED, resetting per-session state.
func (e *Engine) Close(ctx context.Context) error {
	if e.State() == StateDisconnected {
		return nil
	}
	err := e.send(ctx, encodeControl([]byte{ctrlClosePrefix}))
	e.reset()
	e.setState(StateDisconnected)
	return err
}

// Tick drains at most one inbound frame (bounded by pollTimeout) through the
// receive dispatcher and services the keep-alive timer. It is meant to be
// called repeatedly from the single driver loop; it never blocks longer
// than pollTimeout or until ctx is done.
func (e *Engine) Tick(ctx context.Context, pollTimeout time.Duration) error {
	data, ok, err := e.recv(ctx, pollTimeout)
	if err != nil {
		return err
	}
	if ok {
		e.dispatch(ctx, data)
	}
	return e.serviceKeepAlive(ctx)
}

// Pause transitions READY->PAUSED. Called by pkg/presentation once it has
// classified a delivered payload as a cluster pre-emption (spec.md §4.3.3);
// the DDP engine itself does not interpret presentation-layer opcodes.
func (e *Engine) Pause() {
	if e.State() != StateReady {
		return
	}
	e.setState(StatePaused)
}

// Resume transitions PAUSED->READY, the mirror of Pause.
func (e *Engine) Resume() {
	if e.State() != StatePaused {
		return
	}
	e.setState(StateReady)
}
