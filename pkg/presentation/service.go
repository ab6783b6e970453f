// Package presentation implements the application-level layer built on top
// of pkg/ddp: screen claim, drawing opcodes, frame commit, and
// state-preserving restoration after cluster-driven pre-emption. It has no
// knowledge of CAN framing; everything it sends or receives is a DDP
// application payload.
package presentation

import (
	"context"
	"fmt"
	"time"

	"github.com/korni92/ddpclusterd/pkg/assets"
	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
	log "github.com/sirupsen/logrus"
)

// CommandKind tags one record of the UI draw-command stream, spec.md §6.
type CommandKind uint8

const (
	CommandClear CommandKind = iota
	CommandClearArea
	CommandDrawText
	CommandDrawBitmap
	CommandDrawLine
	CommandDrawRect
	CommandCommit
)

// Command is the tagged-variant draw-command record spec.md §9 calls for
// in place of the upstream source's reflective message dispatch. Only the
// fields relevant to Kind are meaningful; the rest are zero.
type Command struct {
	Kind CommandKind

	X, Y, W, H uint16
	Color      byte

	Text  string
	Flags byte
	Font  byte

	IconName string

	Length   uint16
	Vertical bool

	// OpcodeOverride, when non-zero, replaces the biased opcode this
	// command would otherwise encode to — an escape hatch for field
	// variants spec.md §9 says to keep data-driven rather than hard-coded.
	OpcodeOverride byte
}

// StatusEventKind tags one notification on Service.Status().
type StatusEventKind uint8

const (
	StatusReady StatusEventKind = iota
	StatusPaused
	StatusDisconnected
	StatusDropped
)

// StatusEvent is the presentation layer's half of spec.md §9's
// unidirectional channel pair replacing the upstream's bidirectional
// UI/driver callbacks. Err is only set for StatusDropped.
type StatusEvent struct {
	Kind StatusEventKind
	Err  error
}

// AssetLookup is the bitmap manifest contract Service needs for
// draw_bitmap, satisfied by *assets.Table.
type AssetLookup interface {
	Lookup(name string) (assets.Bitmap, bool)
}

// Service is the presentation-layer command processor: a single-producer,
// single-consumer command queue in, a status event stream out, run from
// the same cooperative loop as the DDP engine beneath it.
type Service struct {
	engine *ddp.Engine
	assets AssetLookup
	log    *log.Entry

	commands chan Command
	status   chan StatusEvent

	cache     *CommandCache
	lineCache *LineCache

	screenActive       bool
	monoAwaitingReinit bool

	lastDrawAt        time.Time
	inactivityEnabled bool
	inactivityTimeout time.Duration
}

// NewService builds a Service bound to engine. lookup may be nil if no
// draw_bitmap commands will ever be submitted; logger may be nil to use
// the package default.
func NewService(engine *ddp.Engine, lookup AssetLookup, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Service{
		engine:            engine,
		assets:            lookup,
		log:               logger,
		commands:          make(chan Command, 64),
		status:            make(chan StatusEvent, 16),
		cache:             newCommandCache(),
		lineCache:         newLineCache(),
		inactivityTimeout: defaultInactivityTimeout,
	}
}

// EnableInactivityRelease turns on spec.md §4.3.4's optional idle release.
// timeout<=0 keeps the default 30s.
func (s *Service) EnableInactivityRelease(timeout time.Duration) {
	s.inactivityEnabled = true
	if timeout > 0 {
		s.inactivityTimeout = timeout
	}
}

// Submit enqueues a draw command. The UI layer is assumed to serialize its
// own submissions (spec.md §5); Submit blocks only if the queue is
// saturated, which would indicate the UI is far outpacing the driver.
func (s *Service) Submit(cmd Command) {
	s.commands <- cmd
}

// Status returns the channel of session-health notifications. The caller
// must drain it; it is buffered but not unbounded.
func (s *Service) Status() <-chan StatusEvent { return s.status }

func (s *Service) publishStatus(ev StatusEvent) {
	select {
	case s.status <- ev:
	default:
		s.log.Warn("presentation: status channel full, dropping event")
	}
}

// Run drives the combined DDP/presentation loop: drain at most one inbound
// CAN event and service keep-alive (via Engine.Tick), process whatever
// engine events that produced, check the inactivity timer, then dispatch
// at most one queued UI command — in that order, so pre-emption and
// keep-alives are never starved by a busy UI, per spec.md §5's fairness
// requirement. It returns only on ctx cancellation or a fatal engine error.
func (s *Service) Run(ctx context.Context, pollTimeout time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.engine.Tick(ctx, pollTimeout); err != nil {
			return err
		}
		s.drainEvents(ctx)
		s.checkInactivity(ctx)

		if s.engine.State() != ddp.StateReady {
			continue
		}
		select {
		case cmd := <-s.commands:
			if err := s.dispatch(ctx, cmd); err != nil {
				s.log.WithError(err).Warn("presentation: dropping command")
				s.publishStatus(StatusEvent{Kind: StatusDropped, Err: err})
			}
		default:
		}
	}
}

func (s *Service) drainEvents(ctx context.Context) {
	for {
		select {
		case ev := <-s.engine.Events():
			s.handleEngineEvent(ctx, ev)
		default:
			return
		}
	}
}

// awaitStatus pumps the engine (Tick + event drain) itself, rather than
// assuming something else is concurrently driving it, exactly as pkg/ddp's
// own waitFor pumps recv directly during the handshake: the cooperative
// single-loop model means whichever call is waiting owns the pumping for
// its own duration. Every event seen while waiting — not just a match —
// is still routed through handleEngineEvent, so a pre-emption can't be
// missed just because Claim is waiting on a specific status.
func (s *Service) awaitStatus(ctx context.Context, timeout time.Duration, match func([]byte) bool) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}
		poll := remaining
		if poll > 200*time.Millisecond {
			poll = 200 * time.Millisecond
		}
		if err := s.engine.Tick(ctx, poll); err != nil {
			return nil, false, err
		}
		for {
			select {
			case ev := <-s.engine.Events():
				s.handleEngineEvent(ctx, ev)
				if ev.Kind == ddp.EventPayloadReceived && match(ev.Payload) {
					return ev.Payload, true, nil
				}
			default:
				goto nextPoll
			}
		}
	nextPoll:
	}
}

// dispatch claims the screen on first use, then sends cmd.
func (s *Service) dispatch(ctx context.Context, cmd Command) error {
	if !s.screenActive && cmd.Kind != CommandCommit {
		if err := s.Claim(ctx); err != nil {
			return err
		}
	}
	return s.sendCommand(ctx, cmd)
}

// sendCommand encodes cmd to wire bytes, sends it, and updates the render
// caches. It is shared by normal dispatch and cache replay after resume.
func (s *Service) sendCommand(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandClear:
		// §4.3.1 lists the claim opcode as dual-purpose (claim or clear);
		// a clear frame at the full screen region blanks it.
		if err := s.engine.SendPayload(ctx, s.encodeFullClear()); err != nil {
			return err
		}
		s.cache.clear()
		s.lineCache.clear()

	case CommandClearArea:
		if err := s.engine.SendPayload(ctx, s.encodeClearArea(cmd)); err != nil {
			return err
		}

	case CommandDrawText:
		pre, suppressed := s.prepareTextDraw(cmd)
		for _, p := range pre {
			if err := s.engine.SendPayload(ctx, s.encodeClearArea(p)); err != nil {
				return err
			}
		}
		if suppressed {
			return nil
		}
		if err := s.engine.SendPayload(ctx, s.encodeText(cmd)); err != nil {
			return err
		}
		s.cache.put(cmd)

	case CommandDrawBitmap:
		if s.assets == nil {
			return fmt.Errorf("%w: no asset table configured", ErrUnknownIcon)
		}
		bmp, ok := s.assets.Lookup(cmd.IconName)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownIcon, cmd.IconName)
		}
		// Clip rectangle, one or more row-chunked data frames, then a
		// window reset — spec.md §8 scenario 6 / dis_service.py's
		// draw_bitmap.
		if err := s.engine.SendPayload(ctx, s.encodeClearArea(Command{X: cmd.X, Y: cmd.Y, W: bmp.Width, H: bmp.Height})); err != nil {
			return err
		}
		for _, chunk := range bitmapChunks(bmp.Width, bmp.Height, bmp.Pixels) {
			if err := s.engine.SendPayload(ctx, s.encodeBitmapChunk(chunk.y, chunk.data)); err != nil {
				return err
			}
		}
		if err := s.engine.SendPayload(ctx, s.encodeWindowReset()); err != nil {
			return err
		}
		s.cache.put(cmd)

	case CommandDrawLine:
		if err := s.engine.SendPayload(ctx, s.encodeLine(cmd)); err != nil {
			return err
		}
		s.cache.put(cmd)

	case CommandDrawRect:
		if err := s.engine.SendPayload(ctx, s.encodeRect(cmd)); err != nil {
			return err
		}
		s.cache.put(cmd)

	case CommandCommit:
		return s.engine.SendPayload(ctx, s.encodeCommit())

	default:
		return fmt.Errorf("%w: unrecognized command kind %d", ErrApplication, cmd.Kind)
	}

	s.lastDrawAt = time.Now()
	return nil
}
