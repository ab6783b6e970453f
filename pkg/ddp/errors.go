package ddp

import "errors"

// Error kinds per the DDP error handling design: transport, ack-timeout and
// handshake errors are all handled internally by the state machine (they
// escalate to DISCONNECTED) and are never returned to a caller blocked in
// SendPayload past the point the session drops; Protocol errors are logged
// and discarded without a state change.
var (
	ErrTransport  = errors.New("ddp: CAN transport failure")
	ErrAckTimeout = errors.New("ddp: end frame unacknowledged after breathing and resync")
	ErrHandshake  = errors.New("ddp: unexpected payload during session handshake")
	ErrProtocol   = errors.New("ddp: unparseable frame")
	ErrNotReady   = errors.New("ddp: session is not READY")
	ErrClosed     = errors.New("ddp: session is DISCONNECTED")
)
