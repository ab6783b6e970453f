// Package all registers every built-in CAN backend by side effect. Import
// it blank from a binary that wants every backend name available through
// can.NewBus without listing each one. The real-hardware SocketCAN backend
// is linux-only and registered from all_linux.go.
package all

import (
	_ "github.com/korni92/ddpclusterd/pkg/can/socketcan"
	_ "github.com/korni92/ddpclusterd/pkg/can/virtual"
)
