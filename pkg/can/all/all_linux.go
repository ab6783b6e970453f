//go:build linux

package all

import (
	_ "github.com/korni92/ddpclusterd/pkg/can/socketcanraw"
)
