// Package config loads the driver's INI configuration file, grounded on
// the teacher's gopkg.in/ini.v1 EDS-parsing pattern (pkg/od/parser_v1.go),
// repurposed here for a small structured settings file instead of a CANopen
// object dictionary.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Config is the driver's full runtime configuration, per spec.md §6's
// "Configuration (consumed at init)" external interface.
type Config struct {
	CAN          CANConfig
	UI           UIConfig
	Presentation PresentationConfig
}

// CANConfig selects the bus backend and its addressing.
type CANConfig struct {
	Interface string // backend name registered with pkg/can, e.g. "socketcan-async", "socketcanraw", "virtual"
	Channel   string // e.g. "can0" or a broker "host:port"
	Bitrate   int
}

// UIConfig is where the command-stream endpoint the UI layer connects to
// is reachable.
type UIConfig struct {
	Address string
}

// PresentationConfig toggles presentation-layer optional behavior.
type PresentationConfig struct {
	InactivityReleaseEnabled bool
	InactivityTimeout        time.Duration
}

func defaults() Config {
	return Config{
		CAN: CANConfig{
			Interface: "socketcan-async",
			Channel:   "can0",
			Bitrate:   100_000,
		},
		UI: UIConfig{
			Address: "localhost:7878",
		},
		Presentation: PresentationConfig{
			InactivityReleaseEnabled: false,
			InactivityTimeout:        30 * time.Second,
		},
	}
}

// Load reads path and overlays it onto the defaults; any section or key
// missing from the file keeps its default value.
func Load(path string) (Config, error) {
	cfg := defaults()
	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: loading %s: %w", path, err)
	}

	if s, err := file.GetSection("can"); err == nil {
		if v := s.Key("interface").Value(); v != "" {
			cfg.CAN.Interface = v
		}
		if v := s.Key("channel").Value(); v != "" {
			cfg.CAN.Channel = v
		}
		if v, err := s.Key("bitrate").Int(); err == nil && v > 0 {
			cfg.CAN.Bitrate = v
		}
	}

	if s, err := file.GetSection("ui"); err == nil {
		if v := s.Key("address").Value(); v != "" {
			cfg.UI.Address = v
		}
	}

	if s, err := file.GetSection("presentation"); err == nil {
		if v, err := s.Key("inactivity_release").Bool(); err == nil {
			cfg.Presentation.InactivityReleaseEnabled = v
		}
		if v, err := s.Key("inactivity_timeout_seconds").Int(); err == nil && v > 0 {
			cfg.Presentation.InactivityTimeout = time.Duration(v) * time.Second
		}
	}

	return cfg, nil
}
