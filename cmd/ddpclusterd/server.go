package main

import (
	"bufio"
	"encoding/json"
	"net"

	"github.com/korni92/ddpclusterd/pkg/presentation"
	log "github.com/sirupsen/logrus"
)

// wireCommand is the language-neutral, newline-delimited JSON record
// spec.md §6's UI draw-command stream arrives as over the configured
// command-stream endpoint. One connected client at a time; fields beyond
// what a given Type uses are ignored.
type wireCommand struct {
	Type     string `json:"type"`
	X        uint16 `json:"x,omitempty"`
	Y        uint16 `json:"y,omitempty"`
	W        uint16 `json:"w,omitempty"`
	H        uint16 `json:"h,omitempty"`
	Text     string `json:"text,omitempty"`
	Flags    byte   `json:"flags,omitempty"`
	Font     byte   `json:"font,omitempty"`
	Color    byte   `json:"color,omitempty"`
	IconName       string `json:"icon_name,omitempty"`
	Length         uint16 `json:"length,omitempty"`
	Vertical       bool   `json:"vertical,omitempty"`
	OpcodeOverride byte   `json:"opcode_override,omitempty"`
}

// wireStatus is the corresponding record the server writes back for every
// Service.Status() event, so a disconnected UI client can tell the
// difference between a dropped draw and a lost session.
type wireStatus struct {
	Kind string `json:"kind"`
	Err  string `json:"err,omitempty"`
}

var commandKinds = map[string]presentation.CommandKind{
	"clear":       presentation.CommandClear,
	"clear_area":  presentation.CommandClearArea,
	"draw_text":   presentation.CommandDrawText,
	"draw_bitmap": presentation.CommandDrawBitmap,
	"draw_line":   presentation.CommandDrawLine,
	"draw_rect":   presentation.CommandDrawRect,
	"commit":      presentation.CommandCommit,
}

var statusKinds = map[presentation.StatusEventKind]string{
	presentation.StatusReady:        "ready",
	presentation.StatusPaused:       "paused",
	presentation.StatusDisconnected: "disconnected",
	presentation.StatusDropped:      "dropped",
}

// commandServer listens for one UI client connection at a time and
// shuttles its command stream into svc.Submit, writing svc.Status()
// events back out.
type commandServer struct {
	listener net.Listener
	svc      *presentation.Service
}

func newCommandServer(address string, svc *presentation.Service) (*commandServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &commandServer{listener: listener, svc: svc}, nil
}

func (s *commandServer) Close() error { return s.listener.Close() }

// Serve accepts connections one at a time for the lifetime of the
// listener; a closed listener ends Serve cleanly.
func (s *commandServer) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.handle(conn)
	}
}

func (s *commandServer) handle(conn net.Conn) {
	defer conn.Close()

	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		enc := json.NewEncoder(conn)
		for ev := range s.svc.Status() {
			msg := wireStatus{Kind: statusKinds[ev.Kind]}
			if ev.Err != nil {
				msg.Err = ev.Err.Error()
			}
			if err := enc.Encode(msg); err != nil {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var wc wireCommand
		if err := json.Unmarshal(scanner.Bytes(), &wc); err != nil {
			log.WithError(err).Warn("ddpclusterd: malformed command record, dropping connection")
			return
		}
		kind, ok := commandKinds[wc.Type]
		if !ok {
			log.WithField("type", wc.Type).Warn("ddpclusterd: unrecognized command type, dropping connection")
			return
		}
		s.svc.Submit(presentation.Command{
			Kind:           kind,
			X:              wc.X,
			Y:              wc.Y,
			W:              wc.W,
			H:              wc.H,
			Text:           wc.Text,
			Flags:          wc.Flags,
			Font:           wc.Font,
			Color:          wc.Color,
			IconName:       wc.IconName,
			Length:         wc.Length,
			Vertical:       wc.Vertical,
			OpcodeOverride: wc.OpcodeOverride,
		})
	}
}
