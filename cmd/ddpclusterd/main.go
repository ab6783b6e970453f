// Command ddpclusterd drives a DDP-speaking instrument cluster over CAN:
// it negotiates the session, then forwards drawing commands submitted
// over its UI endpoint, exactly as spec.md's external interfaces describe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korni92/ddpclusterd/pkg/assets"
	can "github.com/korni92/ddpclusterd/pkg/can"
	_ "github.com/korni92/ddpclusterd/pkg/can/all"
	"github.com/korni92/ddpclusterd/pkg/config"
	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
	"github.com/korni92/ddpclusterd/pkg/presentation"
	log "github.com/sirupsen/logrus"
)

const pollTimeout = 20 * time.Millisecond

func main() {
	configPath := flag.String("c", "ddpclusterd.ini", "configuration file path")
	assetsPath := flag.String("assets", "", "bitmap asset manifest path (optional)")
	verbose := flag.Bool("v", false, "debug-level logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("ddpclusterd: loading configuration")
	}

	var assetTable presentation.AssetLookup
	if *assetsPath != "" {
		table, err := assets.Load(*assetsPath)
		if err != nil {
			log.WithError(err).Fatal("ddpclusterd: loading asset manifest")
		}
		assetTable = table
	}

	bus, err := can.NewBus(cfg.CAN.Interface, cfg.CAN.Channel, ddp.CanIDRecv)
	if err != nil {
		log.WithError(err).Fatalf("ddpclusterd: unsupported CAN backend %q", cfg.CAN.Interface)
	}
	if err := bus.Connect(); err != nil {
		log.WithError(err).Fatal("ddpclusterd: connecting to CAN bus")
	}
	defer bus.Disconnect()

	engineLog := log.WithField("component", "ddp")
	engine := ddp.NewEngine(bus, engineLog)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Open(ctx); err != nil {
		log.WithError(err).Fatal("ddpclusterd: opening DDP session")
	}
	log.WithFields(log.Fields{"mode": engine.Mode(), "region": fmt.Sprintf("0x%02X", engine.Region())}).
		Info("ddpclusterd: session established")

	svc := presentation.NewService(engine, assetTable, log.WithField("component", "presentation"))
	if cfg.Presentation.InactivityReleaseEnabled {
		svc.EnableInactivityRelease(cfg.Presentation.InactivityTimeout)
	}

	server, err := newCommandServer(cfg.UI.Address, svc)
	if err != nil {
		log.WithError(err).Fatal("ddpclusterd: starting UI endpoint")
	}
	go server.Serve()
	defer server.Close()

	if err := svc.Run(ctx, pollTimeout); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("ddpclusterd: session loop exited")
	}
	_ = engine.Close(context.Background())
}
