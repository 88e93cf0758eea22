package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tetherview/tetherview/internal/app"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/config"
	"github.com/tetherview/tetherview/internal/device"
	"github.com/tetherview/tetherview/internal/gallery"
	"github.com/tetherview/tetherview/internal/hub"
	"github.com/tetherview/tetherview/internal/logging"
	"github.com/tetherview/tetherview/internal/preview"
	"github.com/tetherview/tetherview/internal/probe"
	"github.com/tetherview/tetherview/internal/relay"
)

func main() {
	configPath := flag.String("config", "tetherview.yaml", "Path to config file")
	deviceURL := flag.String("url", "", "Override device service URL")
	token := flag.String("token", "", "Override device auth token")
	relayAddr := flag.String("relay", "", "Serve the preview to browsers on this address (e.g. :8090)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *deviceURL != "" {
		cfg.Device.URL = *deviceURL
	}
	if *token != "" {
		cfg.Device.Token = *token
	}
	if *relayAddr != "" {
		cfg.Relay.Addr = *relayAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("starting", "device", cfg.Device.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.NewHTTPClient(cfg.Device.URL, cfg.Device.Token, cfg.Device.Timeout)
	h := hub.New(logger.WithPrefix("hub"))
	mirror := device.NewMirror(c, logger.WithPrefix("mirror"))
	controller := device.NewController(c, mirror, h, logger.WithPrefix("session"))
	poller := device.NewPoller(mirror, h, cfg.Device.StatusInterval, logger.WithPrefix("poller"))
	loop := preview.NewLoop(c, h, cfg.Preview, logger.WithPrefix("preview"))
	g := gallery.New(c, cfg.Gallery.NewTTL, logger.WithPrefix("gallery"))

	deps := app.Deps{
		Controller:  controller,
		Mirror:      mirror,
		Loop:        loop,
		Gallery:     g,
		Settings:    c,
		DownloadDir: cfg.Gallery.DownloadDir,
		Logger:      logger,
	}

	if cfg.Relay.Addr != "" {
		r := relay.New(cfg.Relay.MaxFPS, logger.WithPrefix("relay"))
		url, err := r.Start(ctx, cfg.Relay.Addr)
		if err != nil {
			return err
		}
		defer r.Close()
		deps.Relay = r
		deps.RelayURL = url
	}

	if cfg.Probe.Enabled {
		p := probe.New(cfg.DeviceHost(), cfg.Probe, logger.WithPrefix("probe"))
		deps.Probe = p
		go p.Run(ctx)
	}

	m := app.New(h, deps)
	defer m.Close()

	go poller.Run(ctx)

	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()

	loop.Stop()
	loop.Wait()
	logger.Info("stopped")
	return err
}
