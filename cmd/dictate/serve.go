package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/server"
)

// ServeCmd serves the history API without recording.
type ServeCmd struct{}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("Starting dictate server",
		"env", a.cfg.Env,
		"port", a.cfg.Port,
		"data", a.paths.Root,
	)

	return server.New(a.cfg, a.logger, a.store, server.NewStatusTracker()).Run(ctx)
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(audio.DefaultDeviceConfig())
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return err
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formats", dev.Formats,
		)
	}

	return nil
}
