package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/paste"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/recorder"
	"github.com/alkime/dictate/internal/server"
	"github.com/alkime/dictate/internal/tui"
	"github.com/alkime/dictate/pkg/channels"
	"github.com/alkime/dictate/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer   = 64
	levelHistory  = 64
	uiSendTimeout = 50 * time.Millisecond
)

// RunCmd is the default command: a push-to-talk terminal UI.
type RunCmd struct {
	CopyOnly bool `flag:"" help:"Copy the text to the clipboard without pasting"`
	Serve    bool `flag:"" help:"Also serve the status and history API"`
}

// Run executes the run command.
//
//nolint:funlen // wiring
func (c *RunCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	levels := uictl.NewHistory[float64](levelHistory)
	bridge := tui.NewBridge(levels)

	paster := paste.New(
		paste.WithCopyOnly(c.CopyOnly || a.cfg.CopyOnly),
		paste.WithLogger(a.logger))

	deps, err := a.dependencies(paster, bridge, bridge)
	if err != nil {
		return err
	}

	// Pipeline events fan out to the UI and, when serving, the status API. The
	// UI may hold up a send briefly; the status tracker only takes what fits.
	events := channels.NewBroadcaster[pipeline.Event]()
	uiEvents := make(chan pipeline.Event, eventBuffer)
	if err := events.SubscribeWithTimeout(uiEvents, uiSendTimeout); err != nil {
		return err
	}

	status := server.NewStatusTracker()
	statusEvents := make(chan pipeline.Event, eventBuffer)
	if c.Serve {
		if err := events.Subscribe(statusEvents); err != nil {
			return err
		}
	}

	eventsC, err := events.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event broadcast: %w", err)
	}

	orch := pipeline.New(deps, a.cfg.Settings,
		pipeline.WithLogger(a.logger),
		pipeline.WithEvents(eventsC))

	capturer := audio.NewCapturer(audio.NewDevice(audio.DefaultDeviceConfig()), a.sessions,
		audio.WithLevelFunc(orch.RawLevel),
		audio.WithCaptureLogger(a.logger))
	if err := capturer.Open(ctx); err != nil {
		return err
	}

	knob := recorder.New(ctx, capturer, orch,
		recorder.WithNotifier(bridge),
		recorder.WithLogger(a.logger))

	// A failing service ends the UI too.
	g, gctx := errgroup.WithContext(ctx)

	p := tea.NewProgram(
		tui.New(tui.Controls{Recording: knob, Levels: levels}, tui.WithCancel(cancel)),
		tea.WithContext(gctx))
	bridge.Attach(p.Send)

	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error {
		bridge.Watch(gctx, uiEvents)
		return nil
	})

	if c.Serve {
		srv := server.New(a.cfg, a.logger, a.store, status)
		g.Go(func() error {
			status.Watch(gctx, statusEvents)
			return nil
		})
		g.Go(func() error { return srv.Run(gctx) })
	}

	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	cancel()
	capturer.Close(context.Background())

	err = g.Wait()

	// Let in-flight transcriptions and history writes land.
	orch.Wait()
	events.Wait()

	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}

	return err
}
