package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alkime/dictate/internal/paste"
	"github.com/alkime/dictate/internal/pipeline"
)

// TranscribeCmd runs an existing audio file through the same pipeline as a
// live recording: transcription, rules, AI function and history.
type TranscribeCmd struct {
	File     string `arg:"" type:"existingfile" help:"Audio file (mp3, wav, m4a, ...)"`
	Model    string `flag:"" optional:"" help:"Transcription model id (cloud-openai, cloud-groq)"`
	Language string `flag:"" optional:"" help:"Spoken language, or auto"`
	Function string `flag:"" optional:"" help:"AI function to apply"`
	Paste    bool   `flag:"" help:"Paste the result instead of printing it"`
}

// Run executes the transcribe command.
func (c *TranscribeCmd) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Model != "" {
		a.cfg.STTModel = c.Model
	}
	if c.Language != "" {
		a.cfg.Language = c.Language
	}
	if c.Function != "" {
		a.cfg.AIFunction = c.Function
	}

	sess, err := a.sessions.RegisterFile(c.File)
	if err != nil {
		return err
	}

	var paster pipeline.Paster = printer{}
	if c.Paste {
		paster = paste.New(paste.WithCopyOnly(a.cfg.CopyOnly), paste.WithLogger(a.logger))
	}

	notes := &notes{}
	deps, err := a.dependencies(paster, nil, notes)
	if err != nil {
		return err
	}

	events := make(chan pipeline.Event, eventBuffer)
	orch := pipeline.New(deps, a.cfg.Settings,
		pipeline.WithLogger(a.logger),
		pipeline.WithEvents(events))

	runDone := make(chan error, 1)
	go func() { runDone <- orch.Run(ctx) }()

	for _, step := range []func() error{
		orch.WillStart,
		orch.CaptureStarted,
		func() error { return orch.CaptureStopped(pipeline.CaptureResult{SessionHandle: sess.ID}) },
	} {
		if err := step(); err != nil {
			return err
		}
	}

	final := waitComplete(ctx, events, orch.CurrentGeneration())

	cancel()
	<-runDone
	orch.Wait()

	for _, n := range notes.all() {
		fmt.Fprintln(os.Stderr, n.Message)
	}

	if final.Err != "" {
		return fmt.Errorf("transcription failed: %s", final.Err)
	}
	if strings.TrimSpace(final.Text) == "" {
		fmt.Fprintln(os.Stderr, "No speech detected.")
	}

	return nil
}

func waitComplete(ctx context.Context, events <-chan pipeline.Event, gen uint64) pipeline.Event {
	for {
		select {
		case <-ctx.Done():
			return pipeline.Event{Err: ctx.Err().Error()}
		case ev := <-events:
			if !ev.IsStateChange() || ev.Generation != gen {
				continue
			}
			if ev.State == pipeline.StateComplete || ev.State == pipeline.StateIdle {
				return ev
			}
		}
	}
}

// printer delivers text to stdout.
type printer struct{}

func (printer) Paste(_ context.Context, text string) error {
	_, err := fmt.Println(text)
	return err
}

// notes collects notifications for printing once the cycle is over.
type notes struct {
	mu sync.Mutex
	ns []pipeline.Notification
}

func (n *notes) Notify(note pipeline.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.ns = append(n.ns, note)
}

func (n *notes) all() []pipeline.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]pipeline.Notification(nil), n.ns...)
}
