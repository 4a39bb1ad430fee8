// Package paste delivers finished text into the focused application through
// the system clipboard.
package paste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
)

// DefaultSettle is the pause between the clipboard write and the keystroke.
const DefaultSettle = 50 * time.Millisecond

// ErrNoKeystroke is returned when no paste keystroke tool is known for the
// platform.
var ErrNoKeystroke = errors.New("no paste keystroke available on this platform")

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// Injector implements pipeline.Paster.
type Injector struct {
	write     func(string) error
	run       Runner
	keystroke []string
	settle    time.Duration
	copyOnly  bool
	logger    *slog.Logger
}

// Option customises an Injector.
type Option func(*Injector)

// WithCopyOnly stops after the clipboard write.
func WithCopyOnly(copyOnly bool) Option {
	return func(i *Injector) { i.copyOnly = copyOnly }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(i *Injector) { i.write = write }
}

// WithRunner replaces command execution.
func WithRunner(run Runner) Option {
	return func(i *Injector) { i.run = run }
}

// WithKeystroke sets the command that synthesises the paste shortcut.
func WithKeystroke(cmd ...string) Option {
	return func(i *Injector) { i.keystroke = cmd }
}

// WithSettle changes the pause before the keystroke.
func WithSettle(d time.Duration) Option {
	return func(i *Injector) { i.settle = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Injector) { i.logger = logger }
}

// New builds an Injector for the running platform.
func New(opts ...Option) *Injector {
	i := &Injector{
		write:     clipboard.WriteAll,
		run:       runCommand,
		keystroke: Keystroke(runtime.GOOS, os.Getenv),
		settle:    DefaultSettle,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Paste copies text and, unless copy-only, presses the paste shortcut.
func (i *Injector) Paste(ctx context.Context, text string) error {
	if err := i.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	if i.copyOnly {
		i.logger.Debug("Copied transcript to clipboard", "chars", len(text))
		return nil
	}

	if len(i.keystroke) == 0 {
		return ErrNoKeystroke
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(i.settle):
	}

	if err := i.run(ctx, i.keystroke[0], i.keystroke[1:]...); err != nil {
		return fmt.Errorf("failed to send paste keystroke: %w", err)
	}

	i.logger.Debug("Pasted transcript", "chars", len(text), "tool", i.keystroke[0])

	return nil
}

// Keystroke picks the paste shortcut command for goos. On Linux a Wayland
// session uses wtype, anything else xdotool.
func Keystroke(goos string, getenv func(string) string) []string {
	switch goos {
	case "darwin":
		return []string{"osascript", "-e", `tell application "System Events" to keystroke "v" using command down`}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command",
			`(New-Object -ComObject WScript.Shell).SendKeys('^v')`}
	case "linux", "freebsd", "openbsd", "netbsd":
		if getenv("WAYLAND_DISPLAY") != "" {
			return []string{"wtype", "-M", "ctrl", "v", "-m", "ctrl"}
		}
		return []string{"xdotool", "key", "--clearmodifiers", "ctrl+v"}
	default:
		return nil
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, out)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
