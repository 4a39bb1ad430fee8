package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the dictate command structure.
type CLI struct {
	// Default command (runs when no subcommand given)
	Run RunCmd `cmd:"" default:"withargs" help:"Push-to-talk dictation in the terminal"`

	Transcribe TranscribeCmd `cmd:"" help:"Run an audio file through the dictation pipeline"`
	Devices    DevicesCmd    `cmd:"" help:"List available audio devices"`
	Serve      ServeCmd      `cmd:"" help:"Serve the status and history API"`
	Config     ConfigCmd     `cmd:"" help:"Manage configuration"`
	History    HistoryCmd    `cmd:"" help:"Browse dictation history"`
	Vocab      VocabCmd      `cmd:"" help:"Manage vocabulary hints for transcription"`
	Functions  FunctionsCmd  `cmd:"" help:"Manage AI functions"`
}

func main() {
	// Commands replace this once configuration is loaded.
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("dictate"),
		kong.Description("Speak, transcribe, clean up and paste."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
