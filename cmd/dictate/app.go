package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/alkime/dictate/internal/aifunc"
	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/config"
	"github.com/alkime/dictate/internal/history"
	"github.com/alkime/dictate/internal/llm"
	"github.com/alkime/dictate/internal/logger"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/rules"
	"github.com/alkime/dictate/internal/stt"
	"github.com/alkime/dictate/internal/workdir"
)

// app holds what every command that touches the data directory needs.
type app struct {
	cfg      *config.Config
	paths    workdir.Paths
	logger   *slog.Logger
	logFile  io.Closer
	store    *history.Store
	sessions *audio.SessionStore
}

// setup loads configuration, prepares the data directory and opens the
// history store. With logToFile, logs go to the data directory unless
// LOG_FILE says otherwise, leaving stdout to the terminal UI.
func setup(logToFile bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	paths, err := workdir.Prep(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare working directory: %w", err)
	}

	if logToFile && cfg.LogFile == "" {
		cfg.LogFile = paths.Log
	}

	log, logFile, err := logger.SetupLogger(cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := audio.NewSessionStore(paths.Sessions)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}

	store, err := history.Open(paths.DB,
		history.WithSessions(sessions),
		history.WithLogger(log))
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}

	log.Debug("Data directory ready", "root", paths.Root)

	return &app{
		cfg:      cfg,
		paths:    paths,
		logger:   log,
		logFile:  logFile,
		store:    store,
		sessions: sessions,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close history store", "error", err)
	}
	_ = a.logFile.Close()
}

func (a *app) functions() *aifunc.Service {
	return aifunc.NewService(a.store,
		aifunc.WithBaseURL(llm.Ollama, a.cfg.OllamaBaseURL),
		aifunc.WithLogger(a.logger))
}

// dependencies wires the pipeline collaborators. Indicator and notifier come
// from the caller's front end.
func (a *app) dependencies(
	paster pipeline.Paster,
	indicator pipeline.Indicator,
	notifier pipeline.Notifier,
) (pipeline.Dependencies, error) {
	a.cfg.PreloadKeys()

	custom, err := rules.LoadFile(a.cfg.RulesFile, rules.DefaultPassLimit)
	if err != nil {
		return pipeline.Dependencies{}, err
	}

	transcriber := stt.NewService(a.sessions,
		stt.WithVocabulary(a.store),
		stt.WithLogger(a.logger))

	return pipeline.Dependencies{
		Transcriber: transcriber,
		Rules:       rules.NewSet(custom, a.logger),
		AI:          a.functions(),
		Paster:      paster,
		Persister:   a.store,
		Indicator:   indicator,
		Notifier:    notifier,
	}, nil
}
