package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctxguard-project/ctxguard/internal/api"
	"github.com/ctxguard-project/ctxguard/internal/collect"
	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
	"github.com/ctxguard-project/ctxguard/internal/respond"
)

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	simulate := fs.Bool("simulate", true, "use simulated signal sources")
	seed := fs.Int64("seed", 0, "simulator seed (0: from clock)")
	fs.Parse(args)

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := core.NewLogger(cfg)

	store, err := keystroke.OpenBaselineStore(cfg.Keystroke.StorePath)
	if err != nil {
		logger.Warn().Err(err).Msg("baseline store unavailable, detector runs in-memory")
		store = nil
	}
	detector := keystroke.NewDetector(keystroke.Config{
		HistoryCap:         cfg.Keystroke.HistoryCap,
		WindowSize:         cfg.Keystroke.WindowSize,
		MinBaselineSamples: cfg.Keystroke.MinBaselineSamples,
		Sensitivity:        cfg.Keystroke.Sensitivity,
		LearningRate:       cfg.Keystroke.LearningRate,
		PersistEvery:       cfg.Keystroke.PersistEvery,
	}, store, logger)

	sources := core.Sources{
		Time:     collect.TimeOfDay(cfg.Hours, nil),
		Keyboard: collect.Keyboard(detector),
	}
	if *simulate {
		sim := collect.NewSimulator(cfg.Location, *seed)
		sources.Location = collect.Location(cfg.Location, sim.FixSource())
		sources.Network = collect.Network(sim.NetworkSource())
		sources.Device = collect.Device(sim.DeviceSource())
		sources.App = collect.AppUsage(sim.AppSource())
	}

	engine := core.NewEngine(cfg, sources, logger)

	var lock respond.LockFunc
	if cfg.Respond.LockAtCritical {
		lock = func(ctx context.Context, snapshot *core.ContextData) error {
			// Platform lock hooks are wired by the host build; logging is
			// the portable fallback.
			logger.Warn().Str("snapshot_id", snapshot.ID).Msg("device lock requested")
			return nil
		}
	}
	engine.AddListener(respond.NewResponder(cfg.Respond, lock, logger))

	var bus *core.EventBus
	if cfg.Bus.Enabled {
		bus, err = core.NewEventBus(&cfg.Bus, logger)
		if err != nil {
			logger.Error().Err(err).Msg("event bus unavailable, continuing without it")
		} else {
			engine.SetBus(bus)
		}
	}

	var statusAPI *api.Server
	if cfg.API.Enabled {
		statusAPI = api.NewServer(engine, detector, cfg, logger)
		statusAPI.Start()
	}

	engine.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	engine.Stop()
	if statusAPI != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statusAPI.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("status API shutdown failed")
		}
	}
	if bus != nil {
		if err := bus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}
	if store != nil {
		store.Close()
	}
}
