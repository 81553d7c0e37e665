package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seagrayinc/rawpointer/internal/app"
	"github.com/seagrayinc/rawpointer/internal/config"
	"github.com/seagrayinc/rawpointer/internal/logging"
	"github.com/seagrayinc/rawpointer/internal/term"
	"github.com/seagrayinc/rawpointer/pkg/pointer"
	"github.com/seagrayinc/rawpointer/pkg/pointing"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("rawpointer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultFileName, "path to the JSON config file")
	uri := fs.String("uri", "", "device URI, overrides device.uri (usb:VVVV:PPPP, hidapi:, any:, evdev:, mock:)")
	headless := fs.Bool("headless", false, "log pointer state instead of drawing in the terminal")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := fs.String("log-format", "text", "log format: text or json")
	logFile := fs.String("log-file", "", "write logs here while the terminal UI is active")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	log, err := logging.New(logging.Options{Level: *logLevel, Format: *logFormat, Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "rawpointer: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGHUP,
	)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn("using default configuration for rejected settings", slog.Any("error", err))
	} else {
		log.Info("loaded configuration", slog.String("source", cfg.Source))
	}
	if *uri != "" {
		cfg.Device.URI = *uri
	}

	// While the terminal UI owns the screen, runtime logs go to -log-file.
	runLog := log
	if !*headless {
		if runLog, err = uiLogger(*logFile, *logLevel, *logFormat); err != nil {
			log.Error("could not open log file", slog.Any("error", err))
			return 1
		}
	}

	dev, err := pointing.Open(ctx, cfg.Device.URI, pointing.WithLogger(runLog))
	if err != nil {
		log.Error("could not open pointing device",
			slog.String("uri", cfg.Device.URI),
			slog.String("description", cfg.Device.Description),
			slog.Any("error", err))
		log.Error("check device permissions, or try -uri any:, -uri evdev: or -uri mock:")
		return 1
	}

	desc := dev.Descriptor()
	log.Info("opened pointing device",
		slog.String("uri", desc.URI),
		slog.String("vendor", desc.Vendor),
		slog.String("product", desc.Product),
		slog.Float64("cpi", desc.Resolution),
		slog.Float64("hz", desc.UpdateFrequency))

	state := pointer.New(cfg.Display.Width, cfg.Display.Height)
	dev.SetCallback(state.Update)

	var (
		renderer app.Renderer
		screen   *term.Renderer
	)
	if *headless {
		renderer = app.NewLogRenderer(log, time.Second)
	} else {
		screen, err = term.New(cfg.Display)
		if err != nil {
			dev.Close()
			log.Error("could not start terminal", slog.Any("error", err))
			return 1
		}
		defer screen.Close()
		renderer = screen
	}

	orch, err := app.New(app.Options{
		State:      state,
		Bridge:     dev,
		Renderer:   renderer,
		Descriptor: desc,
		Config:     cfg,
		Logger:     runLog,
	})
	if err != nil {
		dev.Close()
		log.Error("could not start", slog.Any("error", err))
		return 1
	}

	err = orch.Run(ctx)
	if screen != nil {
		screen.Close()
	}
	if err != nil {
		log.Error("monitor stopped", slog.Any("error", err))
		return 1
	}
	if err := dev.Err(); err != nil {
		log.Warn("device stopped reporting", slog.Any("error", err))
	}

	snap := state.Snapshot()
	log.Info("exiting",
		slog.Uint64("events", snap.EventCount),
		slog.Int64("total_x", snap.TotalX),
		slog.Int64("total_y", snap.TotalY))
	return 0
}

func uiLogger(path, level, format string) (*slog.Logger, error) {
	if path == "" {
		return logging.Discard(), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	// Left open for the life of the process.
	return logging.New(logging.Options{Level: level, Format: format, Output: f})
}
