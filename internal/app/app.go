// Package app runs the monitor: it pumps the pointing device, applies UI
// commands and renders one frame per tick.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/rawpointer/internal/config"
	"github.com/seagrayinc/rawpointer/internal/panel"
	"github.com/seagrayinc/rawpointer/pkg/pointer"
	"github.com/seagrayinc/rawpointer/pkg/pointing"
)

// Command is a user request collected by a Renderer.
type Command int

const (
	CommandReset Command = iota + 1
	CommandQuit
)

func (c Command) String() string {
	switch c {
	case CommandReset:
		return "reset"
	case CommandQuit:
		return "quit"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Phase is the orchestrator's lifecycle state.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseResetting
	PhaseTerminating
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseResetting:
		return "resetting"
	case PhaseTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Bridge is the device side of the loop. *pointing.Device implements it.
type Bridge interface {
	Idle(timeout time.Duration) int
	Close() error
}

// Frame is everything a Renderer needs to draw one tick.
type Frame struct {
	Width, Height int
	Snapshot      pointer.Snapshot
	Lines         []string
}

// Renderer draws frames and reports user commands.
type Renderer interface {
	// Commands returns the commands received since the previous call. It
	// must not block.
	Commands() []Command
	Render(Frame) error
}

var errMissing = errors.New("missing collaborator")

// Options wires an Orchestrator.
type Options struct {
	State      *pointer.State
	Bridge     Bridge
	Renderer   Renderer
	Descriptor pointing.Descriptor
	Config     config.Config
	Logger     *slog.Logger
}

// Orchestrator owns the frame loop.
type Orchestrator struct {
	state    *pointer.State
	bridge   Bridge
	renderer Renderer
	desc     pointing.Descriptor
	cfg      config.Config
	log      *slog.Logger

	idleTimeout   time.Duration
	frameInterval time.Duration

	mu    sync.Mutex
	phase Phase

	closeOnce sync.Once
}

func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.State == nil:
		return nil, fmt.Errorf("%w: state", errMissing)
	case opts.Bridge == nil:
		return nil, fmt.Errorf("%w: bridge", errMissing)
	case opts.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", errMissing)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	o := &Orchestrator{
		state:         opts.State,
		bridge:        opts.Bridge,
		renderer:      opts.Renderer,
		desc:          opts.Descriptor,
		cfg:           opts.Config,
		log:           log,
		idleTimeout:   time.Millisecond,
		frameInterval: time.Second / 60,
	}
	if opts.Config.Device.IdleMS > 0 {
		o.idleTimeout = opts.Config.IdleTimeout()
	}
	if opts.Config.Display.FrameRate > 0 {
		o.frameInterval = opts.Config.FrameInterval()
	}
	return o, nil
}

// Phase reports the current lifecycle state.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// Run drives the loop until a quit command, ctx cancellation or a render
// failure. The bridge is closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.closeBridge()

	ticker := time.NewTicker(o.frameInterval)
	defer ticker.Stop()

	width, height := o.state.Bounds()
	for {
		o.bridge.Idle(o.idleTimeout)

		for _, cmd := range o.renderer.Commands() {
			o.apply(cmd)
		}
		if ctx.Err() != nil {
			o.setPhase(PhaseTerminating)
		}
		if o.Phase() == PhaseTerminating {
			return nil
		}

		snap := o.state.Snapshot()
		frame := Frame{
			Width:    width,
			Height:   height,
			Snapshot: snap,
			Lines:    panel.Lines(o.desc, snap, o.cfg),
		}
		if err := o.renderer.Render(frame); err != nil {
			o.setPhase(PhaseTerminating)
			return fmt.Errorf("render frame: %w", err)
		}

		select {
		case <-ctx.Done():
			o.setPhase(PhaseTerminating)
			return nil
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) apply(cmd Command) {
	if o.Phase() == PhaseTerminating {
		return
	}
	switch cmd {
	case CommandReset:
		// Held across the reset so Phase never reports resetting.
		o.mu.Lock()
		o.phase = PhaseResetting
		o.state.Reset()
		o.phase = PhaseRunning
		o.mu.Unlock()
		o.log.Debug("pointer reset")
	case CommandQuit:
		o.setPhase(PhaseTerminating)
		o.log.Debug("quit requested")
	default:
		o.log.Warn("ignoring unknown command", slog.Any("command", cmd))
	}
}

func (o *Orchestrator) closeBridge() {
	o.closeOnce.Do(func() {
		if err := o.bridge.Close(); err != nil {
			o.log.Warn("closing device failed", slog.Any("error", err))
		}
	})
}
