// Package term renders the monitor in a terminal with tcell.
package term

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/seagrayinc/rawpointer/internal/app"
	"github.com/seagrayinc/rawpointer/internal/config"
)

// Screen is the part of tcell.Screen the renderer uses.
type Screen interface {
	Init() error
	Fini()
	Size() (int, int)
	SetStyle(style tcell.Style)
	HideCursor()
	Clear()
	Show()
	Sync()
	PollEvent() tcell.Event
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
}

// ErrClosed is returned by Render once the screen has shut down.
var ErrClosed = errors.New("terminal closed")

const (
	ringRune   = '·'
	hRune      = '─'
	vRune      = '│'
	centerRune = '●'
)

// Renderer draws frames on a Screen and turns key presses into commands.
type Renderer struct {
	screen Screen
	target int

	bg, fg, text tcell.Style

	mu      sync.Mutex
	pending []app.Command
	resized bool

	done      chan struct{}
	closeOnce sync.Once
}

// New opens the controlling terminal.
func New(cfg config.DisplayConfig) (*Renderer, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return NewWithScreen(s, cfg)
}

// NewWithScreen initializes s and starts reading its events.
func NewWithScreen(s Screen, cfg config.DisplayConfig) (*Renderer, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}

	bg := tcell.StyleDefault.Background(rgb(cfg.BackgroundColor))
	r := &Renderer{
		screen: s,
		target: cfg.TargetSize,
		bg:     bg,
		fg:     bg.Foreground(rgb(cfg.TargetColor)),
		text:   bg.Foreground(rgb(cfg.TextColor)),
		done:   make(chan struct{}),
	}
	s.SetStyle(bg)
	s.HideCursor()
	s.Clear()

	go r.poll()
	return r, nil
}

func rgb(c config.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c[0]), int32(c[1]), int32(c[2]))
}

func (r *Renderer) poll() {
	defer close(r.done)
	for {
		ev := r.screen.PollEvent()
		if ev == nil {
			return
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			if cmd, ok := keyCommand(ev); ok {
				r.mu.Lock()
				r.pending = append(r.pending, cmd)
				r.mu.Unlock()
			}
		case *tcell.EventResize:
			r.mu.Lock()
			r.resized = true
			r.mu.Unlock()
		}
	}
}

func keyCommand(ev *tcell.EventKey) (app.Command, bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return app.CommandQuit, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'r', 'R':
			return app.CommandReset, true
		case 'q', 'Q':
			return app.CommandQuit, true
		}
	}
	return 0, false
}

func (r *Renderer) Commands() []app.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmds := r.pending
	r.pending = nil
	return cmds
}

// Render draws the crosshair scaled from the frame's bounds to the terminal
// and the panel text over it.
func (r *Renderer) Render(f app.Frame) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	cols, rows := r.screen.Size()
	r.screen.Clear()
	if cols > 0 && rows > 0 {
		r.drawTarget(f, cols, rows)
		for i, line := range f.Lines {
			r.drawText(1, i, line)
		}
	}

	r.mu.Lock()
	resized := r.resized
	r.resized = false
	r.mu.Unlock()
	if resized {
		r.screen.Sync()
	} else {
		r.screen.Show()
	}
	return nil
}

func (r *Renderer) drawTarget(f app.Frame, cols, rows int) {
	cx := scale(f.Snapshot.X, f.Width, cols-1)
	cy := scale(f.Snapshot.Y, f.Height, rows-1)
	ax := max(1, scale(r.target, f.Width, cols-1))
	ay := max(1, scale(r.target, f.Height, rows-1))

	steps := 4 * (ax + ay)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(math.Round(float64(ax)*math.Cos(a)))
		y := cy + int(math.Round(float64(ay)*math.Sin(a)))
		r.set(x, y, ringRune, cols, rows)
	}
	for x := cx - ax; x <= cx+ax; x++ {
		r.set(x, cy, hRune, cols, rows)
	}
	for y := cy - ay; y <= cy+ay; y++ {
		r.set(cx, y, vRune, cols, rows)
	}
	r.set(cx, cy, centerRune, cols, rows)
}

func (r *Renderer) set(x, y int, ch rune, cols, rows int) {
	if x < 0 || y < 0 || x >= cols || y >= rows {
		return
	}
	r.screen.SetContent(x, y, ch, nil, r.fg)
}

func (r *Renderer) drawText(x, y int, s string) {
	for _, ch := range s {
		r.screen.SetContent(x, y, ch, nil, r.text)
		x += runewidth.RuneWidth(ch)
	}
}

// scale maps v in [0, span] onto [0, cells]. A zero span maps to the middle.
func scale(v, span, cells int) int {
	if span <= 0 {
		return cells / 2
	}
	return int(int64(v) * int64(cells) / int64(span))
}

// Close restores the terminal. It is safe to call more than once.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		r.screen.Fini()
		select {
		case <-r.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}
