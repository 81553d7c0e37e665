package app

import (
	"log/slog"
	"sync"
	"time"
)

// LogRenderer is a headless Renderer that logs the pointer state at a fixed
// interval. Commands can be injected with Send.
type LogRenderer struct {
	log   *slog.Logger
	every time.Duration
	now   func() time.Time

	last   time.Time
	logged uint64

	mu      sync.Mutex
	pending []Command
}

// NewLogRenderer logs at most one frame per every. A non-positive every logs
// each frame whose event count changed.
func NewLogRenderer(log *slog.Logger, every time.Duration) *LogRenderer {
	if log == nil {
		log = slog.Default()
	}
	return &LogRenderer{log: log, every: every, now: time.Now, logged: ^uint64(0)}
}

// Send queues cmd for the next Commands call. It is safe for concurrent use.
func (r *LogRenderer) Send(cmd Command) {
	r.mu.Lock()
	r.pending = append(r.pending, cmd)
	r.mu.Unlock()
}

func (r *LogRenderer) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmds := r.pending
	r.pending = nil
	return cmds
}

func (r *LogRenderer) Render(f Frame) error {
	now := r.now()
	if r.every > 0 && !r.last.IsZero() && now.Sub(r.last) < r.every {
		return nil
	}
	s := f.Snapshot
	if s.EventCount == r.logged {
		return nil
	}
	r.last, r.logged = now, s.EventCount

	r.log.Info("pointer",
		slog.Int("x", s.X),
		slog.Int("y", s.Y),
		slog.Int("dx", s.RawDx),
		slog.Int("dy", s.RawDy),
		slog.Int64("total_x", s.TotalX),
		slog.Int64("total_y", s.TotalY),
		slog.Uint64("events", s.EventCount),
		slog.Uint64("timestamp_us", s.LastTimestamp))
	return nil
}
