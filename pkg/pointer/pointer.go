// Package pointer holds the shared raw pointer state that sits between a
// device callback and the render loop.
package pointer

import "sync"

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	X, Y          int
	RawDx, RawDy  int
	TotalX        int64
	TotalY        int64
	EventCount    uint64
	LastTimestamp uint64 // microseconds
}

// State tracks the on-screen position and raw counts reported by a device.
// All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	width, height int

	x, y          int
	rawDx, rawDy  int
	totalX        int64
	totalY        int64
	eventCount    uint64
	lastTimestamp uint64
}

// New returns a State centered in a width x height screen.
func New(width, height int) *State {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &State{
		width:  width,
		height: height,
		x:      width / 2,
		y:      height / 2,
	}
}

// Bounds returns the screen size the position is clamped to.
func (s *State) Bounds() (width, height int) {
	return s.width, s.height
}

// Update applies one raw event. Buttons are accepted but not interpreted.
func (s *State) Update(timestamp uint64, dx, dy int, buttons uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rawDx = dx
	s.rawDy = dy
	s.totalX += int64(dx)
	s.totalY += int64(dy)
	s.eventCount++
	s.lastTimestamp = timestamp

	s.x = clampAdd(s.x, dx, s.width)
	s.y = clampAdd(s.y, dy, s.height)
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		X:             s.x,
		Y:             s.y,
		RawDx:         s.rawDx,
		RawDy:         s.rawDy,
		TotalX:        s.totalX,
		TotalY:        s.totalY,
		EventCount:    s.eventCount,
		LastTimestamp: s.lastTimestamp,
	}
}

// Reset recenters the position and zeroes the cumulative counts. The last
// delta, event count and timestamp keep their values.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.x = s.width / 2
	s.y = s.height / 2
	s.totalX = 0
	s.totalY = 0
}

// clampAdd returns clamp(v+d, 0, max) for 0 <= v <= max without overflowing.
func clampAdd(v, d, max int) int {
	switch {
	case d > max-v:
		return max
	case d < -v:
		return 0
	default:
		return v + d
	}
}
