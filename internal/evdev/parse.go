// Package evdev reads relative pointer motion from Linux input event nodes.
//
// Event records are accumulated until SYN_REPORT and delivered as one Frame,
// the same granularity a HID report has.
package evdev

import (
	"encoding/binary"
	"errors"
	"strconv"
)

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02

	SynReport  = 0x00
	SynDropped = 0x03

	RelX = 0x00
	RelY = 0x01

	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
	BtnSide   = 0x113
	BtnExtra  = 0x114
)

var ErrUnsupported = errors.New("evdev is only available on linux")

// EventSize is the size of struct input_event for this architecture: a
// timeval followed by type, code and value.
var EventSize = 2*strconv.IntSize/8 + 8

// Frame is the motion and button state delivered between two SYN_REPORTs.
type Frame struct {
	Timestamp uint64 // microseconds, kernel clock
	DX, DY    int
	Buttons   uint32 // bit 0 left, 1 right, 2 middle, 3 side, 4 extra
}

// Parser turns a byte stream of input_event records into Frames.
type Parser struct {
	size int
	buf  []byte

	dx, dy   int
	buttons  uint32
	dirty    bool
	dropping bool
}

// NewParser returns a parser for records of the given size (16 or 24).
func NewParser(size int) *Parser {
	return &Parser{size: size}
}

// Feed consumes chunk and calls emit for every completed frame. Partial
// records are kept for the next call.
func (p *Parser) Feed(chunk []byte, emit func(Frame)) {
	p.buf = append(p.buf, chunk...)
	for len(p.buf) >= p.size {
		rec := p.buf[:p.size]
		p.buf = p.buf[p.size:]
		p.record(rec, emit)
	}
}

func (p *Parser) record(rec []byte, emit func(Frame)) {
	half := (p.size - 8) / 2
	var sec, usec uint64
	if half == 8 {
		sec = binary.LittleEndian.Uint64(rec[0:8])
		usec = binary.LittleEndian.Uint64(rec[8:16])
	} else {
		sec = uint64(binary.LittleEndian.Uint32(rec[0:4]))
		usec = uint64(binary.LittleEndian.Uint32(rec[4:8]))
	}
	tail := rec[2*half:]
	etype := binary.LittleEndian.Uint16(tail[0:2])
	code := binary.LittleEndian.Uint16(tail[2:4])
	value := int32(binary.LittleEndian.Uint32(tail[4:8]))

	switch etype {
	case EvSyn:
		switch code {
		case SynDropped:
			// The kernel buffer overran; everything up to the next report is stale.
			p.dropping = true
			p.dx, p.dy, p.dirty = 0, 0, false
		case SynReport:
			if p.dropping {
				p.dropping = false
				return
			}
			if p.dirty {
				emit(Frame{Timestamp: sec*1_000_000 + usec, DX: p.dx, DY: p.dy, Buttons: p.buttons})
			}
			p.dx, p.dy, p.dirty = 0, 0, false
		}
	case EvRel:
		if p.dropping {
			return
		}
		switch code {
		case RelX:
			p.dx += int(value)
			p.dirty = true
		case RelY:
			p.dy += int(value)
			p.dirty = true
		}
	case EvKey:
		if code < BtnLeft || code > BtnExtra {
			return
		}
		bit := uint32(1) << (code - BtnLeft)
		if value != 0 {
			p.buttons |= bit
		} else {
			p.buttons &^= bit
		}
		if !p.dropping {
			p.dirty = true
		}
	}
}
