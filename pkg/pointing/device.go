// Package pointing opens raw pointing devices and delivers their unprocessed
// motion counts to a callback.
//
// Events are read on a background goroutine and queued. They reach the
// callback only from Idle, so the callback runs on whichever goroutine pumps
// the device.
package pointing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize is the number of events buffered between the reader and Idle.
const DefaultQueueSize = 1024

// closeTimeout bounds how long Close waits for a backend read to return.
const closeTimeout = 500 * time.Millisecond

// Callback receives one raw event. timestamp is in microseconds and dx, dy are
// device counts.
type Callback func(timestamp uint64, dx, dy int, buttons uint32)

// Event is a raw motion report.
type Event struct {
	Timestamp uint64
	DX, DY    int
	Buttons   uint32
}

// Descriptor describes an opened device.
type Descriptor struct {
	URI             string
	VendorID        uint16
	ProductID       uint16
	Vendor          string
	Product         string
	Resolution      float64 // counts per inch
	UpdateFrequency float64 // Hz
}

// Option configures Open.
type Option func(*options)

type options struct {
	log       *slog.Logger
	queueSize int
}

// WithLogger sets the logger used for device diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithQueueSize sets the event buffer size. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// Device is an opened pointing device.
type Device struct {
	desc Descriptor
	src  source
	log  *slog.Logger

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	cb  Callback
	err error

	closeOnce sync.Once
	closeErr  error
}

// Open parses uri, opens the device it names and starts reading from it.
func Open(ctx context.Context, uri string, opts ...Option) (*Device, error) {
	o := options{log: slog.Default(), queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	devCtx, cancel := context.WithCancel(ctx)
	src, desc, err := openSource(devCtx, u, o.log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open pointing device %q: %w", uri, err)
	}

	return start(devCtx, cancel, src, desc, o), nil
}

func start(ctx context.Context, cancel context.CancelFunc, src source, desc Descriptor, o options) *Device {
	d := &Device{
		desc:   desc,
		src:    src,
		log:    o.log.With(slog.String("device", desc.URI)),
		events: make(chan Event, o.queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go d.read()
	return d
}

func (d *Device) read() {
	defer close(d.done)
	for {
		ev, err := d.src.next()
		if err != nil {
			if d.ctx.Err() == nil {
				d.mu.Lock()
				d.err = err
				d.mu.Unlock()
				d.log.Warn("device read failed", slog.Any("error", err))
			}
			return
		}

		select {
		case d.events <- ev:
		case <-d.ctx.Done():
			return
		}
	}
}

// Descriptor returns the device description resolved at Open.
func (d *Device) Descriptor() Descriptor {
	return d.desc
}

// SetCallback registers fn for subsequent events. A nil fn discards events.
func (d *Device) SetCallback(fn Callback) {
	d.mu.Lock()
	d.cb = fn
	d.mu.Unlock()
}

// Idle dispatches queued events to the callback until timeout elapses and
// returns how many were dispatched. A timeout of zero or less dispatches only
// events that are already queued.
func (d *Device) Idle(timeout time.Duration) int {
	var n int
	if timeout <= 0 {
		for {
			select {
			case ev := <-d.events:
				d.dispatch(ev)
				n++
			default:
				return n
			}
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-d.events:
			d.dispatch(ev)
			n++
		case <-timer.C:
			return n
		}
	}
}

func (d *Device) dispatch(ev Event) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(ev.Timestamp, ev.DX, ev.DY, ev.Buttons)
	}
}

// Err returns the error that stopped the reader, if any. It is nil after a
// clean Close.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close stops the reader and releases the device. It is safe to call more
// than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		d.closeErr = d.src.Close()

		select {
		case <-d.done:
		case <-time.After(closeTimeout):
			d.log.Warn("device reader did not stop", slog.Duration("waited", closeTimeout))
		}
	})
	return d.closeErr
}
