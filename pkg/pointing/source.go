package pointing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/seagrayinc/rawpointer/internal/evdev"
	"github.com/seagrayinc/rawpointer/internal/hid"
)

var ErrDeviceNotFound = errors.New("pointing device not found")

// source is a blocking producer of raw events. Close must unblock next.
type source interface {
	next() (Event, error)
	Close() error
}

func openSource(ctx context.Context, u URI, log *slog.Logger) (source, Descriptor, error) {
	switch u.Scheme {
	case SchemeUSB:
		backend := hid.BackendUSBHID
		if runtime.GOOS == "windows" || (u.VendorID == 0 && u.ProductID == 0) {
			// Without ids we need usage pages to find a mouse, which only hidapi reports.
			backend = hid.BackendHIDAPI
		}
		return openHID(u, backend, log)
	case SchemeHIDAPI, SchemeAny:
		return openHID(u, hid.BackendHIDAPI, log)
	case SchemeEvdev:
		return openEvdev(u)
	case SchemeMock:
		return openMock(ctx, u, log)
	default:
		return nil, Descriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func openHID(u URI, backend string, log *slog.Logger) (source, Descriptor, error) {
	mgr, err := hid.NewManager(backend)
	if err != nil {
		return nil, Descriptor{}, err
	}
	infos, err := mgr.List()
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("list hid devices: %w", err)
	}

	info, ok := selectHID(infos, u.VendorID, u.ProductID)
	if !ok {
		return nil, Descriptor{}, fmt.Errorf("%w: no match for %s among %d hid devices", ErrDeviceNotFound, u, len(infos))
	}

	dev, err := mgr.Open(info)
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("open %s: %w", info.Path, err)
	}

	resolved := u
	resolved.VendorID, resolved.ProductID = info.VendorID, info.ProductID
	desc := Descriptor{
		URI:             resolved.String(),
		VendorID:        info.VendorID,
		ProductID:       info.ProductID,
		Vendor:          info.Manufacturer,
		Product:         info.Product,
		Resolution:      u.Resolution,
		UpdateFrequency: u.UpdateFrequency,
	}
	log.Debug("opened hid device",
		slog.String("backend", backend),
		slog.String("path", info.Path),
		slog.String("uri", desc.URI))

	return &hidSource{dev: dev, format: u.Format, reportID: u.ReportID, log: log}, desc, nil
}

// selectHID picks the first descriptor matching the ids. Mouse collections are
// preferred so a receiver's keyboard interface is skipped. Without ids only
// mouse collections qualify.
func selectHID(infos []hid.Info, vendorID, productID uint16) (hid.Info, bool) {
	wildcard := vendorID == 0 && productID == 0

	var fallback *hid.Info
	for i := range infos {
		info := infos[i]
		if !info.Matches(vendorID, productID) {
			continue
		}
		if info.IsPointer() {
			return info, true
		}
		if fallback == nil && !wildcard {
			fallback = &infos[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return hid.Info{}, false
}

type hidSource struct {
	dev      hid.Device
	format   ReportFormat
	reportID int
	log      *slog.Logger
}

func (s *hidSource) next() (Event, error) {
	for {
		r, err := s.dev.ReadReport()
		if err != nil {
			return Event{}, err
		}
		now := uint64(time.Now().UnixMicro())

		data, ok := s.strip(r)
		if !ok {
			s.log.Debug("skipping report", slog.Int("id", int(r.ID)), slog.String("bytes", hid.EncodeReportToString(r.Data)))
			continue
		}
		dx, dy, buttons, ok := DecodeReport(s.format, data)
		if !ok {
			s.log.Debug("short report", slog.String("format", s.format.String()), slog.String("bytes", hid.EncodeReportToString(r.Data)))
			continue
		}
		return Event{Timestamp: now, DX: dx, DY: dy, Buttons: buttons}, nil
	}
}

// strip removes the report ID, if the URI configured one, and drops reports
// carrying a different ID.
func (s *hidSource) strip(r hid.Report) ([]byte, bool) {
	if s.reportID < 0 {
		return r.Data, true
	}
	want := byte(s.reportID)
	if r.ID != 0 {
		return r.Data, r.ID == want
	}
	if len(r.Data) == 0 || r.Data[0] != want {
		return nil, false
	}
	return r.Data[1:], true
}

func (s *hidSource) Close() error { return s.dev.Close() }

func openEvdev(u URI) (source, Descriptor, error) {
	path := u.Path
	if path == "" {
		found, err := evdev.Find()
		if err != nil {
			return nil, Descriptor{}, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
		path = found
	}

	dev, err := evdev.Open(path, u.Grab)
	if err != nil {
		return nil, Descriptor{}, err
	}
	info := dev.Info()

	resolved := u
	resolved.Path = path
	desc := Descriptor{
		URI:             resolved.String(),
		VendorID:        info.Vendor,
		ProductID:       info.Product,
		Product:         info.Name,
		Resolution:      u.Resolution,
		UpdateFrequency: u.UpdateFrequency,
	}
	return &evdevSource{dev: dev}, desc, nil
}

type evdevSource struct {
	dev *evdev.Device
}

func (s *evdevSource) next() (Event, error) {
	fr, err := s.dev.Next()
	if err != nil {
		return Event{}, err
	}
	return Event{Timestamp: fr.Timestamp, DX: fr.DX, DY: fr.DY, Buttons: fr.Buttons}, nil
}

func (s *evdevSource) Close() error { return s.dev.Close() }

// Synthetic device ids reported for mock: URIs.
const (
	MockVendorID  uint16 = 0xfeed
	MockProductID uint16 = 0x0001
)

// mockRadius is the radius, in counts, of the circle the mock device traces.
const mockRadius = 200.0

func openMock(ctx context.Context, u URI, log *slog.Logger) (source, Descriptor, error) {
	dev := hid.NewMockDevice()
	go emitCircle(ctx, dev, u.Format, u.UpdateFrequency)

	desc := Descriptor{
		URI:             u.String(),
		VendorID:        MockVendorID,
		ProductID:       MockProductID,
		Vendor:          "rawpointer",
		Product:         "Synthetic circle",
		Resolution:      u.Resolution,
		UpdateFrequency: u.UpdateFrequency,
	}
	return &hidSource{dev: dev, format: u.Format, reportID: -1, log: log}, desc, nil
}

// emitCircle feeds dev with reports that trace a circle, one lap every two
// seconds, until dev is closed or ctx ends.
func emitCircle(ctx context.Context, dev *hid.MockDevice, format ReportFormat, hz float64) {
	period := time.Duration(float64(time.Second) / hz)
	if period < time.Millisecond {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	steps := int(2 * hz)
	if steps < 4 {
		steps = 4
	}
	var step int
	px, py := int(mockRadius), 0
	for {
		select {
		case <-ctx.Done():
			dev.Close()
			return
		case <-dev.Done():
			return
		case <-ticker.C:
		}

		step++
		angle := 2 * math.Pi * float64(step%steps) / float64(steps)
		x := int(math.Round(mockRadius * math.Cos(angle)))
		y := int(math.Round(mockRadius * math.Sin(angle)))
		report := EncodeReport(format, x-px, y-py, 0)
		px, py = x, y

		if !dev.Emit(hid.Report{Data: report}) {
			return
		}
	}
}
