package pointing

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/seagrayinc/rawpointer/internal/hid"
)

func newMockDevice(t *testing.T, reportID int, format ReportFormat) (*Device, *hid.MockDevice) {
	t.Helper()
	mock := hid.NewMockDevice()
	ctx, cancel := context.WithCancel(context.Background())
	src := &hidSource{dev: mock, format: format, reportID: reportID, log: slog.Default()}
	d := start(ctx, cancel, src, Descriptor{URI: "mock:"}, options{log: slog.Default(), queueSize: 16})
	t.Cleanup(func() { d.Close() })
	return d, mock
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) callback(ts uint64, dx, dy int, buttons uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Timestamp: ts, DX: dx, DY: dy, Buttons: buttons})
}

func (r *recorder) deltas() [][3]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][3]int, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, [3]int{e.DX, e.DY, int(e.Buttons)})
	}
	return out
}

// pumpUntil runs Idle until want events were dispatched or a second passes.
func pumpUntil(t *testing.T, d *Device, want int) int {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	var n int
	for n < want && time.Now().Before(deadline) {
		n += d.Idle(5 * time.Millisecond)
	}
	return n
}

func TestIdleDispatchesInOrder(t *testing.T) {
	d, mock := newMockDevice(t, -1, FormatBoot)
	var rec recorder
	d.SetCallback(rec.callback)

	go func() {
		mock.Emit(hid.Report{Data: []byte{0x00, 0x01, 0x02}})
		mock.Emit(hid.Report{Data: []byte{0x01, 0xff, 0xfe}})
		mock.Emit(hid.Report{Data: []byte{0x02}}) // short, skipped
		mock.Emit(hid.Report{Data: []byte{0x02, 0x10, 0x00}})
	}()

	if n := pumpUntil(t, d, 3); n != 3 {
		t.Fatalf("dispatched %d events, want 3", n)
	}

	want := [][3]int{{1, 2, 0}, {-1, -2, 1}, {16, 0, 2}}
	if got := rec.deltas(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events mismatch:\ngot:  %v\nwant: %v", got, want)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 1; i < len(rec.events); i++ {
		if rec.events[i].Timestamp < rec.events[i-1].Timestamp {
			t.Fatalf("timestamps went backwards: %+v", rec.events)
		}
	}
}

func TestReportIDFiltering(t *testing.T) {
	d, mock := newMockDevice(t, 2, FormatBoot)
	var rec recorder
	d.SetCallback(rec.callback)

	go func() {
		mock.Emit(hid.Report{Data: []byte{0x02, 0x00, 0x03, 0x04}})  // prefixed, kept
		mock.Emit(hid.Report{Data: []byte{0x01, 0x00, 0x09, 0x09}})  // other id, dropped
		mock.Emit(hid.Report{ID: 2, Data: []byte{0x00, 0x05, 0x06}}) // separate id, kept
		mock.Emit(hid.Report{ID: 3, Data: []byte{0x00, 0x07, 0x07}}) // other id, dropped
		mock.Emit(hid.Report{Data: []byte{0x02, 0x01, 0x7f, 0x80}})  // kept
	}()

	if n := pumpUntil(t, d, 3); n != 3 {
		t.Fatalf("dispatched %d events, want 3", n)
	}
	want := [][3]int{{3, 4, 0}, {5, 6, 0}, {127, -128, 1}}
	if got := rec.deltas(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events mismatch:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestIdleIsBounded(t *testing.T) {
	d, _ := newMockDevice(t, -1, FormatBoot)

	start := time.Now()
	if n := d.Idle(20 * time.Millisecond); n != 0 {
		t.Fatalf("dispatched %d events from an idle device", n)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("Idle(20ms) took %v", elapsed)
	}

	start = time.Now()
	if n := d.Idle(0); n != 0 {
		t.Fatalf("dispatched %d events from an idle device", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Idle(0) blocked for %v", elapsed)
	}
}

func TestNilCallbackDiscards(t *testing.T) {
	d, mock := newMockDevice(t, -1, FormatBoot)
	go mock.Emit(hid.Report{Data: []byte{0, 1, 1}})

	if n := pumpUntil(t, d, 1); n != 1 {
		t.Fatalf("dispatched %d events, want 1", n)
	}
}

func TestCloseIsIdempotentAndUnblocksReader(t *testing.T) {
	d, mock := newMockDevice(t, -1, FormatBoot)

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	select {
	case <-d.done:
	default:
		t.Fatal("reader still running after Close")
	}
	select {
	case <-mock.Done():
	default:
		t.Fatal("mock device not closed")
	}
	if err := d.Err(); err != nil {
		t.Fatalf("expected no reader error after Close, got %v", err)
	}
}

func TestReaderErrorIsRecorded(t *testing.T) {
	d, mock := newMockDevice(t, -1, FormatBoot)
	mock.Close()

	select {
	case <-d.done:
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
	if d.Err() == nil {
		t.Fatal("expected reader error")
	}
}

func TestSelectHID(t *testing.T) {
	keyboard := hid.Info{Path: "kbd", VendorID: 0x046d, ProductID: 0xc52b, UsagePage: hid.UsagePageGenericDesktop, Usage: 0x06}
	mouse := hid.Info{Path: "mouse", VendorID: 0x046d, ProductID: 0xc52b, UsagePage: hid.UsagePageGenericDesktop, Usage: hid.UsageMouse}
	unknown := hid.Info{Path: "raw", VendorID: 0x17a4, ProductID: 0x001e}

	tests := []struct {
		name     string
		infos    []hid.Info
		vid, pid uint16
		want     string
		ok       bool
	}{
		{"prefers mouse collection", []hid.Info{keyboard, mouse}, 0x046d, 0xc52b, "mouse", true},
		{"falls back to first match", []hid.Info{unknown}, 0x17a4, 0x001e, "raw", true},
		{"wildcard needs mouse", []hid.Info{unknown, keyboard}, 0, 0, "", false},
		{"wildcard finds mouse", []hid.Info{unknown, keyboard, mouse}, 0, 0, "mouse", true},
		{"no match", []hid.Info{mouse}, 0x1234, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectHID(tt.infos, tt.vid, tt.pid)
			if ok != tt.ok || got.Path != tt.want {
				t.Errorf("selectHID = (%q, %v), want (%q, %v)", got.Path, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOpenMock(t *testing.T) {
	d, err := Open(context.Background(), "mock:?hz=1000&cpi=800")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer d.Close()

	desc := d.Descriptor()
	want := Descriptor{
		URI:             "mock:?cpi=800&hz=1000",
		VendorID:        MockVendorID,
		ProductID:       MockProductID,
		Vendor:          "rawpointer",
		Product:         "Synthetic circle",
		Resolution:      800,
		UpdateFrequency: 1000,
	}
	if !reflect.DeepEqual(desc, want) {
		t.Fatalf("descriptor mismatch:\ngot:  %+v\nwant: %+v", desc, want)
	}

	var rec recorder
	d.SetCallback(rec.callback)
	if n := pumpUntil(t, d, 10); n < 10 {
		t.Fatalf("mock device delivered %d events, want at least 10", n)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), "bluetooth:"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := Open(context.Background(), "not a uri"); err == nil {
		t.Fatal("expected parse error")
	}
}
