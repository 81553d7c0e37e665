package hid

import (
	"errors"
	"io"
	"reflect"
	"testing"
	"time"
)

func TestEncodeReportToString(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x01}, "01"},
		{[]byte{0x01, 0xfe, 0x0a}, "01-fe-0a"},
	}
	for _, tt := range tests {
		if got := EncodeReportToString(tt.in); got != tt.want {
			t.Errorf("EncodeReportToString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInfoMatching(t *testing.T) {
	mouse := Info{VendorID: 0x046d, ProductID: 0xc52b, UsagePage: UsagePageGenericDesktop, Usage: UsageMouse}
	keyboard := Info{VendorID: 0x046d, ProductID: 0xc52b, UsagePage: UsagePageGenericDesktop, Usage: 0x06}

	if !mouse.IsPointer() {
		t.Errorf("mouse usage should be a pointer")
	}
	if keyboard.IsPointer() {
		t.Errorf("keyboard usage should not be a pointer")
	}
	if !mouse.Matches(0, 0) || !mouse.Matches(0x046d, 0) || !mouse.Matches(0x046d, 0xc52b) {
		t.Errorf("expected wildcard and exact matches")
	}
	if mouse.Matches(0x046d, 0xc077) {
		t.Errorf("unexpected match on a different product id")
	}
}

func TestNewManagerUnknownBackend(t *testing.T) {
	_, err := NewManager("bluetooth")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestMockDeviceDeliversReports(t *testing.T) {
	m := NewMockDevice()
	sent := Report{ID: 2, Data: []byte{0x01, 0x05, 0xfb}}

	go m.Emit(sent)

	got, err := m.ReadReport()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !reflect.DeepEqual(got, sent) {
		t.Fatalf("report mismatch:\ngot:  %+v\nwant: %+v", got, sent)
	}
}

func TestMockDeviceCloseUnblocks(t *testing.T) {
	m := NewMockDevice()
	errc := make(chan error, 1)
	go func() {
		_, err := m.ReadReport()
		errc <- err
	}()

	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	_ = m.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadReport did not return after Close")
	}

	if m.Emit(Report{Data: []byte{0}}) {
		t.Fatal("Emit succeeded on a closed device")
	}
}
