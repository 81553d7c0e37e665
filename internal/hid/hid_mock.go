package hid

import (
	"io"
	"sync"
)

// MockDevice is an in-memory Device whose reports are supplied by Emit.
type MockDevice struct {
	reports chan Report
	closed  chan struct{}
	once    sync.Once
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		reports: make(chan Report),
		closed:  make(chan struct{}),
	}
}

func (m *MockDevice) ReadReport() (Report, error) {
	select {
	case r := <-m.reports:
		return r, nil
	case <-m.closed:
		return Report{}, io.EOF
	}
}

func (m *MockDevice) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// Emit hands r to the next ReadReport call. It reports false if the device
// was closed first.
func (m *MockDevice) Emit(r Report) bool {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	select {
	case m.reports <- Report{ID: r.ID, Data: data}:
		return true
	case <-m.closed:
		return false
	}
}

// Done is closed once the device is closed.
func (m *MockDevice) Done() <-chan struct{} {
	return m.closed
}
