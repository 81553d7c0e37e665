package hid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Generic Desktop usages that identify a relative pointing device.
const (
	UsagePageGenericDesktop uint16 = 0x01
	UsagePointer            uint16 = 0x01
	UsageMouse              uint16 = 0x02
)

var ErrUnknownBackend = errors.New("unknown hid backend")

// Report is a single input report read from a device. ID is zero for devices
// that do not use numbered reports.
type Report struct {
	ID   byte
	Data []byte
}

// Device represents an opened HID device that delivers input reports.
type Device interface {
	// ReadReport blocks until the next input report arrives or the device is closed.
	ReadReport() (Report, error)
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string

	// UsagePage and Usage are zero when the backend cannot report them.
	UsagePage uint16
	Usage     uint16
}

// IsPointer reports whether the top-level collection is a mouse or pointer.
func (i Info) IsPointer() bool {
	return i.UsagePage == UsagePageGenericDesktop && (i.Usage == UsageMouse || i.Usage == UsagePointer)
}

// Matches reports whether the descriptor has the given ids. Zero matches anything.
func (i Info) Matches(vendorID, productID uint16) bool {
	return (vendorID == 0 || i.VendorID == vendorID) && (productID == 0 || i.ProductID == productID)
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
}

// Backend names accepted by NewManager.
const (
	BackendUSBHID = "usbhid"
	BackendHIDAPI = "hidapi"
)

// NewManager returns the manager for the named backend. An empty name selects
// the platform default.
func NewManager(backend string) (Manager, error) {
	switch backend {
	case "":
		return newDefaultManager()
	case BackendUSBHID:
		return newUSBHIDManager()
	case BackendHIDAPI:
		return newHIDAPIManager()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// EncodeReportToString formats report bytes as dash-separated hex for logs.
func EncodeReportToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
