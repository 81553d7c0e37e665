package hid

import (
	"errors"
	"fmt"

	"github.com/karalabe/usb"
)

// hidapi input reports are at most 64 bytes on full-speed devices; the extra
// byte leaves room for a report ID prefix.
const hidapiReadSize = 65

type hidapiManager struct{}

func newHIDAPIManager() (Manager, error) {
	if !usb.Supported() {
		return nil, errors.New("hidapi backend is not supported on this platform (cgo disabled?)")
	}
	return &hidapiManager{}, nil
}

func (m *hidapiManager) List() ([]Info, error) {
	infos, err := usb.EnumerateHid(0, 0)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	out := make([]Info, 0, len(infos))
	for _, i := range infos {
		out = append(out, Info{
			Path:         i.Path,
			VendorID:     i.VendorID,
			ProductID:    i.ProductID,
			Product:      i.Product,
			Manufacturer: i.Manufacturer,
			UsagePage:    i.UsagePage,
			Usage:        i.Usage,
		})
	}
	return out, nil
}

func (m *hidapiManager) Open(info Info) (Device, error) {
	infos, err := usb.EnumerateHid(info.VendorID, info.ProductID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	for _, i := range infos {
		if i.Path != info.Path {
			continue
		}
		dev, err := i.Open()
		if err != nil {
			return nil, fmt.Errorf("open device: %w", err)
		}
		return &hidapiDevice{dev: dev}, nil
	}
	return nil, fmt.Errorf("device %s disappeared before open", info.Path)
}

type hidapiDevice struct {
	dev usb.Device
}

// ReadReport returns the raw bytes hidapi hands back. hidapi only prefixes a
// report ID for devices with numbered reports, so ID is left at zero and the
// caller strips a known prefix itself.
func (d *hidapiDevice) ReadReport() (Report, error) {
	buf := make([]byte, hidapiReadSize)
	n, err := d.dev.Read(buf)
	if err != nil {
		return Report{}, err
	}
	return Report{Data: buf[:n]}, nil
}

func (d *hidapiDevice) Close() error { return d.dev.Close() }
