//go:build !linux

package evdev

type Info struct {
	Path    string
	Name    string
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type Device struct{}

func Open(path string, grab bool) (*Device, error) { return nil, ErrUnsupported }

func Find() (string, error) { return "", ErrUnsupported }

func (d *Device) Info() Info { return Info{} }

func (d *Device) Next() (Frame, error) { return Frame{}, ErrUnsupported }

func (d *Device) Close() error { return nil }
