//go:build windows

package hid

import "errors"

// usbhid has no Windows support; hidapi covers it there.
func newDefaultManager() (Manager, error) { return newHIDAPIManager() }

func newUSBHIDManager() (Manager, error) {
	return nil, errors.New("usbhid backend is not available on windows")
}
