// Package panel formats the diagnostic text shown next to the crosshair.
package panel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seagrayinc/rawpointer/internal/config"
	"github.com/seagrayinc/rawpointer/pkg/pointer"
	"github.com/seagrayinc/rawpointer/pkg/pointing"
)

const Title = "=== Raw Pointer Monitor ==="

// Lines returns the panel text for one frame. It has no side effects.
func Lines(desc pointing.Descriptor, snap pointer.Snapshot, cfg config.Config) []string {
	vendor := desc.Vendor
	if vendor == "" {
		vendor = "Unknown"
	}
	uri := desc.URI
	if uri == "" {
		uri = cfg.Device.URI
	}

	return []string{
		Title,
		"",
		strings.TrimSpace(fmt.Sprintf("Device: %s %s", vendor, desc.Product)),
		"URI: " + uri,
		fmt.Sprintf("VID:PID: 0x%04x:0x%04x", desc.VendorID, desc.ProductID),
		"Resolution: " + quantity(desc.Resolution) + " counts/inch",
		"Update Freq: " + quantity(desc.UpdateFrequency) + " Hz",
		"",
		"=== Raw Data ===",
		fmt.Sprintf("Position: (%d, %d)", snap.X, snap.Y),
		fmt.Sprintf("Last Delta: (%d, %d) counts", snap.RawDx, snap.RawDy),
		fmt.Sprintf("Total Counts: (%d, %d)", snap.TotalX, snap.TotalY),
		fmt.Sprintf("Events Received: %d", snap.EventCount),
		fmt.Sprintf("Last Timestamp: %d µs", snap.LastTimestamp),
		"",
		"=== Controls ===",
		"R - Reset position",
		"ESC/Q - Quit",
	}
}

// quantity renders v compactly, or "?" when the device did not report it.
func quantity(v float64) string {
	if v <= 0 {
		return "?"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
