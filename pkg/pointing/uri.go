package pointing

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URI schemes understood by Open.
const (
	SchemeUSB    = "usb"
	SchemeHIDAPI = "hidapi"
	SchemeAny    = "any"
	SchemeEvdev  = "evdev"
	SchemeMock   = "mock"
)

// Descriptor values used when neither the device nor the URI supplies one.
const (
	DefaultResolution      = 400.0 // counts per inch
	DefaultUpdateFrequency = 125.0 // Hz
)

var ErrUnsupportedScheme = errors.New("unsupported device uri scheme")

// ReportFormat selects how a HID input report is decoded.
type ReportFormat int

const (
	// FormatBoot is the boot protocol layout: buttons, dx int8, dy int8.
	FormatBoot ReportFormat = iota
	// FormatWide is buttons followed by little-endian int16 dx and dy.
	FormatWide
)

func (f ReportFormat) String() string {
	switch f {
	case FormatBoot:
		return "boot"
	case FormatWide:
		return "wide"
	default:
		return "unknown"
	}
}

// URI is a parsed device identifier of the form scheme:[target][?query].
type URI struct {
	Scheme    string
	VendorID  uint16
	ProductID uint16
	Path      string // evdev node

	Resolution      float64
	UpdateFrequency float64
	Format          ReportFormat
	ReportID        int // -1 when reports carry no ID prefix
	Grab            bool
}

// ParseURI parses identifiers such as "usb:046d:c52b", "any:",
// "evdev:/dev/input/event3?grab=1" or "mock:?hz=250".
func ParseURI(s string) (URI, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return URI{}, fmt.Errorf("parse device uri %q: %w", s, err)
	}
	if u.Scheme == "" {
		return URI{}, fmt.Errorf("parse device uri %q: missing scheme", s)
	}

	out := URI{
		Scheme:          u.Scheme,
		Resolution:      DefaultResolution,
		UpdateFrequency: DefaultUpdateFrequency,
		ReportID:        -1,
	}

	target := u.Opaque
	if target == "" {
		target = u.Path
	}

	switch out.Scheme {
	case SchemeUSB, SchemeHIDAPI:
		if target != "" {
			out.VendorID, out.ProductID, err = parseIDs(target)
			if err != nil {
				return URI{}, fmt.Errorf("parse device uri %q: %w", s, err)
			}
		}
	case SchemeEvdev:
		out.Path = target
	case SchemeAny, SchemeMock:
	default:
		return URI{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, out.Scheme)
	}

	q := u.Query()
	if v := q.Get("cpi"); v != "" {
		if out.Resolution, err = parsePositive(v); err != nil {
			return URI{}, fmt.Errorf("parse device uri %q: cpi: %w", s, err)
		}
	}
	if v := q.Get("hz"); v != "" {
		if out.UpdateFrequency, err = parsePositive(v); err != nil {
			return URI{}, fmt.Errorf("parse device uri %q: hz: %w", s, err)
		}
	}
	switch q.Get("format") {
	case "", "boot":
		out.Format = FormatBoot
	case "wide":
		out.Format = FormatWide
	default:
		return URI{}, fmt.Errorf("parse device uri %q: unknown report format %q", s, q.Get("format"))
	}
	if v := q.Get("report"); v != "" {
		id, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			return URI{}, fmt.Errorf("parse device uri %q: report: %w", s, err)
		}
		out.ReportID = int(id)
	}
	if v := q.Get("grab"); v != "" {
		if out.Grab, err = strconv.ParseBool(v); err != nil {
			return URI{}, fmt.Errorf("parse device uri %q: grab: %w", s, err)
		}
	}

	return out, nil
}

// String renders the identifier in the canonical form accepted by ParseURI.
// Query parameters equal to their defaults are omitted.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteByte(':')
	switch u.Scheme {
	case SchemeUSB, SchemeHIDAPI:
		if u.VendorID != 0 || u.ProductID != 0 {
			fmt.Fprintf(&b, "%04x:%04x", u.VendorID, u.ProductID)
		}
	case SchemeEvdev:
		b.WriteString(u.Path)
	}

	q := url.Values{}
	if u.Resolution != DefaultResolution && u.Resolution > 0 {
		q.Set("cpi", strconv.FormatFloat(u.Resolution, 'g', -1, 64))
	}
	if u.UpdateFrequency != DefaultUpdateFrequency && u.UpdateFrequency > 0 {
		q.Set("hz", strconv.FormatFloat(u.UpdateFrequency, 'g', -1, 64))
	}
	if u.Format != FormatBoot {
		q.Set("format", u.Format.String())
	}
	if u.ReportID >= 0 {
		q.Set("report", strconv.Itoa(u.ReportID))
	}
	if u.Grab {
		q.Set("grab", "1")
	}
	if len(q) > 0 {
		b.WriteByte('?')
		b.WriteString(q.Encode())
	}
	return b.String()
}

func parseIDs(s string) (vendorID, productID uint16, err error) {
	vid, pid, found := strings.Cut(s, ":")
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("vendor id %q: %w", vid, err)
	}
	if !found || pid == "" {
		return uint16(v), 0, nil
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("product id %q: %w", pid, err)
	}
	return uint16(v), uint16(p), nil
}

func parsePositive(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", f)
	}
	return f, nil
}
