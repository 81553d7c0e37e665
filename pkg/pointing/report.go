package pointing

import "encoding/binary"

// DecodeReport extracts relative motion and buttons from a mouse input report
// with no report ID prefix. ok is false when the report is too short for the
// format.
func DecodeReport(format ReportFormat, data []byte) (dx, dy int, buttons uint32, ok bool) {
	switch format {
	case FormatBoot:
		if len(data) < 3 {
			return 0, 0, 0, false
		}
		return int(int8(data[1])), int(int8(data[2])), uint32(data[0]), true
	case FormatWide:
		if len(data) < 5 {
			return 0, 0, 0, false
		}
		dx = int(int16(binary.LittleEndian.Uint16(data[1:3])))
		dy = int(int16(binary.LittleEndian.Uint16(data[3:5])))
		return dx, dy, uint32(data[0]), true
	default:
		return 0, 0, 0, false
	}
}

// EncodeReport is the inverse of DecodeReport. Deltas outside the format's
// range are saturated.
func EncodeReport(format ReportFormat, dx, dy int, buttons uint32) []byte {
	switch format {
	case FormatWide:
		b := make([]byte, 5)
		b[0] = byte(buttons)
		binary.LittleEndian.PutUint16(b[1:3], uint16(saturate(dx, -32768, 32767)))
		binary.LittleEndian.PutUint16(b[3:5], uint16(saturate(dy, -32768, 32767)))
		return b
	default:
		return []byte{
			byte(buttons),
			byte(int8(saturate(dx, -128, 127))),
			byte(int8(saturate(dy, -128, 127))),
		}
	}
}

func saturate(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
