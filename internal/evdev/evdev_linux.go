//go:build linux

package evdev

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

const nameLen = 256

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// EVIOCGID = _IOR('E', 0x02, struct input_id)
func evioCGID() uintptr {
	return ioc(iocRead, 'E', 0x02, uint32(unsafe.Sizeof(inputID{})))
}

// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
func evioCGName(n int) uintptr {
	return ioc(iocRead, 'E', 0x06, uint32(n))
}

// EVIOCGBIT(ev, len) = _IOC(_IOC_READ, 'E', 0x20 + ev, len)
func evioCGBit(ev, n int) uintptr {
	return ioc(iocRead, 'E', uint32(0x20+ev), uint32(n))
}

// EVIOCGRAB = _IOW('E', 0x90, int)
func evioCGrab() uintptr {
	return ioc(iocWrite, 'E', 0x90, uint32(unsafe.Sizeof(int32(0))))
}

// Info describes an opened event node.
type Info struct {
	Path    string
	Name    string
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// Device is an opened /dev/input/eventN node.
type Device struct {
	f       *os.File
	info    Info
	grabbed bool

	parser  *Parser
	buf     []byte
	pending []Frame
}

// Open opens the event node at path. With grab set the node is taken
// exclusively so other readers, including the display server, stop seeing it.
func Open(path string, grab bool) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &Device{
		f:      f,
		info:   Info{Path: path},
		parser: NewParser(EventSize),
		buf:    make([]byte, EventSize*64),
	}

	var id inputID
	if err := control(f, func(fd uintptr) syscall.Errno {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGID(), uintptr(unsafe.Pointer(&id)))
		return errno
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("EVIOCGID %s: %w", path, err)
	}
	d.info.Bustype, d.info.Vendor, d.info.Product, d.info.Version = id.Bustype, id.Vendor, id.Product, id.Version

	name := make([]byte, nameLen)
	if err := control(f, func(fd uintptr) syscall.Errno {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGName(len(name)), uintptr(unsafe.Pointer(&name[0])))
		return errno
	}); err == nil {
		d.info.Name = string(bytes.TrimRight(name, "\x00"))
	}

	if grab {
		if err := control(f, func(fd uintptr) syscall.Errno {
			_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGrab(), 1)
			return errno
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("EVIOCGRAB %s: %w", path, err)
		}
		d.grabbed = true
	}

	return d, nil
}

// Find returns the first event node that reports both REL_X and REL_Y.
func Find() (string, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return "", err
	}
	sort.Slice(paths, func(i, j int) bool {
		return nodeNumber(paths[i]) < nodeNumber(paths[j])
	})

	var lastErr error
	for _, p := range paths {
		ok, err := isRelativePointer(p)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return p, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("no relative pointer among %d event nodes (last error: %w)", len(paths), lastErr)
	}
	return "", fmt.Errorf("no relative pointer among %d event nodes", len(paths))
}

func nodeNumber(p string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(p), "event"))
	if err != nil {
		return 1 << 30
	}
	return n
}

func isRelativePointer(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var bits [1]byte
	if err := control(f, func(fd uintptr) syscall.Errno {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGBit(EvRel, len(bits)), uintptr(unsafe.Pointer(&bits[0])))
		return errno
	}); err != nil {
		return false, err
	}
	const want = 1<<RelX | 1<<RelY
	return bits[0]&want == want, nil
}

func control(f *os.File, fn func(fd uintptr) syscall.Errno) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var errno syscall.Errno
	if err := rc.Control(func(fd uintptr) { errno = fn(fd) }); err != nil {
		return err
	}
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) Info() Info { return d.info }

// Next blocks until a complete frame is available.
func (d *Device) Next() (Frame, error) {
	for len(d.pending) == 0 {
		n, err := d.f.Read(d.buf)
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return Frame{}, err
			}
			return Frame{}, fmt.Errorf("read %s: %w", d.info.Path, err)
		}
		d.parser.Feed(d.buf[:n], func(fr Frame) {
			d.pending = append(d.pending, fr)
		})
	}
	fr := d.pending[0]
	d.pending = d.pending[1:]
	return fr, nil
}

// Close releases the grab, if any, and closes the node. A blocked Next
// returns os.ErrClosed.
func (d *Device) Close() error {
	if d.grabbed {
		_ = control(d.f, func(fd uintptr) syscall.Errno {
			_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGrab(), 0)
			return errno
		})
	}
	return d.f.Close()
}
