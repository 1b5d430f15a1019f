// Package serial drives the wired USB-serial link: the line discipline
// is put into raw mode via termios ioctls, matching the approach a
// standard Linux serial library takes, so the dispatcher sees exactly
// the bytes the host sent with no echo, canonical-mode line editing,
// or signal characters in the way.
package serial

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Port is a raw-mode tty, satisfying transport.Stream.
type Port struct {
	f *os.File
}

// Open opens path (e.g. "/dev/ttyAMA0") and switches it into raw mode
// at baud.
func Open(path string, baud uint32) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}

	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: get termios: %w", err)
	}

	makeRaw(t)
	speed, ok := termiosSpeed(baud)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("serial: unsupported baud rate %d", baud)
	}
	t.Ispeed = speed
	t.Ospeed = speed

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: set termios: %w", err)
	}

	return &Port{f: f}, nil
}

// makeRaw clears the canonical-mode, echo, signal-generation and
// software-flow-control bits, mirroring what cfmakeraw does in glibc.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

func termiosSpeed(baud uint32) (uint32, bool) {
	switch baud {
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	default:
		return 0, false
	}
}

// Available reports bytes currently buffered in the tty's input
// queue, via the TIOCINQ ioctl.
func (p *Port) Available() (int, error) {
	n, err := unix.IoctlGetInt(int(p.f.Fd()), unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("serial: TIOCINQ: %w", err)
	}
	return n, nil
}

// ReadByte reads exactly one byte. Callers should check Available
// first; in raw mode with VMIN=1 this blocks until a byte arrives.
func (p *Port) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := p.f.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("serial: read: %w", err)
	}
	return buf[0], nil
}

// Print writes s as-is.
func (p *Port) Print(s string) error {
	_, err := p.f.WriteString(s)
	if err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

// Println writes s followed by a newline.
func (p *Port) Println(s string) error {
	return p.Print(s + "\n")
}

// Close releases the underlying file descriptor.
func (p *Port) Close() error {
	return p.f.Close()
}
