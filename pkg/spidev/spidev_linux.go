//go:build linux

package spidev

import (
	"fmt"
	"unsafe"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// Open opens the device at hz with 8 bits per word.
func (b Bus) Open(index uint8, hz uint32) (sdspi.Transport, error) {
	path := b.path(index)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("spidev: open %s: %w", path, err)
	}

	mode := b.Mode
	bpw := uint8(8)
	speed := hz
	for _, set := range []struct {
		name string
		req  uint32
		arg  unsafe.Pointer
	}{
		{"mode", iocWrMode, unsafe.Pointer(&mode)},
		{"bits per word", iocWrBitsPerWord, unsafe.Pointer(&bpw)},
		{"max speed", iocWrMaxSpeedHz, unsafe.Pointer(&speed)},
	} {
		if err := ioctl(fd, set.req, set.arg); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("spidev: %s: set %s: %w", path, set.name, err)
		}
	}

	glog.V(2).Infof("spidev: %s open, mode 0x%02X, %d Hz", path, mode, hz)
	return &transport{fd: fd, hz: hz, path: path}, nil
}

func ioctl(fd int, req uint32, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

type transport struct {
	fd   int
	hz   uint32
	path string
	fill []byte
}

// Transfer sends tx then clocks len(rx) bytes in, in one message so the
// kernel keeps the bus between the two halves.
func (t *transport) Transfer(tx, rx []byte) error {
	if t.fd < 0 {
		return fmt.Errorf("spidev: %s: closed", t.path)
	}

	var msgs [2]spiIocTransfer
	n := 0
	if len(tx) > 0 {
		msgs[n] = spiIocTransfer{
			txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
			length:      uint32(len(tx)),
			speedHz:     t.hz,
			bitsPerWord: 8,
		}
		n++
	}
	if len(rx) > 0 {
		for len(t.fill) < len(rx) {
			t.fill = append(t.fill, 0xFF)
		}
		msgs[n] = spiIocTransfer{
			txBuf:       uint64(uintptr(unsafe.Pointer(&t.fill[0]))),
			rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
			length:      uint32(len(rx)),
			speedHz:     t.hz,
			bitsPerWord: 8,
		}
		n++
	}
	if n == 0 {
		return nil
	}

	if err := ioctl(t.fd, iocMessage(n), unsafe.Pointer(&msgs[0])); err != nil {
		return fmt.Errorf("spidev: %s: transfer: %w", t.path, err)
	}
	return nil
}

func (t *transport) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}
