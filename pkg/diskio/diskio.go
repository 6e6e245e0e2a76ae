// Package diskio exposes a sector device as a byte-addressed disk.
//
// A filesystem rarely reads whole sectors: a directory walk or a FAT lookup
// touches a few bytes at a time, usually within the same sector. Disk keeps
// the last sector it read in memory so those accesses cost one bus
// transaction per sector instead of one per call.
package diskio

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
)

// SectorSize is the unit of every device transfer.
const SectorSize = 512

// ErrPastEnd is returned by WriteAt for writes beyond the last sector.
var ErrPastEnd = errors.New("diskio: write past end of disk")

// Device is a sector addressed block device. *sdspi.Card implements it.
type Device interface {
	ReadSector(sector uint32, buf []byte) (int, error)
	WriteSector(sector uint32, buf []byte) (int, error)
	Sectors() uint64
}

// Disk is an io.ReaderAt and io.WriterAt over a Device with a one sector cache.
type Disk struct {
	dev    Device
	cached int64 // sector held in buf, -1 when empty
	buf    [SectorSize]byte

	hits, misses int
}

// New returns a Disk over dev with an empty cache.
func New(dev Device) *Disk {
	return &Disk{dev: dev, cached: -1}
}

// Size returns the disk size in bytes.
func (d *Disk) Size() int64 {
	return int64(d.dev.Sectors()) * SectorSize
}

// Invalidate drops the cached sector.
func (d *Disk) Invalidate() {
	d.cached = -1
}

// Stats returns cache hits and misses since creation.
func (d *Disk) Stats() (hits, misses int) {
	return d.hits, d.misses
}

// load makes sector the cached one.
func (d *Disk) load(sector int64) error {
	if d.cached == sector {
		d.hits++
		return nil
	}
	d.misses++
	d.cached = -1
	if _, err := d.dev.ReadSector(uint32(sector), d.buf[:]); err != nil {
		return err
	}
	d.cached = sector
	return nil
}

// ReadPart copies len(p) bytes starting at offset within sector. The range
// must not cross the sector boundary.
func (d *Disk) ReadPart(p []byte, sector uint32, offset int) error {
	if offset < 0 || offset+len(p) > SectorSize {
		return fmt.Errorf("diskio: %d bytes at offset %d cross sector %d", len(p), offset, sector)
	}
	if err := d.load(int64(sector)); err != nil {
		return fmt.Errorf("diskio: read sector %d: %w", sector, err)
	}
	copy(p, d.buf[offset:])
	return nil
}

// ReadAt implements io.ReaderAt.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("diskio: negative offset %d", off)
	}
	size := d.Size()

	n := 0
	for n < len(p) {
		pos := off + int64(n)
		if pos >= size {
			return n, io.EOF
		}
		sector, within := pos/SectorSize, int(pos%SectorSize)
		chunk := min(len(p)-n, SectorSize-within)
		if err := d.ReadPart(p[n:n+chunk], uint32(sector), within); err != nil {
			return n, err
		}
		n += chunk
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Partial sectors are read, patched and
// written back. The cache always reflects what was last written.
func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("diskio: negative offset %d", off)
	}
	if off+int64(len(p)) > d.Size() {
		return 0, fmt.Errorf("%w: %d bytes at %d, size %d", ErrPastEnd, len(p), off, d.Size())
	}

	n := 0
	for n < len(p) {
		pos := off + int64(n)
		sector, within := pos/SectorSize, int(pos%SectorSize)
		chunk := min(len(p)-n, SectorSize-within)

		if chunk < SectorSize {
			if err := d.load(sector); err != nil {
				return n, fmt.Errorf("diskio: read-modify-write sector %d: %w", sector, err)
			}
		}
		d.cached = -1
		copy(d.buf[within:], p[n:n+chunk])
		if _, err := d.dev.WriteSector(uint32(sector), d.buf[:]); err != nil {
			return n, fmt.Errorf("diskio: write sector %d: %w", sector, err)
		}
		d.cached = sector
		n += chunk
	}
	glog.V(3).Infof("diskio: wrote %d bytes at %d", n, off)
	return n, nil
}
