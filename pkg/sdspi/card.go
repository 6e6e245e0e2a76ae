package sdspi

import (
	"fmt"
	"strings"
)

// Card is an initialized card held in a Registry slot.
type Card struct {
	reg   *Registry
	slot  int
	index uint8
	c     *conn // nil once closed

	sectors  uint64
	capacity Capacity
	version  Version
	cid      CID
	csd      CSD
	trace    Trace

	block [BlockSize]byte
}

// Slot returns the registry slot the card occupies.
func (c *Card) Slot() int { return c.slot }

// Bus returns the bus index the card was opened on.
func (c *Card) Bus() uint8 { return c.index }

// Sectors returns the number of 512-byte sectors of the card.
func (c *Card) Sectors() uint64 { return c.sectors }

// Capacity returns the addressing class.
func (c *Card) Capacity() Capacity { return c.capacity }

// Version returns the physical layer generation.
func (c *Card) Version() Version { return c.version }

// CID returns the identification register read during bring-up.
func (c *Card) CID() CID { return c.cid }

// CSD returns the card specific data register read during bring-up.
func (c *Card) CSD() CSD { return c.csd }

// Trace returns the commands exchanged by the successful bring-up attempt.
func (c *Card) Trace() Trace { return c.trace }

// address converts a sector index to the argument of a block command.
func (c *Card) address(sector uint32) uint32 {
	if c.capacity == CapacityHigh {
		return sector
	}
	return sector * BlockSize
}

// check validates a transfer before any bus activity.
func (c *Card) check(sector uint32, n int) error {
	if c.c == nil {
		return ErrClosed
	}
	if uint64(sector) >= c.sectors {
		return fmt.Errorf("%w: sector %d of %d", ErrRange, sector, c.sectors)
	}
	if n > BlockSize {
		return fmt.Errorf("%w: length %d above %d", ErrRange, n, BlockSize)
	}
	return nil
}

// ReadSector reads the first len(buf) bytes of a sector into buf.
// The whole sector is always received and verified; buf is left untouched
// on failure.
func (c *Card) ReadSector(sector uint32, buf []byte) (int, error) {
	if err := c.check(sector, len(buf)); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if err := c.c.readData(READ_SINGLE_BLOCK, c.address(sector), c.block[:]); err != nil {
		return 0, fmt.Errorf("read sector %d: %w", sector, err)
	}
	return copy(buf, c.block[:]), nil
}

// WriteSector writes buf at the start of a sector. A short buf leaves the
// rest of the sector zeroed.
func (c *Card) WriteSector(sector uint32, buf []byte) (int, error) {
	if err := c.check(sector, len(buf)); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n := copy(c.block[:], buf)
	clear(c.block[n:])
	if err := c.c.writeData(WRITE_BLOCK, c.address(sector), c.block[:]); err != nil {
		return 0, fmt.Errorf("write sector %d: %w", sector, err)
	}
	return n, nil
}

// Close releases the transport and frees the slot. Closing twice is a no-op.
func (c *Card) Close() error {
	if c.c == nil {
		return nil
	}
	err := c.c.t.Close()
	c.c = nil
	if c.reg != nil {
		c.reg.release(c)
	}
	return err
}

// Describe returns a human-readable summary of the card.
func (c *Card) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Slot:     %d (bus %d)\n", c.slot, c.index)
	fmt.Fprintf(&sb, "Version:  %s\n", c.version)
	fmt.Fprintf(&sb, "Capacity: %s\n", c.capacity)
	fmt.Fprintf(&sb, "Sectors:  %d (%d MiB)\n", c.sectors, c.sectors*BlockSize>>20)
	fmt.Fprintf(&sb, "CSD:      v%d.0 [% X]\n", c.csd.Structure+1, c.csd.Raw[:])
	fmt.Fprintf(&sb, "CID:      %s\n", c.cid.Describe())
	if c.c == nil {
		sb.WriteString("State:    closed\n")
	}
	return sb.String()
}
