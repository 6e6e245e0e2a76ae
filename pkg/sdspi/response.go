package sdspi

import (
	"fmt"
	"strings"

	"github.com/gregLibert/sd-card/pkg/bits"
)

// R1 is the one-byte status every command answers with.
//
//	bit 7 : always 0 (a byte with bit 7 set is not a response)
//	bit 6 : parameter error
//	bit 5 : address error
//	bit 4 : erase sequence error
//	bit 3 : command CRC error
//	bit 2 : illegal command
//	bit 1 : erase reset
//	bit 0 : in idle state
type R1 byte

// R1 flags.
const (
	R1Idle          R1 = 0x01
	R1EraseReset    R1 = 0x02
	R1IllegalCmd    R1 = 0x04
	R1CRCError      R1 = 0x08
	R1EraseSequence R1 = 0x10
	R1AddressError  R1 = 0x20
	R1ParamError    R1 = 0x40

	// R1Ready is the status of an initialized card with no error.
	R1Ready R1 = 0x00
)

var r1Flags = []struct {
	flag R1
	name string
}{
	{R1Idle, "idle"},
	{R1EraseReset, "erase reset"},
	{R1IllegalCmd, "illegal command"},
	{R1CRCError, "crc error"},
	{R1EraseSequence, "erase sequence error"},
	{R1AddressError, "address error"},
	{R1ParamError, "parameter error"},
}

// Valid reports whether the byte is a response at all (bit 7 clear).
func (r R1) Valid() bool {
	return !bits.IsSet(byte(r), 7)
}

// Failed reports whether any bit above the idle bit is set.
// This coarse test also rejects the erase-reset flag, which is harmless,
// and is kept that way to match the behaviour cards are qualified against.
func (r R1) Failed() bool {
	return bits.AnyAbove(byte(r), 0)
}

// Has reports whether all bits of flag are set.
func (r R1) Has(flag R1) bool {
	return r&flag == flag
}

// Verbose returns a human-readable description of the status.
func (r R1) Verbose() string {
	if !r.Valid() {
		return fmt.Sprintf("[%02X] no response", byte(r))
	}
	if r == R1Ready {
		return "[00] ready"
	}

	var names []string
	for _, f := range r1Flags {
		if r.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return fmt.Sprintf("[%02X] %s", byte(r), strings.Join(names, ", "))
}

// Response is a decoded command response. Register holds the 32-bit payload
// of R3 (OCR) and R7 (interface condition) responses and is zero otherwise.
type Response struct {
	R1       R1
	Register uint32
	// HasRegister is set when the four register bytes were read.
	HasRegister bool
}

func (r Response) String() string {
	if r.HasRegister {
		return fmt.Sprintf("%s reg=0x%08X", r.R1.Verbose(), r.Register)
	}
	return r.R1.Verbose()
}
