package sdspi

import (
	"encoding/binary"
	"fmt"

	"github.com/gregLibert/sd-card/pkg/crc"
)

// Command frame layout (SD Physical Layer, SPI mode):
//
//	byte 0    : 0b01xxxxxx  start bit 0, transmission bit 1, 6-bit command index
//	bytes 1-4 : 32-bit argument, most significant byte first
//	byte 5    : CRC7 in bits 7..1, stop bit 1
//
// In SPI mode the card ignores the CRC until CRC_ON_OFF enables it, except for
// GO_IDLE_STATE and SEND_IF_COND which are always checked.

// Command is the 6-bit command index.
type Command byte

// Commands used by the driver. SD_SEND_OP_COND is an application command
// and must be preceded by APP_CMD.
const (
	GO_IDLE_STATE     Command = 0
	SEND_IF_COND      Command = 8
	SEND_CSD          Command = 9
	SEND_CID          Command = 10
	SET_BLOCKLEN      Command = 16
	READ_SINGLE_BLOCK Command = 17
	WRITE_BLOCK       Command = 24
	SD_SEND_OP_COND   Command = 41
	APP_CMD           Command = 55
	READ_OCR          Command = 58
	CRC_ON_OFF        Command = 59
)

func (c Command) String() string {
	switch c {
	case GO_IDLE_STATE:
		return "GO_IDLE_STATE"
	case SEND_IF_COND:
		return "SEND_IF_COND"
	case SEND_CSD:
		return "SEND_CSD"
	case SEND_CID:
		return "SEND_CID"
	case SET_BLOCKLEN:
		return "SET_BLOCKLEN"
	case READ_SINGLE_BLOCK:
		return "READ_SINGLE_BLOCK"
	case WRITE_BLOCK:
		return "WRITE_BLOCK"
	case SD_SEND_OP_COND:
		return "SD_SEND_OP_COND"
	case APP_CMD:
		return "APP_CMD"
	case READ_OCR:
		return "READ_OCR"
	case CRC_ON_OFF:
		return "CRC_ON_OFF"
	default:
		return fmt.Sprintf("CMD%d", byte(c))
	}
}

// Protocol constants.
const (
	// IfCondPattern is the SEND_IF_COND argument: 2.7-3.6V range (0x1) and
	// check pattern 0xAA. A v2 card echoes it in the low 12 bits of R7.
	IfCondPattern uint32 = 0x1AA
	// IfCondMask selects the echoed voltage and pattern bits of R7.
	IfCondMask uint32 = 0xFFF

	// OCRVoltageWindow covers the 2.7V to 3.6V bits of the OCR.
	OCRVoltageWindow uint32 = 0x00FF8000
	// OCRCapacity is the card capacity status bit (CCS): set on high capacity cards.
	OCRCapacity uint32 = 1 << 30
	// OCRPowerUp is set once the card has finished its power-up routine.
	OCRPowerUp uint32 = 1 << 31

	// ArgHighCapacity is the host capacity support bit (HCS) of SD_SEND_OP_COND.
	ArgHighCapacity uint32 = 1 << 30
	// ArgCRCOn enables CRC checking with CRC_ON_OFF.
	ArgCRCOn uint32 = 1
)

// FrameSize is the length of a command frame on the wire.
const FrameSize = 6

// Frame is an encoded command.
type Frame [FrameSize]byte

// BuildCommand encodes cmd and arg into a frame with a valid CRC7.
func BuildCommand(cmd Command, arg uint32) Frame {
	var f Frame
	f[0] = 0x40 | byte(cmd)&0x3F
	binary.BigEndian.PutUint32(f[1:5], arg)
	f[5] = crc.CommandCRC(f[:5])
	return f
}

// Command returns the command index carried by the frame.
func (f Frame) Command() Command {
	return Command(f[0] & 0x3F)
}

// Arg returns the 32-bit argument.
func (f Frame) Arg() uint32 {
	return binary.BigEndian.Uint32(f[1:5])
}

// Valid reports whether the framing bits and the CRC7 are correct.
func (f Frame) Valid() bool {
	if f[0]&0xC0 != 0x40 || f[5]&0x01 != 0x01 {
		return false
	}
	return crc.CommandCRC(f[:5]) == f[5]
}

func (f Frame) String() string {
	return fmt.Sprintf("%s(0x%08X) [% X]", f.Command(), f.Arg(), f[:])
}
