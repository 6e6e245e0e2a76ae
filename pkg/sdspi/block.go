package sdspi

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/crc"
)

// Data block framing:
//
//	0xFE | payload (512 bytes, or 16 for CSD/CID) | CRC16 high | CRC16 low
//
// While the card prepares a read it clocks out 0xFF. A byte with the upper
// three bits clear is a data error token and replaces the block entirely:
//
//	bit 0 : error
//	bit 1 : card controller error
//	bit 2 : card ECC failed
//	bit 3 : out of range
//
// After a written block the card answers with a data response token
// (xxx0sss1, sss = 010 accepted, 101 CRC error, 110 write error) and then
// holds the line low while programming.

// BlockSize is the size of one sector.
const BlockSize = 512

// StartToken precedes every single-block data packet.
const StartToken byte = 0xFE

func isDataErrorToken(b byte) bool {
	return b != 0xFF && b&0xE0 == 0
}

// DataResponse is the token a card answers a written block with.
type DataResponse byte

// Data response values, after masking with 0x1F.
const (
	DataAccepted    DataResponse = 0x05
	DataCRCRejected DataResponse = 0x0B
	DataWriteError  DataResponse = 0x0D
)

// Accepted reports whether the card took the block.
func (d DataResponse) Accepted() bool {
	return d&0x1F == DataAccepted
}

func (d DataResponse) String() string {
	switch d & 0x1F {
	case DataAccepted:
		return "accepted"
	case DataCRCRejected:
		return "rejected: crc error"
	case DataWriteError:
		return "rejected: write error"
	default:
		return fmt.Sprintf("invalid data response 0x%02X", byte(d))
	}
}

// receiveBlock waits for the start token and reads len(dst) bytes plus the
// CRC16. dst is only written once the CRC has been verified.
func (c *conn) receiveBlock(dst []byte) error {
	if len(dst) > BlockSize {
		return fmt.Errorf("%w: block of %d bytes", ErrRange, len(dst))
	}

	err := Poll(c.cfg.TokenRetries, func() (bool, error) {
		b, err := c.readByte()
		if err != nil {
			return false, err
		}
		if isDataErrorToken(b) {
			return false, fmt.Errorf("%w: data error token 0x%02X", ErrProtocol, b)
		}
		return b == StartToken, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for start token: %w", err)
	}

	buf := c.scratch[:len(dst)+2]
	if err := c.transfer(nil, buf); err != nil {
		return err
	}

	payload := buf[:len(dst)]
	got := uint16(buf[len(dst)])<<8 | uint16(buf[len(dst)+1])
	if want := crc.CRC16(payload); got != want {
		return fmt.Errorf("%w: received 0x%04X, computed 0x%04X", ErrCRC, got, want)
	}

	copy(dst, payload)
	return nil
}

// sendBlock transmits payload as one data packet and waits for the card to
// accept and program it.
func (c *conn) sendBlock(payload []byte) error {
	if len(payload) > BlockSize {
		return fmt.Errorf("%w: block of %d bytes", ErrRange, len(payload))
	}

	sum := crc.CRC16(payload)
	frame := c.scratch[:0]
	frame = append(frame, StartToken)
	frame = append(frame, payload...)
	frame = append(frame, byte(sum>>8), byte(sum))
	if err := c.transfer(frame, nil); err != nil {
		return err
	}

	var token DataResponse
	err := Poll(c.cfg.TokenRetries, func() (bool, error) {
		b, err := c.readByte()
		token = DataResponse(b)
		return b != 0xFF, err
	})
	if err != nil {
		return fmt.Errorf("waiting for data response: %w", err)
	}

	err = Poll(c.cfg.BusyRetries, func() (bool, error) {
		b, err := c.readByte()
		return b == 0xFF, err
	})
	if err != nil {
		return fmt.Errorf("waiting for programming: %w", err)
	}

	if !token.Accepted() {
		return fmt.Errorf("%w: %s", ErrWriteRejected, token)
	}
	return nil
}
