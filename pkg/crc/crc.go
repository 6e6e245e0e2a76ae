// Package crc implements the two checksums of the SD card serial protocol:
// CRC7 protecting command frames and CRC16 protecting data blocks.
package crc

import (
	"github.com/sigurn/crc16"
)

// crc7Poly is x^7 + x^3 + 1 (0x09) pre-shifted into the upper seven bits of
// a byte, with the x^7 term kept so the subtraction clears the tested bit.
const crc7Poly = 0x89

// CRC7 computes the 7-bit command checksum, MSB first, one bit at a time.
// The result sits in the upper seven bits of the returned byte, ready to be
// OR-ed with the frame stop bit.
func CRC7(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc ^= crc7Poly
			}
			crc <<= 1
		}
	}
	return crc
}

// CommandCRC returns the last byte of a command frame: the CRC7 of the first
// five bytes with the stop bit set.
func CommandCRC(head []byte) byte {
	return CRC7(head) | 0x01
}

// SD data blocks use CRC-16/XMODEM: poly 0x1021, init 0, no reflection.
var table = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 computes the data block checksum. The same function is used to
// generate outbound block CRCs and to validate inbound ones.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, table)
}
