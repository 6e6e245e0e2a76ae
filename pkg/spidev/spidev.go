// Package spidev is an sdspi transport over the Linux spidev driver.
//
// The kernel toggles its own chip select around every ioctl, while an SD
// exchange spans several Transfer calls (command, response polling, data).
// Boards should therefore wire the card select to a GPIO, open the bus with
// ModeNoCS and pass a GPIO chip select to sdspi.Registry.Open.
package spidev

import (
	"fmt"
)

// SPI mode bits (linux/spi/spidev.h).
const (
	Mode0      uint8 = 0x00
	ModeCPHA   uint8 = 0x01
	ModeCPOL   uint8 = 0x02
	ModeCSHigh uint8 = 0x04
	ModeNoCS   uint8 = 0x40
)

// ioctl request numbers, _IOW('k', nr, size).
const (
	iocMagic = 'k'

	iocWrite     = 1
	iocDirShift  = 30
	iocSizeShift = 16
	iocTypeShift = 8

	transferSize = 32 // sizeof(struct spi_ioc_transfer)
)

func iow(nr, size uint32) uint32 {
	return iocWrite<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr
}

var (
	iocWrMode        = iow(1, 1)
	iocWrBitsPerWord = iow(3, 1)
	iocWrMaxSpeedHz  = iow(4, 4)
)

// iocMessage returns SPI_IOC_MESSAGE(n).
func iocMessage(n int) uint32 {
	return iow(0, uint32(n*transferSize))
}

// spiIocTransfer mirrors struct spi_ioc_transfer.
type spiIocTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// Bus opens spidev character devices.
type Bus struct {
	// Device is the device path. When empty, /dev/spidev<index>.0 is used.
	Device string
	// Mode is the SPI mode; SD cards use mode 0.
	Mode uint8
}

func (b Bus) path(index uint8) string {
	if b.Device != "" {
		return b.Device
	}
	return fmt.Sprintf("/dev/spidev%d.0", index)
}
