//go:build !linux

package spidev

import (
	"errors"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// Open always fails: spidev only exists on Linux.
func (b Bus) Open(index uint8, hz uint32) (sdspi.Transport, error) {
	return nil, errors.New("spidev: not supported on this platform")
}
